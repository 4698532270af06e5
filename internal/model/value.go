package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Kind identifies which scalar a Value holds.  Movie attributes are opaque
// to the server, but they are restricted to this closed set so that
// nested objects and arrays never reach the document.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// ErrUnsupportedValue is returned when a JSON value is an object or array.
var ErrUnsupportedValue = errors.New("unsupported value: only strings, numbers, booleans and null are allowed")

// Value is a single scalar movie attribute.  Numbers keep their original
// textual form so that a load/save round trip does not reformat them.
type Value struct {
	kind Kind
	str  string
	num  json.Number
	b    bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a number value holding n.
func Int(n int64) Value { return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(n, 10))} }

// Number returns a number value from its JSON text.  The text is validated.
func Number(text string) (Value, error) {
	if !json.Valid([]byte(text)) {
		return Value{}, fmt.Errorf("invalid number %q", text)
	}
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return Value{}, fmt.Errorf("invalid number %q", text)
	}
	return Value{kind: KindNumber, num: json.Number(text)}, nil
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the number payload and whether v is a number.
func (v Value) Num() (json.Number, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the boolean payload and whether v is a boolean.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Text renders the value the way it would appear in a form field.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.num), nil
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(t)
	case json.Number:
		*v = Value{kind: KindNumber, num: t}
	case bool:
		*v = Bool(t)
	default:
		return ErrUnsupportedValue
	}
	return nil
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}
