// Package model holds the movie record shared by the store, the service and
// the HTTP layer.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

const (
	FieldID    = "id"    // system assigned, never part of Fields
	FieldImage = "image" // bare asset filename, set by the upload path only
)

// ErrInvalidID is returned when a record's id is missing, not an integer or not positive.
var ErrInvalidID = errors.New("movie id must be a positive integer")

// Fields are the caller supplied attributes of a movie.  They are opaque to
// the server apart from the image filename.
type Fields map[string]Value

// Clone returns a shallow copy; values are immutable so this is a full copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Movie is one record of the collection.
type Movie struct {
	ID     int64
	Fields Fields
}

// Image returns the stored image filename, if any.
func (m Movie) Image() (string, bool) {
	v, ok := m.Fields[FieldImage]
	if !ok {
		return "", false
	}
	s, ok := v.Str()
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// WithImage returns a copy of m whose image field is replaced by value.
// It is used to expand the stored filename to a URL for responses without
// touching the persisted record.
func (m Movie) WithImage(value string) Movie {
	out := Movie{ID: m.ID, Fields: m.Fields.Clone()}
	out.Fields[FieldImage] = String(value)
	return out
}

// MarshalJSON writes id first and the remaining keys sorted, which keeps
// the persisted document stable across rewrites.
func (m Movie) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	buf.WriteString(strconv.FormatInt(m.ID, 10))
	for _, k := range m.Fields.Keys() {
		if k == FieldID {
			continue
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := m.Fields[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Movie) UnmarshalJSON(data []byte) error {
	var raw map[string]Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("movie: expected object")
	}
	idVal, ok := raw[FieldID]
	if !ok {
		return ErrInvalidID
	}
	num, ok := idVal.Num()
	if !ok {
		return ErrInvalidID
	}
	id, err := strconv.ParseInt(num.String(), 10, 64)
	if err != nil || id <= 0 {
		return ErrInvalidID
	}
	delete(raw, FieldID)
	m.ID = id
	m.Fields = Fields(raw)
	return nil
}

// FieldsFromJSON decodes a JSON object body into Fields.  The id key is
// dropped because ids are assigned by the store.
func FieldsFromJSON(data []byte) (Fields, error) {
	var raw map[string]Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := Fields(raw)
	if out == nil {
		out = Fields{}
	}
	delete(out, FieldID)
	return out, nil
}

// FieldsFromForm converts multipart or urlencoded form values into string
// fields, keeping the first value of each key.
func FieldsFromForm(values map[string][]string) Fields {
	out := make(Fields, len(values))
	for k, vs := range values {
		if k == FieldID || len(vs) == 0 {
			continue
		}
		out[k] = String(vs[0])
	}
	return out
}
