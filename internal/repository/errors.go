// Package repository defines error types that are reused across the
// document store backends.  These sentinel values allow higher layers such
// as the service and the handlers to distinguish failure scenarios with
// errors.Is; backends wrap them with the underlying cause.
package repository

import "errors"

// ErrMovieNotFound is returned when no record carries the requested id.
// Handlers translate this into an HTTP 404 response.
var ErrMovieNotFound = errors.New("movie not found")

// ErrStorageUnavailable is returned when the document cannot be read or
// written.  Handlers translate this into an HTTP 500 response.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrCorruptStore is returned when the document is not valid JSON or does
// not have a top-level movies array of well formed records.
var ErrCorruptStore = errors.New("corrupt store")

// ErrIDsExhausted is returned when the largest stored id is already
// math.MaxInt64, so no further id can be assigned.
var ErrIDsExhausted = errors.New("movie ids exhausted")
