package heatmap

import (
	"errors"
	"fmt"
)

var (
	// ErrIO covers file open/read/write and directory enumeration failures.
	ErrIO = errors.New("i/o failure")
	// ErrDecode covers malformed FIT or GPX payloads and decompression failures.
	ErrDecode = errors.New("decode failure")
	// ErrUnrecognizedFormat is returned for paths that classify to no decoder.
	ErrUnrecognizedFormat = errors.New("unrecognized format")
	// ErrNotFound is returned for unknown handles.
	ErrNotFound = errors.New("not found")
	// ErrSerialization covers snapshot encode and decode failures.
	ErrSerialization = errors.New("serialization failure")
)

// InvariantError reports an Export that breaks the year partition.
type InvariantError struct {
	Year   int
	Index  int
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("year %d activity %d: %s", e.Year, e.Index, e.Reason)
}
