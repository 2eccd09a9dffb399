package ingest

import (
	"fmt"
	"time"
)

// MalformedRecordError means a record does not have exactly one field per
// schema column.
type MalformedRecordError struct {
	Record   int64 // 1-based
	Expected int
	Got      int
	Raw      []string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d: expected %d fields, got %d", e.Record, e.Expected, e.Got)
}

// TypeCoercionError means a field could not be converted to its column type
type TypeCoercionError struct {
	Record int64 // 1-based
	Column string
	Type   ColumnType
	Value  string
	Err    error
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("record %d: field %s: invalid %s %q: %v", e.Record, e.Column, e.Type, e.Value, e.Err)
}

func (e *TypeCoercionError) Unwrap() error {
	return e.Err
}

// KeyRangeError means a key of a decoded table falls outside the expected range
type KeyRangeError struct {
	Key      time.Time
	From, To time.Time
}

func (e *KeyRangeError) Error() string {
	return fmt.Sprintf("a date in the index is outside the expected range: key=%s, expected %s to %s",
		e.Key.Format("2006-01-02 15:04"), e.From.Format("2006-01-02"), e.To.Format("2006-01-02"))
}
