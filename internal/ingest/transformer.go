package ingest

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Transformer converts parsed records to typed rows according to a schema
type Transformer struct {
	schema  Schema
	columns []string
	dateIdx int // -1 without composition
	timeIdx int
}

// NewTransformer validates schema and precomputes composition indexes
func NewTransformer(schema Schema) (*Transformer, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	t := &Transformer{
		schema:  schema,
		columns: schema.OutputColumns(),
		dateIdx: -1,
		timeIdx: -1,
	}
	if schema.Compose != nil {
		for i, c := range schema.Columns {
			switch c.Name {
			case schema.Compose.Date:
				t.dateIdx = i
			case schema.Compose.Time:
				t.timeIdx = i
			}
		}
	}
	return t, nil
}

// Columns returns the output column names
func (t *Transformer) Columns() []string {
	return t.columns
}

// TransformRow coerces the fields of record rowNo (1-based)
func (t *Transformer) TransformRow(rowNo int64, row []string) (Row, error) {
	if len(row) != len(t.schema.Columns) {
		return nil, &MalformedRecordError{Record: rowNo, Expected: len(t.schema.Columns), Got: len(row), Raw: row}
	}

	result := make(Row, len(t.columns))

	if c := t.schema.Compose; c != nil {
		value, err := composeDateTime(row[t.dateIdx], row[t.timeIdx], c.Layout)
		if err != nil {
			return nil, &TypeCoercionError{
				Record: rowNo,
				Column: c.Name,
				Type:   TypeDateTime,
				Value:  row[t.dateIdx] + " " + row[t.timeIdx],
				Err:    err,
			}
		}
		result[c.Name] = value
	}

	for i, col := range t.schema.Columns {
		if i == t.dateIdx || i == t.timeIdx {
			continue
		}

		value, err := transformValue(col, row[i])
		if err != nil {
			return nil, &TypeCoercionError{Record: rowNo, Column: col.Name, Type: col.Type, Value: row[i], Err: err}
		}
		result[col.Name] = value
	}

	return result, nil
}

// transformValue converts a trimmed field to the column type
func transformValue(col Column, value string) (interface{}, error) {
	switch col.Type {
	case TypeString:
		return value, nil

	case TypeFloat:
		if value == "" {
			return math.NaN(), nil
		}
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, err
		}
		return val, nil

	case TypeInt:
		if value == "" {
			return nil, nil
		}
		val, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, err
		}
		return val, nil

	case TypeDate:
		if value == "" {
			return nil, nil
		}
		return parseTime(value, col.Layout, DefaultDateLayout)

	case TypeDateTime:
		if value == "" {
			return nil, nil
		}
		return parseTime(value, col.Layout, DefaultDateTimeLayout)

	default:
		return nil, fmt.Errorf("unknown type: %s", col.Type)
	}
}

// composeDateTime joins date and time fields with a space and parses them.
// Either part blank yields nil.
func composeDateTime(date, clock, layout string) (interface{}, error) {
	if date == "" || clock == "" {
		return nil, nil
	}
	return parseTime(date+" "+clock, layout, DefaultDateTimeLayout)
}

// parseTime parses value as a wall-clock time in UTC
func parseTime(value, layout, fallback string) (time.Time, error) {
	if layout == "" {
		layout = fallback
	}
	return time.ParseInLocation(layout, value, time.UTC)
}
