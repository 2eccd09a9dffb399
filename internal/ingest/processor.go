package ingest

import (
	"fmt"
	"io"
)

// Decode parses a delimited payload into a table of typed rows. Every record
// must have exactly one field per schema column.
func Decode(text string, schema Schema, recordDelim, fieldDelim string) (*Table, error) {
	parser, err := NewParser(text, recordDelim, fieldDelim)
	if err != nil {
		return nil, err
	}

	transformer, err := NewTransformer(schema)
	if err != nil {
		return nil, err
	}

	capacity := parser.Len()
	if schema.Limit > 0 && schema.Limit < capacity {
		capacity = schema.Limit
	}
	table := NewTable(transformer.Columns(), schema.Key, capacity)

	for {
		if schema.Limit > 0 && parser.GetRowNo() >= int64(schema.Limit) {
			break
		}

		row, err := parser.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		transformed, err := transformer.TransformRow(parser.GetRowNo(), row)
		if err != nil {
			return nil, err
		}
		table.Append(transformed)
	}

	return table, nil
}
