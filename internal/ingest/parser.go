package ingest

import (
	"fmt"
	"io"
	"strings"
)

// Parser splits a delimited payload into records of trimmed fields
type Parser struct {
	records    []string
	fieldDelim string
	rowNo      int64
}

// NewParser creates a parser for text. One trailing empty record, left by a
// terminating record delimiter, is ignored.
func NewParser(text, recordDelim, fieldDelim string) (*Parser, error) {
	if recordDelim == "" {
		return nil, fmt.Errorf("record delimiter is empty")
	}
	if fieldDelim == "" {
		return nil, fmt.Errorf("field delimiter is empty")
	}
	if recordDelim == fieldDelim {
		return nil, fmt.Errorf("record and field delimiters must differ, both are %q", recordDelim)
	}

	records := strings.Split(text, recordDelim)
	if n := len(records); strings.TrimSpace(records[n-1]) == "" {
		records = records[:n-1]
	}

	return &Parser{
		records:    records,
		fieldDelim: fieldDelim,
	}, nil
}

// ReadRow returns the fields of the next record, or io.EOF
func (p *Parser) ReadRow() ([]string, error) {
	if p.rowNo >= int64(len(p.records)) {
		return nil, io.EOF
	}

	fields := strings.Split(p.records[p.rowNo], p.fieldDelim)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	p.rowNo++
	return fields, nil
}

// GetRowNo returns the number of records read so far
func (p *Parser) GetRowNo() int64 {
	return p.rowNo
}

// Len returns the total number of records
func (p *Parser) Len() int {
	return len(p.records)
}
