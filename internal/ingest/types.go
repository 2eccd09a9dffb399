package ingest

import "fmt"

// ColumnType is the semantic type a field is coerced to
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeFloat    ColumnType = "float64"
	TypeInt      ColumnType = "int"
	TypeDate     ColumnType = "date"
	TypeDateTime ColumnType = "datetime"
)

// Default layouts for date and datetime fields
const (
	DefaultDateLayout     = "20060102"
	DefaultDateTimeLayout = "20060102 15:04"
)

// Column describes one field of a record
type Column struct {
	Name   string
	Type   ColumnType
	Layout string // time layout for date and datetime columns
}

// Composition merges a date column and a time column into a single
// datetime column named Name. The source columns are dropped from the row.
type Composition struct {
	Name   string
	Date   string
	Time   string
	Layout string // layout of "<date> <time>", DefaultDateTimeLayout if empty
}

// Schema is the ordered field list of one endpoint's records
type Schema struct {
	Columns []Column
	Compose *Composition
	Key     string // output column to index rows by, optional
	Limit   int    // decode at most Limit records when > 0
}

// Row maps output column names to typed values.
// Blank float64 fields hold NaN; blank int, date and datetime fields hold nil.
type Row map[string]interface{}

// OutputColumns returns the column names of decoded rows. A composed column
// comes first, followed by the remaining columns in schema order.
func (s Schema) OutputColumns() []string {
	cols := make([]string, 0, len(s.Columns)+1)
	if s.Compose != nil {
		cols = append(cols, s.Compose.Name)
	}
	for _, c := range s.Columns {
		if s.Compose != nil && (c.Name == s.Compose.Date || c.Name == s.Compose.Time) {
			continue
		}
		cols = append(cols, c.Name)
	}
	return cols
}

// Validate checks that the schema is usable for decoding
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}

	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("schema has a column without a name")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %s", c.Name)
		}
		seen[c.Name] = true

		switch c.Type {
		case TypeString, TypeFloat, TypeInt, TypeDate, TypeDateTime:
		default:
			return fmt.Errorf("column %s: unknown type: %s", c.Name, c.Type)
		}
	}

	if s.Compose != nil {
		if s.Compose.Name == "" {
			return fmt.Errorf("composed column has no name")
		}
		if !seen[s.Compose.Date] {
			return fmt.Errorf("composed column %s: date column %s not found", s.Compose.Name, s.Compose.Date)
		}
		if !seen[s.Compose.Time] {
			return fmt.Errorf("composed column %s: time column %s not found", s.Compose.Name, s.Compose.Time)
		}
		if s.Compose.Date == s.Compose.Time {
			return fmt.Errorf("composed column %s: date and time columns must differ", s.Compose.Name)
		}
	}

	if s.Key != "" {
		found := false
		for _, name := range s.OutputColumns() {
			if name == s.Key {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("key column %s not found", s.Key)
		}
	}

	if s.Limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", s.Limit)
	}
	return nil
}
