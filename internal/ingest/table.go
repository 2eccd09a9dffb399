package ingest

import (
	"math"
	"sort"
	"time"
)

// Table is an ordered sequence of decoded rows, optionally indexed by a key
// column. When several rows share a key, the index points at the last one.
type Table struct {
	Columns []string
	Rows    []Row
	Key     string
	index   map[interface{}]int
}

// NewTable creates an empty table
func NewTable(columns []string, key string, capacity int) *Table {
	t := &Table{
		Columns: columns,
		Rows:    make([]Row, 0, capacity),
		Key:     key,
	}
	if key != "" {
		t.index = make(map[interface{}]int, capacity)
	}
	return t
}

// Append adds a row and indexes it by key
func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
	if t.index == nil {
		return
	}
	if k, ok := indexKey(row[t.Key]); ok {
		t.index[k] = len(t.Rows) - 1
	}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Lookup returns the last row whose key equals key
func (t *Table) Lookup(key interface{}) (Row, bool) {
	if t.index == nil {
		return nil, false
	}
	k, ok := indexKey(key)
	if !ok {
		return nil, false
	}
	i, ok := t.index[k]
	if !ok {
		return nil, false
	}
	return t.Rows[i], true
}

// SortByKey orders rows by key, keeping the relative order of equal keys.
// Rows without a key value sort last.
func (t *Table) SortByKey() {
	if t.Key == "" {
		return
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return lessKey(t.Rows[i][t.Key], t.Rows[j][t.Key])
	})

	t.index = make(map[interface{}]int, len(t.Rows))
	for i, row := range t.Rows {
		if k, ok := indexKey(row[t.Key]); ok {
			t.index[k] = i
		}
	}
}

// KeyBounds returns the key values of the first and last rows
func (t *Table) KeyBounds() (first, last interface{}, ok bool) {
	if t.Key == "" || len(t.Rows) == 0 {
		return nil, nil, false
	}
	return t.Rows[0][t.Key], t.Rows[len(t.Rows)-1][t.Key], true
}

// CheckKeyDateRange verifies that the dates of the first and last keys fall
// within [from, to]. Times of day are ignored. An empty table passes.
func CheckKeyDateRange(t *Table, from, to time.Time) error {
	first, last, ok := t.KeyBounds()
	if !ok {
		return nil
	}

	lo, hi := truncateDay(from), truncateDay(to)
	for _, k := range []interface{}{first, last} {
		ts, isTime := k.(time.Time)
		if !isTime {
			return &KeyRangeError{From: lo, To: hi}
		}
		d := truncateDay(ts)
		if d.Before(lo) || d.After(hi) {
			return &KeyRangeError{Key: ts, From: lo, To: hi}
		}
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// indexKey normalizes a key value for map lookup
func indexKey(v interface{}) (interface{}, bool) {
	switch k := v.(type) {
	case nil:
		return nil, false
	case time.Time:
		return k.UnixNano(), true
	case float64:
		if math.IsNaN(k) {
			return nil, false
		}
		return k, true
	case int:
		return int64(k), true
	default:
		return k, true
	}
}

func lessKey(a, b interface{}) bool {
	ka, okA := indexKey(a)
	kb, okB := indexKey(b)
	if !okA || !okB {
		return okA && !okB
	}

	switch x := ka.(type) {
	case int64:
		if y, ok := kb.(int64); ok {
			return x < y
		}
	case float64:
		if y, ok := kb.(float64); ok {
			return x < y
		}
	case string:
		if y, ok := kb.(string); ok {
			return x < y
		}
	}
	return false
}
