// Package table holds query results as typed columns with possibly-missing
// values and prepares them for JSON rendering.
package table

import (
	"errors"
	"fmt"
	"math"
)

// ErrRaggedColumns is returned when columns differ in length.
var ErrRaggedColumns = errors.New("columns have different lengths")

// Kind is the semantic category of a column.
type Kind int

const (
	// KindText holds free-form values rendered as strings.
	KindText Kind = iota
	// KindFloat holds floating point values.
	KindFloat
	// KindInt holds integer values.
	KindInt
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	default:
		return "text"
	}
}

// Column is a named, typed column. A nil value is missing.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Table is an ordered set of equally long columns.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a table from columns.
func New(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is New for literals in tests and fixtures.
func MustNew(columns ...*Column) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// AddColumn appends c, replacing an existing column with the same name.
func (t *Table) AddColumn(c *Column) error {
	if len(t.columns) > 0 && len(c.Values) != t.rows {
		return fmt.Errorf("%w: column %q has %d values, table has %d rows", ErrRaggedColumns, c.Name, len(c.Values), t.rows)
	}
	t.rows = len(c.Values)
	if i, ok := t.index[c.Name]; ok {
		t.columns[i] = c
		return nil
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Columns returns the columns in order.
func (t *Table) Columns() []*Column {
	return t.columns
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var selected []int
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			selected = append(selected, i)
		}
	}

	out := &Table{index: make(map[string]int, len(t.columns)), rows: len(selected)}
	for _, c := range t.columns {
		values := make([]any, len(selected))
		for j, row := range selected {
			values[j] = c.Values[row]
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, &Column{Name: c.Name, Kind: c.Kind, Values: values})
	}
	return out
}

// Row returns row i as a map keyed by column name.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Rows returns every row as a map.
func (t *Table) Rows() []map[string]any {
	rows := make([]map[string]any, t.Len())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// Floats returns the non-missing numeric values of a column. Values that are
// not numbers are skipped.
func (t *Table) Floats(name string) []float64 {
	c, ok := t.Column(name)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if IsMissing(v) {
			continue
		}
		if f, ok := numeric(v); ok {
			out = append(out, f)
		}
	}
	return out
}

// CountPresent returns how many values of a column are not missing.
func (t *Table) CountPresent(name string) int {
	c, ok := t.Column(name)
	if !ok {
		return 0
	}
	n := 0
	for _, v := range c.Values {
		if !IsMissing(v) {
			n++
		}
	}
	return n
}

// IsMissing reports whether v is a missing-value marker: nil, NaN or an
// infinity. Non-finite floats have no JSON encoding.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return !isFinite(x)
	case float32:
		return !isFinite(float64(x))
	default:
		return false
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}

// Without returns a table sharing t's columns except the named ones.
func (t *Table) Without(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}

	out := &Table{index: make(map[string]int, len(t.columns)), rows: t.Len()}
	for _, c := range t.columns {
		if drop[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c)
	}
	return out
}
