// Package table holds the labelled tables returned by the engine's tabular
// and record endpoints.
//
// A Table has ordered named columns and a row index. The index is either
// positional (rows are labelled 0..n-1) or made of one or more named key
// levels taken from the payload, such as "key" or "Group,Carrier,Category,Type".
// Cell values are nil, float64, bool or string.
package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrReadOnly is returned when writing to a frozen table.
var ErrReadOnly = errors.New("table: table is read-only")

// Table is a 2-D labelled table.
// It is not safe for concurrent mutation; frozen tables may be shared.
type Table struct {
	indexNames []string
	labels     [][]string
	columns    []string
	pos        map[string]int
	rows       [][]any
	frozen     bool
}

// New creates an empty table. A nil or empty indexNames gives a positional index.
func New(indexNames, columns []string) *Table {
	t := &Table{
		indexNames: append([]string(nil), indexNames...),
		columns:    append([]string(nil), columns...),
	}
	t.reindexColumns()
	return t
}

func (t *Table) reindexColumns() {
	t.pos = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		t.pos[c] = i
	}
}

// Append adds a row. labels must have one entry per index level (none for a
// positional index) and values one entry per column.
func (t *Table) Append(labels []string, values []any) error {
	if t.frozen {
		return ErrReadOnly
	}
	if len(labels) != len(t.indexNames) {
		return fmt.Errorf("table: row has %d index labels, want %d", len(labels), len(t.indexNames))
	}
	if len(values) != len(t.columns) {
		return fmt.Errorf("table: row has %d values, want %d", len(values), len(t.columns))
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = Normalize(v)
	}
	if len(t.indexNames) > 0 {
		t.labels = append(t.labels, append([]string(nil), labels...))
	}
	t.rows = append(t.rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns the column names in order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.pos[name]
	return ok
}

// IndexNames returns the names of the index levels, empty for a positional index.
func (t *Table) IndexNames() []string { return append([]string(nil), t.indexNames...) }

// Positional reports whether rows are labelled by position.
func (t *Table) Positional() bool { return len(t.indexNames) == 0 }

// Label returns the index labels of row i.
// For a positional index this is the row number.
func (t *Table) Label(i int) []string {
	if t.Positional() {
		return []string{strconv.Itoa(i)}
	}
	return append([]string(nil), t.labels[i]...)
}

// Lookup returns the row whose index labels equal labels.
func (t *Table) Lookup(labels ...string) (int, bool) {
	if t.Positional() {
		if len(labels) != 1 {
			return 0, false
		}
		i, err := strconv.Atoi(labels[0])
		if err != nil || i < 0 || i >= len(t.rows) {
			return 0, false
		}
		return i, true
	}
	if len(labels) != len(t.indexNames) {
		return 0, false
	}
	for i, row := range t.labels {
		if equalStrings(row, labels) {
			return i, true
		}
	}
	return 0, false
}

// Value returns the cell at row i in the named column.
func (t *Table) Value(i int, column string) (any, bool) {
	c, ok := t.pos[column]
	if !ok || i < 0 || i >= len(t.rows) {
		return nil, false
	}
	return t.rows[i][c], true
}

// Get returns the cell in column for the row labelled key.
// It is shorthand for Lookup followed by Value on single-level indexes.
func (t *Table) Get(key, column string) (any, bool) {
	i, ok := t.Lookup(key)
	if !ok {
		return nil, false
	}
	return t.Value(i, column)
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]any, bool) {
	c, ok := t.pos[name]
	if !ok {
		return nil, false
	}
	out := make([]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[c]
	}
	return out, true
}

// Floats returns the named column as float64 values. Missing cells become NaN
// and booleans become 0 or 1. Non-numeric strings are an error.
func (t *Table) Floats(name string) ([]float64, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("table: no column %q", name)
	}
	out := make([]float64, len(col))
	for i, v := range col {
		f, ok := Float(v)
		if !ok {
			return nil, fmt.Errorf("table: column %q row %d: %v is not numeric", name, i, v)
		}
		out[i] = f
	}
	return out, nil
}

// Set writes a single cell. It fails with ErrReadOnly on frozen tables.
func (t *Table) Set(i int, column string, v any) error {
	if t.frozen {
		return ErrReadOnly
	}
	c, ok := t.pos[column]
	if !ok {
		return fmt.Errorf("table: no column %q", column)
	}
	if i < 0 || i >= len(t.rows) {
		return fmt.Errorf("table: row %d out of range", i)
	}
	t.rows[i][c] = Normalize(v)
	return nil
}

// AddColumn inserts a column at position at (clamped to the column range),
// filled with fill. It is a no-op when the column already exists.
func (t *Table) AddColumn(at int, name string, fill any) error {
	if t.frozen {
		return ErrReadOnly
	}
	if t.HasColumn(name) {
		return nil
	}
	if at < 0 || at > len(t.columns) {
		at = len(t.columns)
	}
	t.columns = append(t.columns[:at], append([]string{name}, t.columns[at:]...)...)
	fill = Normalize(fill)
	for i, row := range t.rows {
		t.rows[i] = append(row[:at], append([]any{fill}, row[at:]...)...)
	}
	t.reindexColumns()
	return nil
}

// DropColumn removes the named column if present.
func (t *Table) DropColumn(name string) error {
	if t.frozen {
		return ErrReadOnly
	}
	c, ok := t.pos[name]
	if !ok {
		return nil
	}
	t.columns = append(t.columns[:c], t.columns[c+1:]...)
	for i, row := range t.rows {
		t.rows[i] = append(row[:c], row[c+1:]...)
	}
	t.reindexColumns()
	return nil
}

// FillNil replaces nil cells of a column with v.
func (t *Table) FillNil(column string, v any) error {
	if t.frozen {
		return ErrReadOnly
	}
	c, ok := t.pos[column]
	if !ok {
		return fmt.Errorf("table: no column %q", column)
	}
	v = Normalize(v)
	for _, row := range t.rows {
		if row[c] == nil {
			row[c] = v
		}
	}
	return nil
}

// ResetIndex discards the index labels, leaving a positional index.
func (t *Table) ResetIndex() error {
	if t.frozen {
		return ErrReadOnly
	}
	t.indexNames = nil
	t.labels = nil
	return nil
}

// Round rounds every float cell to the given number of decimals.
func (t *Table) Round(decimals int) error {
	if t.frozen {
		return ErrReadOnly
	}
	scale := math.Pow(10, float64(decimals))
	for _, row := range t.rows {
		for c, v := range row {
			if f, ok := v.(float64); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
				row[c] = math.Round(f*scale) / scale
			}
		}
	}
	return nil
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	out := New(t.indexNames, t.columns)
	for i, row := range t.rows {
		if !keep(i) {
			continue
		}
		if !t.Positional() {
			out.labels = append(out.labels, append([]string(nil), t.labels[i]...))
		}
		out.rows = append(out.rows, append([]any(nil), row...))
	}
	return out
}

// Freeze marks the table read-only. Freezing is permanent; use Clone for a
// writable copy.
func (t *Table) Freeze() { t.frozen = true }

// Frozen reports whether the table is read-only.
func (t *Table) Frozen() bool { return t.frozen }

// Clone returns a deep, writable copy.
func (t *Table) Clone() *Table {
	out := New(t.indexNames, t.columns)
	if t.labels != nil {
		out.labels = make([][]string, len(t.labels))
		for i, l := range t.labels {
			out.labels[i] = append([]string(nil), l...)
		}
	}
	out.rows = make([][]any, len(t.rows))
	for i, row := range t.rows {
		out.rows[i] = append([]any(nil), row...)
	}
	return out
}

// Equal reports whether two tables have the same index, columns and cells.
// NaN cells compare equal to each other.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !equalStrings(t.indexNames, o.indexNames) || !equalStrings(t.columns, o.columns) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.rows {
		if !t.Positional() && !equalStrings(t.labels[i], o.labels[i]) {
			return false
		}
		for c := range t.rows[i] {
			if !equalCell(t.rows[i][c], o.rows[i][c]) {
				return false
			}
		}
	}
	return true
}

func equalCell(a, b any) bool {
	fa, aok := a.(float64)
	fb, bok := b.(float64)
	if aok && bok {
		return fa == fb || (math.IsNaN(fa) && math.IsNaN(fb))
	}
	return a == b
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
