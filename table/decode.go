package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// DecodeError indicates a payload could not be shaped into a table.
type DecodeError struct {
	Format string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "table: decoding " + e.Format + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CSVOptions controls how ReadCSV builds the row index.
type CSVOptions struct {
	// Index names the columns that label rows. Empty gives a positional index.
	Index []string
	// Drop names columns to discard, such as a server timestamp column
	// whose labels are not trusted. Missing columns are ignored.
	Drop []string
}

// ReadCSV decodes a CSV payload with a header row.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Format: "csv", Reason: "empty payload"}
		}
		return nil, &DecodeError{Format: "csv", Reason: "reading header", Err: err}
	}

	where := make(map[string]int, len(header))
	for i, h := range header {
		where[h] = i
	}

	indexAt := make([]int, len(opts.Index))
	for i, name := range opts.Index {
		at, ok := where[name]
		if !ok {
			return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("missing index column %q", name)}
		}
		indexAt[i] = at
	}

	skip := make(map[int]bool, len(opts.Index)+len(opts.Drop))
	for _, at := range indexAt {
		skip[at] = true
	}
	for _, name := range opts.Drop {
		if at, ok := where[name]; ok {
			skip[at] = true
		}
	}

	var columns []string
	var valueAt []int
	for i, h := range header {
		if skip[i] {
			continue
		}
		columns = append(columns, h)
		valueAt = append(valueAt, i)
	}

	t := New(opts.Index, columns)
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d", line), Err: err}
		}
		if len(rec) != len(header) {
			return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d has %d fields, want %d", line, len(rec), len(header))}
		}

		labels := make([]string, len(indexAt))
		for i, at := range indexAt {
			labels[i] = rec[at]
		}
		values := make([]any, len(valueAt))
		for i, at := range valueAt {
			values[i] = parseCell(rec[at])
		}
		if err := t.Append(labels, values); err != nil {
			return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d", line), Err: err}
		}
	}
	return t, nil
}

// ReadSeries decodes a headerless payload of one value per line into a
// positional table with a single column called name.
func ReadSeries(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 1
	cr.TrimLeadingSpace = true

	t := New(nil, []string{name})
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d", line), Err: err}
		}
		v := parseCell(strings.TrimSpace(rec[0]))
		if _, ok := v.(float64); !ok {
			return nil, &DecodeError{Format: "csv", Reason: fmt.Sprintf("line %d: %q is not a number", line, rec[0])}
		}
		_ = t.Append(nil, []any{v})
	}
	if t.Len() == 0 {
		return nil, &DecodeError{Format: "csv", Reason: "empty payload"}
	}
	return t, nil
}

// WriteCSV encodes the table as CSV with the index levels as leading columns.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append(t.IndexNames(), t.columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, row := range t.rows {
		rec := make([]string, 0, len(header))
		if !t.Positional() {
			rec = append(rec, t.labels[i]...)
		}
		for _, v := range row {
			rec = append(rec, Format(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FromRecords builds a table from a mapping of row key to record, the
// "orient=index" shape of the engine's JSON dumps. Rows are sorted by key.
// columns fixes the leading column order; keys found in records but not in
// columns are appended in sorted order. Columns absent from a record are nil.
func FromRecords(indexName string, records map[string]map[string]any, columns []string) *Table {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := New([]string{indexName}, mergeColumns(columns, func(yield func(string)) {
		for _, rec := range records {
			for k := range rec {
				yield(k)
			}
		}
	}))

	for _, k := range keys {
		rec := records[k]
		values := make([]any, len(t.columns))
		for i, c := range t.columns {
			values[i] = rec[c]
		}
		// Append cannot fail: label and value counts match by construction.
		_ = t.Append([]string{k}, values)
	}
	return t
}

// FromRecordList builds a table from a list of records, using the indexKey
// field of each record as its row label. Records without that field are
// rejected. Rows keep their order.
func FromRecordList(indexKey string, records []map[string]any, columns []string) (*Table, error) {
	t := New([]string{indexKey}, mergeColumns(columns, func(yield func(string)) {
		for _, rec := range records {
			for k := range rec {
				if k != indexKey {
					yield(k)
				}
			}
		}
	}))

	for i, rec := range records {
		key, ok := rec[indexKey]
		if !ok || key == nil {
			return nil, &DecodeError{Format: "json", Reason: fmt.Sprintf("record %d has no %q field", i, indexKey)}
		}
		values := make([]any, len(t.columns))
		for j, c := range t.columns {
			values[j] = rec[c]
		}
		if err := t.Append([]string{Format(Normalize(key))}, values); err != nil {
			return nil, &DecodeError{Format: "json", Reason: fmt.Sprintf("record %d", i), Err: err}
		}
	}
	return t, nil
}

// mergeColumns returns fixed followed by the sorted extra names produced by each.
func mergeColumns(fixed []string, each func(yield func(string))) []string {
	seen := make(map[string]bool, len(fixed))
	out := append([]string(nil), fixed...)
	for _, c := range fixed {
		seen[c] = true
	}
	var extra []string
	each(func(k string) {
		if !seen[k] {
			seen[k] = true
			extra = append(extra, k)
		}
	})
	sort.Strings(extra)
	return append(out, extra...)
}
