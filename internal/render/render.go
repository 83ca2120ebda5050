// Package render writes tables, records and lists to the terminal as styled
// tables, or as CSV, JSON or YAML for scripts.
package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/smileynet/etm/internal/config"
	"github.com/smileynet/etm/table"
)

// maxDecimals caps the fraction digits shown in styled tables.
const maxDecimals = 4

// Field is one named value of a record.
type Field struct {
	Name  string
	Value any
}

// Renderer writes values in one output format.
type Renderer struct {
	w       io.Writer
	format  string
	printer *message.Printer
}

// New returns a Renderer for format. "auto" (or "") resolves to a styled
// table when w is a terminal and CSV otherwise.
func New(w io.Writer, format string) (*Renderer, error) {
	switch format {
	case "", config.FormatAuto:
		format = config.FormatCSV
		if IsTTY(w) {
			format = config.FormatTable
		}
	case config.FormatTable, config.FormatCSV, config.FormatJSON, config.FormatYAML:
	default:
		return nil, fmt.Errorf("render: unknown format %q", format)
	}
	return &Renderer{
		w:       w,
		format:  format,
		printer: message.NewPrinter(language.English),
	}, nil
}

// IsTTY reports whether w is connected to a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Format returns the resolved output format.
func (r *Renderer) Format() string { return r.format }

// Table writes t. Index levels are written as leading columns.
func (r *Renderer) Table(t *table.Table) error {
	switch r.format {
	case config.FormatCSV:
		return t.WriteCSV(r.w)
	case config.FormatJSON, config.FormatYAML:
		return r.encode(tableRecords(t))
	default:
		_, err := fmt.Fprintln(r.w, StyledTable(t, r.printer))
		return err
	}
}

// Record writes an ordered set of named values.
func (r *Renderer) Record(fields []Field) error {
	switch r.format {
	case config.FormatCSV:
		cw := csv.NewWriter(r.w)
		_ = cw.Write([]string{"field", "value"})
		for _, f := range fields {
			_ = cw.Write([]string{f.Name, table.Format(table.Normalize(f.Value))})
		}
		cw.Flush()
		return cw.Error()
	case config.FormatJSON, config.FormatYAML:
		rec := make(orderedRecord, len(fields))
		copy(rec, fields)
		return r.encode(rec)
	default:
		width := 0
		for _, f := range fields {
			width = max(width, lipgloss.Width(f.Name))
		}
		key := keyStyle.Width(width + 2)
		for _, f := range fields {
			if _, err := fmt.Fprintln(r.w, key.Render(f.Name)+r.cell(f.Value)); err != nil {
				return err
			}
		}
		return nil
	}
}

// List writes an ordered list of names.
func (r *Renderer) List(items []string) error {
	switch r.format {
	case config.FormatCSV:
		for _, it := range items {
			if _, err := fmt.Fprintln(r.w, it); err != nil {
				return err
			}
		}
		return nil
	case config.FormatJSON, config.FormatYAML:
		return r.encode(append([]string{}, items...))
	default:
		pos := dimStyle.Width(len(strconv.Itoa(len(items))) + 2)
		for i, it := range items {
			if _, err := fmt.Fprintln(r.w, pos.Render(strconv.Itoa(i+1)+".")+it); err != nil {
				return err
			}
		}
		return nil
	}
}

// Message writes a one-line status message. Machine formats get nothing.
func (r *Renderer) Message(format string, args ...any) {
	if r.format == config.FormatTable {
		fmt.Fprintln(r.w, okStyle.Render(fmt.Sprintf(format, args...)))
	}
}

func (r *Renderer) encode(v any) error {
	if r.format == config.FormatYAML {
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("render: encoding yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("render: encoding json: %w", err)
	}
	return nil
}

func (r *Renderer) cell(v any) string { return Cell(r.printer, v) }

// Cell formats a value for display, grouping digits and trimming floats to
// at most four decimals. Integers such as ids and years are left ungrouped.
// Missing values render as an empty string.
func Cell(p *message.Printer, v any) string {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	v = table.Normalize(v)
	f, ok := v.(float64)
	if !ok {
		return table.Format(v)
	}
	if math.IsNaN(f) {
		return ""
	}
	if math.IsInf(f, 0) {
		return table.Format(f)
	}
	decimals := 0
	if s := strconv.FormatFloat(f, 'f', -1, 64); strings.Contains(s, ".") {
		decimals = min(len(s)-strings.Index(s, ".")-1, maxDecimals)
	}
	return p.Sprintf(fmt.Sprintf("%%.%df", decimals), f)
}

// StyledTable lays t out as a bordered terminal table.
func StyledTable(t *table.Table, p *message.Printer) string {
	headers := append(t.IndexNames(), t.Columns()...)
	if t.Positional() {
		headers = append([]string{""}, headers...)
	}
	nIndex := len(headers) - len(t.Columns())

	rows := make([][]string, t.Len())
	for i := range rows {
		row := make([]string, 0, len(headers))
		row = append(row, t.Label(i)...)
		for _, c := range t.Columns() {
			v, _ := t.Value(i, c)
			row = append(row, Cell(p, v))
		}
		rows[i] = row
	}

	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == ltable.HeaderRow:
				return headerStyle
			case col < nIndex:
				return indexStyle
			default:
				return numberStyle
			}
		}).
		String()
}

// tableRecords converts t into one ordered record per row.
func tableRecords(t *table.Table) []orderedRecord {
	out := make([]orderedRecord, t.Len())
	for i := range out {
		rec := make(orderedRecord, 0, len(t.IndexNames())+len(t.Columns()))
		if t.Positional() {
			rec = append(rec, Field{Name: "index", Value: i})
		} else {
			for j, name := range t.IndexNames() {
				rec = append(rec, Field{Name: name, Value: t.Label(i)[j]})
			}
		}
		for _, c := range t.Columns() {
			v, _ := t.Value(i, c)
			rec = append(rec, Field{Name: c, Value: v})
		}
		out[i] = rec
	}
	return out
}

// orderedRecord encodes as a JSON object or YAML mapping that keeps field
// order.
type orderedRecord []Field

func (o orderedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(jsonSafe(f.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o orderedRecord) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range o {
		var val yaml.Node
		if err := val.Encode(jsonSafe(f.Value)); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
			&val,
		)
	}
	return node, nil
}

// jsonSafe maps NaN and infinities, which JSON cannot carry, to nil.
func jsonSafe(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}
