package render

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/smileynet/etm/table"
)

func demandTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New([]string{"key"}, []string{"demand", "unit"})
	if err := tbl.Append([]string{"households"}, []any{1234.5, "PJ"}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Append([]string{"industry"}, []any{nil, "PJ"}); err != nil {
		t.Fatal(err)
	}
	return tbl
}

func mustRenderer(t *testing.T, format string) (*Renderer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	r, err := New(&buf, format)
	if err != nil {
		t.Fatalf("New(%q) error = %v", format, err)
	}
	return r, &buf
}

func TestNew_ResolvesFormat(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{format: "", want: "csv"},
		{format: "auto", want: "csv"},
		{format: "table", want: "table"},
		{format: "json", want: "json"},
		{format: "yaml", want: "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			// Given a buffer, which is never a terminal
			r, _ := mustRenderer(t, tt.format)

			// Then auto resolves to csv
			if r.Format() != tt.want {
				t.Errorf("Format() = %q, want %q", r.Format(), tt.want)
			}
		})
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "xml"); err == nil {
		t.Fatal("New(xml) should return error")
	}
}

func TestIsTTY_NonFile(t *testing.T) {
	if IsTTY(&bytes.Buffer{}) {
		t.Error("IsTTY(buffer) = true, want false")
	}
}

func TestTable_CSV(t *testing.T) {
	r, buf := mustRenderer(t, "csv")

	if err := r.Table(demandTable(t)); err != nil {
		t.Fatalf("Table() error = %v", err)
	}

	want := "key,demand,unit\nhouseholds,1234.5,PJ\nindustry,,PJ\n"
	if buf.String() != want {
		t.Errorf("csv output =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestTable_JSONKeepsColumnOrder(t *testing.T) {
	r, buf := mustRenderer(t, "json")

	if err := r.Table(demandTable(t)); err != nil {
		t.Fatalf("Table() error = %v", err)
	}

	out := buf.String()
	if strings.Index(out, `"key"`) > strings.Index(out, `"demand"`) ||
		strings.Index(out, `"demand"`) > strings.Index(out, `"unit"`) {
		t.Errorf("json output lost column order:\n%s", out)
	}
	var rows []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["key"] != "households" || rows[0]["demand"] != 1234.5 {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1]["demand"] != nil {
		t.Errorf("missing demand = %v, want null", rows[1]["demand"])
	}
}

func TestTable_YAMLPositionalIndex(t *testing.T) {
	// Given a curve-shaped table with a NaN sample
	tbl := table.New(nil, []string{"a"})
	_ = tbl.Append(nil, []any{1.0})
	_ = tbl.Append(nil, []any{math.NaN()})
	r, buf := mustRenderer(t, "yaml")

	if err := r.Table(tbl); err != nil {
		t.Fatalf("Table() error = %v", err)
	}

	// Then each row carries its position and NaN becomes null
	var rows []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("output is not yaml: %v\n%s", err, buf.String())
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[1]["index"] != 1 {
		t.Errorf("index = %v, want 1", rows[1]["index"])
	}
	if rows[1]["a"] != nil {
		t.Errorf("a = %v, want nil", rows[1]["a"])
	}
}

func TestTable_Styled(t *testing.T) {
	r, buf := mustRenderer(t, "table")

	if err := r.Table(demandTable(t)); err != nil {
		t.Fatalf("Table() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"key", "demand", "households", "1,234.5", "PJ"} {
		if !strings.Contains(out, want) {
			t.Errorf("styled output missing %q:\n%s", want, out)
		}
	}
}

func TestCell(t *testing.T) {
	p := message.NewPrinter(language.English)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "grouped integral float", in: 1234567.0, want: "1,234,567"},
		{name: "short fraction kept", in: 0.5, want: "0.5"},
		{name: "long fraction capped", in: 1.0 / 3, want: "0.3333"},
		{name: "int ungrouped", in: 123456, want: "123456"},
		{name: "int64 ungrouped", in: int64(2050), want: "2050"},
		{name: "nil", in: nil, want: ""},
		{name: "NaN", in: math.NaN(), want: ""},
		{name: "string", in: "PJ", want: "PJ"},
		{name: "bool", in: true, want: "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cell(p, tt.in); got != tt.want {
				t.Errorf("Cell(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecord(t *testing.T) {
	fields := []Field{
		{Name: "id", Value: int64(42)},
		{Name: "title", Value: "Base"},
		{Name: "end_year", Value: 2050},
	}

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{
			format: "csv",
			check: func(t *testing.T, out string) {
				want := "field,value\nid,42\ntitle,Base\nend_year,2050\n"
				if out != want {
					t.Errorf("csv = %q, want %q", out, want)
				}
			},
		},
		{
			format: "json",
			check: func(t *testing.T, out string) {
				want := "{\n  \"id\": 42,\n  \"title\": \"Base\",\n  \"end_year\": 2050\n}\n"
				if out != want {
					t.Errorf("json = %q, want %q", out, want)
				}
			},
		},
		{
			format: "yaml",
			check: func(t *testing.T, out string) {
				want := "id: 42\ntitle: Base\nend_year: 2050\n"
				if out != want {
					t.Errorf("yaml = %q, want %q", out, want)
				}
			},
		},
		{
			format: "table",
			check: func(t *testing.T, out string) {
				lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
				if len(lines) != 3 {
					t.Fatalf("lines = %d, want 3:\n%s", len(lines), out)
				}
				if !strings.Contains(lines[0], "id") || !strings.Contains(lines[0], "42") {
					t.Errorf("line 0 = %q", lines[0])
				}
				if !strings.Contains(lines[2], "2050") {
					t.Errorf("line 2 = %q", lines[2])
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			r, buf := mustRenderer(t, tt.format)
			if err := r.Record(fields); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			tt.check(t, buf.String())
		})
	}
}

func TestList(t *testing.T) {
	items := []string{"households_water_heater", "buildings_space_heater"}

	tests := []struct {
		format string
		want   string
	}{
		{format: "csv", want: "households_water_heater\nbuildings_space_heater\n"},
		{format: "json", want: "[\n  \"households_water_heater\",\n  \"buildings_space_heater\"\n]\n"},
		{format: "yaml", want: "- households_water_heater\n- buildings_space_heater\n"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			r, buf := mustRenderer(t, tt.format)
			if err := r.List(items); err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestList_StyledNumbersItems(t *testing.T) {
	r, buf := mustRenderer(t, "table")
	_ = r.List([]string{"first", "second"})

	out := buf.String()
	if !strings.Contains(out, "1.") || !strings.Contains(out, "2.") || !strings.Contains(out, "second") {
		t.Errorf("styled list = %q", out)
	}
}

func TestMessage_OnlyStyled(t *testing.T) {
	r, buf := mustRenderer(t, "csv")
	r.Message("saved %d", 1)
	if buf.Len() != 0 {
		t.Errorf("csv Message wrote %q", buf.String())
	}

	r, buf = mustRenderer(t, "table")
	r.Message("saved %d", 1)
	if !strings.Contains(buf.String(), "saved 1") {
		t.Errorf("table Message wrote %q", buf.String())
	}
}
