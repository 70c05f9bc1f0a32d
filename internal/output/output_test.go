package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// Test data structure
type testItem struct {
	Name  string `json:"name" yaml:"name"`
	Price int    `json:"price" yaml:"price"`
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
}

// testTable flattens to one row per item.
type testTable struct {
	store string
	items []testItem
}

func (t testTable) Columns() []string { return []string{"store", "name", "price"} }

func (t testTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.items))
	for _, it := range t.items {
		rows = append(rows, []string{t.store, it.Name, strconv.Itoa(it.Price)})
	}
	return rows
}

// --- Format Tests ---

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"json", "JSONL", " yaml ", "csv"} {
		if _, err := ParseFormat(name); err != nil {
			t.Errorf("ParseFormat(%q) error = %v", name, err)
		}
	}

	_, err := ParseFormat("xml")
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

// --- NewWriter Factory Tests ---

func TestNewWriter_Formats(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
		{FormatCSV, "*output.CSVWriter"},
	}
	for _, tt := range tests {
		w, err := NewWriter(&bytes.Buffer{}, tt.format)
		if err != nil {
			t.Fatalf("NewWriter(%s) error = %v", tt.format, err)
		}
		got := fmt.Sprintf("%T", w)
		if got != tt.want {
			t.Errorf("NewWriter(%s) = %T, want %s", tt.format, w, tt.want)
		}
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("unsupported"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_SingleItemIsObject(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "  ")

	if err := w.Write(testItem{Name: "라면", Price: 8000}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var result testItem
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if result.Name != "라면" || result.Price != 8000 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestJSONWriter_MultipleItemsIsArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")

	_ = w.WriteAll([]any{testItem{Name: "a"}, testItem{Name: "b"}, testItem{Name: "c"}})
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var result []testItem
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if len(result) != 3 {
		t.Errorf("expected 3 items, got %d", len(result))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Errorf("expected single line in compact output, got %d lines", len(lines))
	}
}

func TestJSONWriter_FlushClearsBuffer(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")

	_ = w.Write(testItem{Name: "once"})
	_ = w.Flush()
	_ = w.Close()

	if strings.Count(buf.String(), "once") != 1 {
		t.Errorf("item written more than once: %q", buf.String())
	}
}

func TestJSONWriter_EmptyWritesNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONWriter(buf, true, "  ").Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestJSONWriter_DoesNotEscapeURLs(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")

	_ = w.Write(testItem{Name: "x", Image: "https://img.example/a.jpg?w=1&h=2"})
	_ = w.Flush()

	if !strings.Contains(buf.String(), "w=1&h=2") {
		t.Errorf("expected raw ampersand, got %q", buf.String())
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_WriteAll(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)

	if err := w.WriteAll([]any{testItem{Name: "a", Price: 1}, testItem{Name: "b", Price: 2}}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var item testItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			t.Errorf("line %d: failed to unmarshal: %v", i, err)
		}
	}
}

func TestJSONLWriter_WritesImmediately(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)

	_ = w.Write(testItem{Name: "now"})
	if !strings.Contains(buf.String(), "now") {
		t.Error("expected line to be written without Flush")
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_SingleAndMultiple(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)
	_ = w.Write(testItem{Name: "김밥", Price: 4500})
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var single testItem
	if err := yaml.Unmarshal(buf.Bytes(), &single); err != nil {
		t.Fatalf("failed to unmarshal YAML: %v", err)
	}
	if single.Name != "김밥" || single.Price != 4500 {
		t.Errorf("unexpected result: %+v", single)
	}

	buf.Reset()
	_ = w.WriteAll([]any{testItem{Name: "a"}, testItem{Name: "b"}})
	_ = w.Close()

	var many []testItem
	if err := yaml.Unmarshal(buf.Bytes(), &many); err != nil {
		t.Fatalf("failed to unmarshal YAML: %v", err)
	}
	if len(many) != 2 {
		t.Errorf("expected 2 items, got %d", len(many))
	}
}

// --- CSVWriter Tests ---

func TestCSVWriter_HeaderOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewCSVWriter(buf, true)

	_ = w.Write(testTable{store: "1", items: []testItem{{Name: "라면", Price: 8000}, {Name: "김밥", Price: 4500}}})
	_ = w.Write(testTable{store: "2", items: []testItem{{Name: "우동, 큰", Price: 7000}}})
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "store,name,price" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[3][1] != "우동, 큰" {
		t.Errorf("expected quoted field to round-trip, got %q", rows[3][1])
	}
}

func TestCSVWriter_NoHeader(t *testing.T) {
	buf := &bytes.Buffer{}
	w, _ := NewWriter(buf, FormatCSV, WithHeader(false))

	_ = w.Write(testTable{store: "1", items: []testItem{{Name: "라면", Price: 8000}}})

	if strings.Contains(buf.String(), "store,name") {
		t.Errorf("header written despite WithHeader(false): %q", buf.String())
	}
}

func TestCSVWriter_RejectsNonTabular(t *testing.T) {
	w := NewCSVWriter(&bytes.Buffer{}, true)

	err := w.Write(testItem{Name: "x"})
	if !errors.Is(err, ErrNotTabular) {
		t.Errorf("expected ErrNotTabular, got %v", err)
	}
}
