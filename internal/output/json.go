package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter buffers results and writes them on Flush: a single result as an
// object, several as an array.
type JSONWriter struct {
	w      *bufio.Writer
	pretty bool
	indent string
	items  []any
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

// Write buffers a single item.
func (w *JSONWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

// WriteAll buffers multiple items.
func (w *JSONWriter) WriteAll(data []any) error {
	w.items = append(w.items, data...)
	return nil
}

// Flush writes and clears the buffered items. Nothing is written when the
// buffer is empty.
func (w *JSONWriter) Flush() error {
	if len(w.items) == 0 {
		return w.w.Flush()
	}

	enc := newEncoder(w.w)
	if w.pretty {
		enc.SetIndent("", w.indent)
	}

	var payload any = w.items
	if len(w.items) == 1 {
		payload = w.items[0]
	}
	w.items = nil

	// Encode terminates the value with a newline
	if err := enc.Encode(payload); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter writes newline-delimited JSON (JSONL), one result per line.
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	bw := bufio.NewWriter(w)
	return &JSONLWriter{w: bw, enc: newEncoder(bw)}
}

// Write writes a single item as a JSON line.
func (w *JSONLWriter) Write(data any) error {
	if err := w.enc.Encode(data); err != nil {
		return err
	}
	return w.w.Flush()
}

// WriteAll writes multiple items as JSON lines.
func (w *JSONLWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}

// newEncoder leaves &, < and > in image URLs unescaped.
func newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}
