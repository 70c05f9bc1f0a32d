package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter buffers results and writes them as one YAML document on Flush.
type YAMLWriter struct {
	w     *bufio.Writer
	items []any
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: bufio.NewWriter(w)}
}

// Write buffers a single item.
func (w *YAMLWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

// WriteAll buffers multiple items.
func (w *YAMLWriter) WriteAll(data []any) error {
	w.items = append(w.items, data...)
	return nil
}

// Flush writes and clears the buffered items.
func (w *YAMLWriter) Flush() error {
	if len(w.items) == 0 {
		return w.w.Flush()
	}

	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	var payload any = w.items
	if len(w.items) == 1 {
		payload = w.items[0]
	}
	w.items = nil

	if err := encoder.Encode(payload); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *YAMLWriter) Close() error {
	return w.Flush()
}
