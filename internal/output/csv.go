package output

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter writes Tabular results as rows. The header comes from the first
// result written.
type CSVWriter struct {
	w           *csv.Writer
	header      bool
	wroteHeader bool
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(w io.Writer, header bool) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), header: header}
}

// Write writes the rows of a single result.
func (w *CSVWriter) Write(data any) error {
	t, ok := data.(Tabular)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotTabular, data)
	}

	if w.header && !w.wroteHeader {
		if err := w.w.Write(t.Columns()); err != nil {
			return fmt.Errorf("csv: write header: %w", err)
		}
		w.wroteHeader = true
	}
	for _, row := range t.Rows() {
		if err := w.w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	return w.Flush()
}

// WriteAll writes the rows of multiple results.
func (w *CSVWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes buffered rows.
func (w *CSVWriter) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// Close flushes the writer.
func (w *CSVWriter) Close() error {
	return w.Flush()
}
