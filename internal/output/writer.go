// Package output serializes scrape results for the CLI.
package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatJSONL, FormatYAML, FormatCSV}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", name)
}

// ErrNotTabular is returned by the CSV writer for values that cannot be
// flattened to rows.
var ErrNotTabular = errors.New("value cannot be written as csv")

// Tabular is implemented by values the CSV writer can flatten.
type Tabular interface {
	Columns() []string
	Rows() [][]string
}

// Writer handles output serialization.
type Writer interface {
	// Write outputs a single result.
	Write(data any) error

	// WriteAll outputs multiple results.
	WriteAll(data []any) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
	header bool
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// WithHeader controls the CSV header row.
func WithHeader(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.header = enabled
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
		header: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatCSV:
		return NewCSVWriter(w, cfg.header), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
