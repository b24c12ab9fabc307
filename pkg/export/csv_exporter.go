package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM lets spreadsheet software detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVOption tunes the CSV dialect.
type CSVOption func(*CSVExporter)

// WithSeparator sets the field separator.
func WithSeparator(sep rune) CSVOption {
	return func(e *CSVExporter) { e.separator = sep }
}

// WithBOM prefixes the output with a UTF-8 byte-order mark.
func WithBOM() CSVOption {
	return func(e *CSVExporter) { e.bom = true }
}

// WithCRLF terminates records with \r\n.
func WithCRLF() CSVOption {
	return func(e *CSVExporter) { e.crlf = true }
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct {
	separator rune
	bom       bool
	crlf      bool
}

// NewCSVExporter builds a CSV exporter; the default dialect is RFC 4180 with commas and \n.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{separator: ','}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Excel returns the dialect Russian-locale Excel opens without an import wizard.
func Excel() *CSVExporter {
	return NewCSVExporter(WithSeparator(';'), WithBOM(), WithCRLF())
}

// Render produces CSV encoded bytes for the dataset.
// Fields containing the separator, quotes, or line breaks are quoted with doubled inner quotes.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	if e.bom {
		buf.Write(utf8BOM)
	}
	writer := csv.NewWriter(buf)
	writer.Comma = e.separator
	writer.UseCRLF = e.crlf
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
