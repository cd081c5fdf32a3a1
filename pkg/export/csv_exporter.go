package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// formulaTriggers are the leading characters spreadsheets evaluate as a formula.
const formulaTriggers = "=+-@\t\r"

// escapeCell prefixes cells a spreadsheet would evaluate with a single quote.
func escapeCell(value string) string {
	if value != "" && strings.ContainsRune(formulaTriggers, rune(value[0])) {
		return "'" + value
	}
	return value
}

// unescapeCell reverses escapeCell.
func unescapeCell(value string) string {
	if len(value) > 1 && value[0] == '\'' && strings.ContainsRune(formulaTriggers, rune(value[1])) {
		return value[1:]
	}
	return value
}

// Render produces CSV encoded bytes for the dataset. Cells starting with a
// formula character are prefixed with a single quote.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	headers := make([]string, len(data.Headers))
	for i, header := range data.Headers {
		headers[i] = escapeCell(header)
	}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = escapeCell(row[header])
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

// Parse reads CSV produced by Render back into a Dataset, dropping the quote
// Render adds to formula cells. Short rows are padded with empty cells; a
// missing header row is an error.
func (e *CSVExporter) Parse(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Dataset{}, fmt.Errorf("csv requires a header row")
		}
		return Dataset{}, fmt.Errorf("read csv headers: %w", err)
	}
	for i := range headers {
		headers[i] = unescapeCell(strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff")))
	}

	data := Dataset{Headers: headers}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read csv row: %w", err)
		}
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = unescapeCell(strings.TrimSpace(record[i]))
			} else {
				row[header] = ""
			}
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}
