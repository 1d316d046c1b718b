package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MissingHeadersError lists required headers absent from an uploaded sheet.
type MissingHeadersError struct {
	Missing []string
}

func (e *MissingHeadersError) Error() string {
	return fmt.Sprintf("missing required headers: %s", strings.Join(e.Missing, ", "))
}

// WorkbookExporter renders and parses single sheet xlsx workbooks.
type WorkbookExporter struct{}

// NewWorkbookExporter constructs the exporter.
func NewWorkbookExporter() *WorkbookExporter {
	return &WorkbookExporter{}
}

// Render writes the dataset into a workbook with one sheet named sheet.
func (e *WorkbookExporter) Render(sheet string, data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("workbook requires at least one header")
	}
	sheet = sheetName(sheet)

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for i, record := range data.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse reads the first sheet. Header matching is case-insensitive and the
// returned rows are keyed by the canonical names in required. Extra columns
// are keyed by their lower-cased header. Blank rows are skipped.
func (e *WorkbookExporter) Parse(r io.Reader, required []string) (Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Dataset{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Dataset{}, &MissingHeadersError{Missing: required}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Dataset{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return Dataset{}, &MissingHeadersError{Missing: required}
	}

	canonical := make(map[string]string, len(required))
	for _, h := range required {
		canonical[strings.ToLower(h)] = h
	}

	columns := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(rows[0]))
	for i, raw := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(raw))
		if name, ok := canonical[key]; ok {
			key = name
		}
		columns[i] = key
		seen[key] = true
	}

	var missing []string
	for _, h := range required {
		if !seen[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return Dataset{}, &MissingHeadersError{Missing: missing}
	}

	data := Dataset{Headers: columns}
	for _, row := range rows[1:] {
		record := make(map[string]string, len(columns))
		empty := true
		for i, col := range columns {
			if col == "" || i >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[i])
			if value != "" {
				empty = false
			}
			record[col] = value
		}
		if !empty {
			data.Rows = append(data.Rows, record)
		}
	}
	return data, nil
}

func sheetName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Sheet1"
	}
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
