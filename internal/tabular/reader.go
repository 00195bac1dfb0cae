// Package tabular reads recipient data sources (xlsx spreadsheets or csv
// files) into ordered, header-keyed rows.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/letterdrop/letterdrop/internal/model"
)

// Format identifies the data source encoding
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat infers the format from a filename, defaulting to xlsx
func DetectFormat(filename string) Format {
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return FormatCSV
	}
	return FormatXLSX
}

// Row maps column names to cell values for one data row
type Row map[string]string

// Table holds the parsed data source: the header in original order and
// the data rows in original order
type Table struct {
	Columns []string
	Rows    []Row
}

// RequireColumns checks the structural precondition that every named
// column is present. It must be called before any row is processed.
func (t *Table) RequireColumns(names ...string) error {
	present := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		present[c] = true
	}
	var missing []string
	for _, name := range names {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return model.NewValidationError("columns",
			fmt.Sprintf("data source must contain columns: %s (missing: %s)",
				strings.Join(names, ", "), strings.Join(missing, ", ")))
	}
	return nil
}

// Read parses the raw data source bytes into a Table
func Read(data []byte, format Format) (*Table, error) {
	switch format {
	case FormatCSV:
		return readCSV(data)
	default:
		return readXLSX(data)
	}
}

func readXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &model.ParseError{Err: fmt.Errorf("open xlsx: %w", err)}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &model.ParseError{Err: errors.New("xlsx has no sheets")}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &model.ParseError{Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}
	return buildTable(rows)
}

func readCSV(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // rows may be ragged, pad below

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &model.ParseError{Err: fmt.Errorf("read csv: %w", err)}
		}
		records = append(records, rec)
	}
	return buildTable(records)
}

func buildTable(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, &model.ParseError{Err: errors.New("data source is empty")}
	}

	var columns []string
	for _, c := range records[0] {
		columns = append(columns, strings.TrimSpace(c))
	}

	t := &Table{Columns: columns}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if col == "" {
				continue
			}
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
