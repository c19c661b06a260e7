package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for dataset file extensions no loader
// handles.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// Dataset is a parsed tabular file. Rows holds data rows only; every row has
// exactly len(Headers) cells, padded or truncated by the loader.
type Dataset struct {
	Filename string
	Headers  []string
	Rows     [][]string
}

// LoadFile parses the dataset at path, dispatching on its extension.
func LoadFile(path string) (Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".xlsx", ".xls":
		return LoadExcel(path)
	default:
		return Dataset{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func LoadCSV(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to parse CSV file: %w", err)
	}

	return fromRecords(filepath.Base(path), records)
}

func LoadExcel(path string) (Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Dataset{}, fmt.Errorf("excel file has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	return fromRecords(filepath.Base(path), records)
}

func fromRecords(filename string, records [][]string) (Dataset, error) {
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("dataset has no header row")
	}

	headers := records[0]
	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]string, len(headers))
		copy(row, record)
		rows = append(rows, row)
	}

	return Dataset{Filename: filename, Headers: headers, Rows: rows}, nil
}
