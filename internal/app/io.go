package app

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tabular-anonymizer/internal/models"
)

// utf8BOM is prepended to every CSV artifact so spreadsheet tools decode
// Hangul correctly.
const utf8BOM = "\xef\xbb\xbf"

// LoadCSV reads a CSV file into a dataset. The first row is the header;
// when at least half its cells are blank the real header is assumed to be
// the next row and is promoted.
func LoadCSV(path string) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	rows[0][0] = strings.TrimPrefix(rows[0][0], utf8BOM)

	header := rows[0]
	data := rows[1:]
	if shouldPromoteHeader(header) && len(data) > 0 {
		header = data[0]
		data = data[1:]
	}

	ds := models.NewDataset()
	for col, name := range header {
		values := make([]string, len(data))
		for row, record := range data {
			if col < len(record) {
				values[row] = record[col]
			}
		}
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("column_%d", col+1)
		}
		ds.AddColumn(name, values)
	}

	return ds, nil
}

// shouldPromoteHeader reports whether the header row looks auto-generated:
// half or more of its cells are blank.
func shouldPromoteHeader(header []string) bool {
	if len(header) == 0 {
		return false
	}
	blank := 0
	for _, name := range header {
		if strings.TrimSpace(name) == "" {
			blank++
		}
	}
	return float64(blank)/float64(len(header)) >= 0.5
}

// SaveCSV writes a dataset to a CSV file, BOM first.
func SaveCSV(path string, ds *models.Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(ds.ColumnNames()); err != nil {
		return err
	}
	for row := 0; row < ds.NumRows(); row++ {
		record := make([]string, ds.NumColumns())
		for col, c := range ds.Columns {
			record[col] = c.Values[row]
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
