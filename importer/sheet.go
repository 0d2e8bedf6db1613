package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

type SheetFormat string

const (
	FormatXlsx SheetFormat = "xlsx"
	FormatCsv  SheetFormat = "csv"
)

// FormatFromFilename picks the sheet format from a file extension.
func FormatFromFilename(name string) (SheetFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FormatXlsx, nil
	case ".csv":
		return FormatCsv, nil
	}
	return "", fmt.Errorf("invalid file type %q: only .xlsx and .csv files are allowed", filepath.Ext(name))
}

// ReadSheet reads the first worksheet of an .xlsx workbook or a .csv file. The first
// non-empty line is the header; blank lines are skipped.
func ReadSheet(r io.Reader, format SheetFormat) ([]ImportRow, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatXlsx:
		records, err = readXlsxRecords(r)
	case FormatCsv:
		records, err = readCsvRecords(r)
	default:
		return nil, fmt.Errorf("unsupported sheet format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return recordsToRows(records), nil
}

func readXlsxRecords(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to open Excel file: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheet")
	}
	// raw values keep dates as serial numbers and amounts unformatted
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %v", err)
	}
	return rows, nil
}

func readCsvRecords(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv: %v", err)
	}
	return records, nil
}

// detectDelimiter picks ';' or ',' from the first non-empty line.
func detectDelimiter(data []byte) rune {
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
			return ';'
		}
		return ','
	}
	return ','
}

func recordsToRows(records [][]string) []ImportRow {
	var header []string
	rows := make([]ImportRow, 0, len(records))
	for _, rec := range records {
		if isBlankRecord(rec) {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		var row ImportRow
		for i, h := range header {
			if i >= len(rec) {
				break
			}
			row.set(h, rec[i])
		}
		rows = append(rows, row)
	}
	return rows
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
