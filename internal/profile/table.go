package profile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// Table is a tabular profile source. Rows returns every row as a list of cell values.
type Table interface {
	Rows() ([][]string, error)
}

type xlsxTable struct {
	path  string
	sheet string
}

// NewXLSXTable returns a table reading one sheet of a workbook.
// If sheet is empty the first sheet of the workbook is used.
func NewXLSXTable(path, sheet string) Table {
	return &xlsxTable{path: path, sheet: sheet}
}

func (x *xlsxTable) Rows() ([][]string, error) {
	f, err := excelize.OpenFile(x.path)
	if err != nil {
		return nil, fmt.Errorf("cannot open workbook '%s': %w", x.path, err)
	}
	defer f.Close()

	sheet := x.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook '%s' has no sheets", x.path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("cannot read sheet '%s' of '%s': %w", sheet, x.path, err)
	}

	return rows, nil
}

type delimitedTable struct {
	path  string
	comma rune
}

// NewDelimitedTable returns a table reading a csv-like file with the given separator.
// A zero separator is detected from the first line: ';', tab, then ','.
func NewDelimitedTable(path string, comma rune) Table {
	return &delimitedTable{path: path, comma: comma}
}

func (d *delimitedTable) Rows() ([][]string, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readDelimited(f, d.comma)
}

func readDelimited(r io.Reader, comma rune) ([][]string, error) {
	if comma == 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		comma = sniffSeparator(data)
		r = bytes.NewReader(data)
	}

	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("cannot parse table: %w", err)
	}

	return rows, nil
}

func sniffSeparator(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	switch {
	case bytes.IndexByte(line, ';') >= 0:
		return ';'
	case bytes.IndexByte(line, '\t') >= 0:
		return '\t'
	default:
		return ','
	}
}

// rowsTable serves rows already in memory.
type rowsTable [][]string

func (r rowsTable) Rows() ([][]string, error) {
	return r, nil
}

// NewRowsTable wraps rows already read by another collaborator.
func NewRowsTable(rows [][]string) Table {
	return rowsTable(rows)
}
