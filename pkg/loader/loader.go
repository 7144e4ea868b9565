// pkg/loader/loader.go
package loader

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

var (
	// ErrEmptyInput is returned when a file has no header row
	ErrEmptyInput = errors.New("input has no header row")
	// ErrUnsupportedFormat is returned for file extensions other than .csv and .xlsx
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// DefaultNullMarkers are the raw cell texts read as missing
var DefaultNullMarkers = []string{"", "NA", "N/A", "null", "NULL", "NaN", "nan", "None"}

// Options controls how raw cells become values
type Options struct {
	// NullMarkers are compared against the whitespace-trimmed cell text
	NullMarkers []string
	// Sheet selects the worksheet of an Excel file; empty means the first one
	Sheet string
}

// DefaultOptions returns the default loader options
func DefaultOptions() Options {
	return Options{NullMarkers: DefaultNullMarkers}
}

func (o Options) markers() map[string]bool {
	m := make(map[string]bool, len(o.NullMarkers))
	for _, s := range o.NullMarkers {
		m[s] = true
	}
	return m
}

// ReadFile loads a CSV or Excel file chosen by extension
func ReadFile(path string, opts Options) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f, opts)
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, opts)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
}

// WriteFile writes a table as CSV or Excel chosen by extension
func WriteFile(path string, t *model.Table) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".xlsx" {
		return errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()

	if ext == ".xlsx" {
		return WriteXLSX(f, t)
	}
	return WriteCSV(f, t)
}

// ReadCSV reads a header row followed by data rows. Every data row must have
// as many fields as the header.
func ReadCSV(r io.Reader, opts Options) (*model.Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV")
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return buildTable(header, records[1:], opts)
}

// ReadXLSX reads the selected worksheet. Rows shorter than the header are padded
// with missing cells, as Excel omits trailing empty cells.
func ReadXLSX(r io.Reader, opts Options) (*model.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workbook")
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheet)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	header := rows[0]
	body := make([][]string, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) > len(header) {
			return nil, errors.Wrapf(model.ErrRaggedTable, "sheet %q row %d has %d cells, header has %d", sheet, i+2, len(row), len(header))
		}
		padded := make([]string, len(header))
		copy(padded, row)
		body = append(body, padded)
	}
	return buildTable(header, body, opts)
}

func buildTable(header []string, rows [][]string, opts Options) (*model.Table, error) {
	nulls := opts.markers()
	cols := make([]*model.Column, len(header))
	for j, name := range header {
		cols[j] = model.NewColumn(name, make([]model.Value, len(rows)))
	}
	for i, row := range rows {
		for j, raw := range row {
			if nulls[strings.TrimSpace(raw)] {
				cols[j].Values[i] = model.Missing()
			} else {
				cols[j].Values[i] = model.StringValue(raw)
			}
		}
	}
	return model.NewTable(cols...)
}

// WriteCSV writes the header and every row; missing cells are written empty
func WriteCSV(w io.Writer, t *model.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	record := make([]string, t.NumColumns())
	for i := 0; i < t.NumRows(); i++ {
		for j, v := range t.Row(i) {
			record[j] = v.Text()
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "failed to write CSV row %d", i+1)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush CSV")
}

// WriteXLSX writes the table to the first sheet of a new workbook, keeping
// numeric, boolean and date cells typed
func WriteXLSX(w io.Writer, t *model.Table) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, t.NumColumns())
	for j, name := range t.Names() {
		header[j] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "failed to write header")
	}

	for i := 0; i < t.NumRows(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "failed to address row")
		}
		row := make([]interface{}, t.NumColumns())
		for j, v := range t.Row(i) {
			row[j] = cellValue(v)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i+1)
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}

func cellValue(v model.Value) interface{} {
	switch v.Kind {
	case model.KindMissing:
		return nil
	case model.KindInt:
		return v.Int
	case model.KindFloat:
		return v.Float
	case model.KindBool:
		return v.Bool
	case model.KindDate:
		// Written as ISO text so a reread parses with the same date format
		return v.Text()
	default:
		return v.Str
	}
}
