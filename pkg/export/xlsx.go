// Package export converts collected CSV output into spreadsheet files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet name used when none is given.
const DefaultSheet = "Sheet1"

// CSVToXLSX streams the CSV at in into a new XLSX workbook at out and
// returns the number of data rows written (header excluded). It refuses to
// overwrite an existing output file.
func CSVToXLSX(in, out, sheet string) (int, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	if _, err := os.Stat(out); err == nil {
		return 0, fmt.Errorf("output %s already exists", out)
	}

	src, err := os.Open(in)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", in, err)
	}
	defer src.Close()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			return 0, fmt.Errorf("rename sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return 0, fmt.Errorf("stream writer: %w", err)
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1

	rowIdx := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", in, err)
		}

		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return 0, err
		}
		values := make([]interface{}, len(rec))
		for i, v := range rec {
			values[i] = v
		}
		if err := sw.SetRow(cell, values); err != nil {
			return 0, fmt.Errorf("write row %d: %w", rowIdx, err)
		}
		rowIdx++
	}

	if err := sw.Flush(); err != nil {
		return 0, fmt.Errorf("flush stream: %w", err)
	}
	if err := f.SaveAs(out); err != nil {
		return 0, fmt.Errorf("save %s: %w", out, err)
	}

	dataRows := rowIdx - 2 // rows written minus the header
	if dataRows < 0 {
		dataRows = 0
	}
	return dataRows, nil
}
