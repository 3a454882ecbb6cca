package marketdata

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/arbfilter/internal/processor"
)

// LoadXLSX reads quote rows from a workbook sheet. An empty sheet name
// selects the first sheet. The layout is the same as the CSV one.
func LoadXLSX(path, sheet string, u Units) (processor.Input, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return processor.Input{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return readSheet(f, path, sheet, u)
}

// ReadXLSX is LoadXLSX for an in-memory workbook; name labels errors.
func ReadXLSX(r io.Reader, name, sheet string, u Units) (processor.Input, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return processor.Input{}, fmt.Errorf("%s: failed to open workbook: %w", name, err)
	}
	defer f.Close()
	return readSheet(f, name, sheet, u)
}

func readSheet(f *excelize.File, name, sheet string, u Units) (processor.Input, error) {
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return processor.Input{}, fmt.Errorf("%s sheet %q: %w", name, sheet, err)
	}

	in, err := fromRecords(rows, u)
	if err != nil {
		return processor.Input{}, fmt.Errorf("%s sheet %q: %w", name, sheet, err)
	}
	return in, nil
}

// WriteXLSX saves a quote table to a new workbook with one sheet.
func WriteXLSX(path, sheet string, rows []processor.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "quotes"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}

	header := []interface{}{"expiry", "strike", "bid", "ask", "mid", "liquidity", "adjustment"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{r.Expiry, r.Strike, r.Bid, r.Ask, r.Mid, r.Liquidity, r.Adjustment}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
