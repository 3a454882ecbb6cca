package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wonny/arbfilter/internal/processor"
	"github.com/wonny/arbfilter/internal/units"
)

// =============================================================================
// CSV / XLSX 호가 로더
// =============================================================================
//
// Header (case-insensitive, any column order):
//
//	expiry,strike,bid,ask,forward,rate[,liquidity]
//	expiry,strike,price,forward,rate[,liquidity]
//
// "discount_factor" may replace "rate". Rows must be grouped by expiry in
// ascending order; forward and rate must agree within a group.

var (
	ErrMissingColumn = errors.New("missing column")
	ErrInconsistent  = errors.New("inconsistent expiry parameters")
)

// Units 입력 데이터 단위
type Units struct {
	Price  units.PriceUnit
	Strike units.StrikeUnit
}

// LoadFile reads a .csv file, or the first sheet of an .xlsx workbook.
func LoadFile(path string, u Units) (processor.Input, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadXLSX(path, "", u)
	}

	f, err := os.Open(path)
	if err != nil {
		return processor.Input{}, err
	}
	defer f.Close()

	in, err := Read(f, u)
	if err != nil {
		return processor.Input{}, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// Read parses CSV quote rows into a processor.Input.
func Read(r io.Reader, u Units) (processor.Input, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return processor.Input{}, err
	}
	return fromRecords(records, u)
}

// fromRecords turns a header row plus data rows into a processor.Input.
// Row numbers in errors are 1-based and count the header.
func fromRecords(records [][]string, u Units) (processor.Input, error) {
	if len(records) == 0 {
		return processor.Input{}, fmt.Errorf("%w: empty input", ErrMissingColumn)
	}
	cols := indexColumns(records[0])

	paired := cols.has("bid") && cols.has("ask")
	if !paired && !cols.has("price") {
		return processor.Input{}, fmt.Errorf("%w: need bid and ask, or price", ErrMissingColumn)
	}
	rateCol := "rate"
	if !cols.has(rateCol) {
		rateCol = "discount_factor"
	}
	for _, name := range []string{"expiry", "strike", "forward", rateCol} {
		if !cols.has(name) {
			return processor.Input{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	in := processor.Input{
		PriceUnit:               u.Price,
		StrikeUnit:              u.Strike,
		RatesAreDiscountFactors: rateCol == "discount_factor",
	}

	for i, record := range records[1:] {
		line := i + 2
		if blank(record) {
			continue
		}

		row := rowReader{record: record, cols: cols, line: line}
		expiry := row.float("expiry")
		strike := row.float("strike")
		forward := row.float("forward")
		rate := row.float(rateCol)

		if paired {
			in.Bids = append(in.Bids, row.float("bid"))
			in.Asks = append(in.Asks, row.float("ask"))
		} else {
			in.Prices = append(in.Prices, row.float("price"))
		}
		if cols.has("liquidity") {
			in.Liquidity = append(in.Liquidity, row.float("liquidity"))
		}
		if row.err != nil {
			return processor.Input{}, row.err
		}

		n := len(in.Expiries)
		if n == 0 || expiry != in.Expiries[n-1] {
			in.Forwards = append(in.Forwards, forward)
			in.Rates = append(in.Rates, rate)
		} else if forward != in.Forwards[len(in.Forwards)-1] || rate != in.Rates[len(in.Rates)-1] {
			return processor.Input{}, fmt.Errorf("%w: line %d expiry %v", ErrInconsistent, line, expiry)
		}
		in.Expiries = append(in.Expiries, expiry)
		in.Strikes = append(in.Strikes, strike)
	}

	return in, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

type columns map[string]int

func indexColumns(header []string) columns {
	cols := make(columns, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

// rowReader parses named fields and keeps the first error.
type rowReader struct {
	record []string
	cols   columns
	line   int
	err    error
}

func (r *rowReader) float(name string) float64 {
	if r.err != nil {
		return 0
	}
	i := r.cols[name]
	if i >= len(r.record) {
		r.err = fmt.Errorf("line %d: %w: %s", r.line, ErrMissingColumn, name)
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(r.record[i]), 64)
	if err != nil {
		r.err = fmt.Errorf("line %d column %s: %w", r.line, name, err)
		return 0
	}
	return v
}

// WriteTable writes a quote table as CSV.
func WriteTable(w io.Writer, rows []processor.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"expiry", "strike", "bid", "ask", "mid", "liquidity", "adjustment"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			formatFloat(r.Expiry), formatFloat(r.Strike),
			formatFloat(r.Bid), formatFloat(r.Ask), formatFloat(r.Mid),
			formatFloat(r.Liquidity), formatFloat(r.Adjustment),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
