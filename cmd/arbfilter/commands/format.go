package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/marketdata"
	"github.com/wonny/arbfilter/internal/processor"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatXLSX  = "xlsx"
)

func checkFormat(format, output string) error {
	switch format {
	case formatTable, formatCSV, formatJSON:
		return nil
	case formatXLSX:
		if output == "" {
			return fmt.Errorf("--format xlsx requires --output")
		}
		return nil
	}
	return fmt.Errorf("unknown format %q (table|csv|json|xlsx)", format)
}

// PrintHeader prints a formatted section header
func PrintHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, "───────────────────────────────────────────────────────────")
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(w io.Writer, key string, value string, keyWidth int) {
	fmt.Fprintf(w, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintTableHeader prints a table header
func PrintTableHeader(w io.Writer, columns []string, widths []int) {
	PrintTableRow(w, columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(w, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 8, 64)
}

// PrintReports prints one line per expiry
func PrintReports(w io.Writer, kind arbitrage.Kind, reports []arbitrage.SliceReport) {
	PrintHeader(w, fmt.Sprintf("Filter: %s", kind))
	widths := []int{10, 7, 8, 8, 9, 8, 8}
	PrintTableHeader(w, []string{"expiry", "quotes", "admitted", "adjusted", "discarded", "attempts", "fallback"}, widths)
	for _, r := range reports {
		fallback := string(r.Fallback)
		if fallback == "" {
			fallback = "-"
		}
		PrintTableRow(w, []string{
			num(r.Expiry),
			strconv.Itoa(r.Quotes),
			strconv.Itoa(r.Admitted),
			strconv.Itoa(r.Adjusted),
			strconv.Itoa(r.Discarded),
			strconv.Itoa(r.Attempts),
			fallback,
		}, widths)
	}
}

// PrintErrorReport prints filter error statistics
func PrintErrorReport(w io.Writer, report *processor.ErrorReport) {
	PrintHeader(w, fmt.Sprintf("Filter errors (%s)", report.PriceUnit))
	widths := []int{10, 8, 9, 12, 12, 12}
	PrintTableHeader(w, []string{"expiry", "matched", "discarded", "mae", "rmse", "max_abs"}, widths)
	row := func(label string, se processor.SliceErrors) {
		PrintTableRow(w, []string{
			label,
			strconv.Itoa(se.Matched),
			strconv.Itoa(se.Discarded),
			num(se.MAE), num(se.RMSE), num(se.MaxAbs),
		}, widths)
	}
	for _, se := range report.Slices {
		row(num(se.Expiry), se)
	}
	row("total", report.Total)
}

// writeRows emits a quote table in the requested format.
func writeRows(w io.Writer, format, output string, rows []processor.Row) error {
	switch format {
	case formatCSV:
		return marketdata.WriteTable(w, rows)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case formatXLSX:
		if err := marketdata.WriteXLSX(output, "", rows); err != nil {
			return err
		}
		fmt.Fprintf(w, "✅ %d rows written to %s\n", len(rows), output)
		return nil
	}

	PrintHeader(w, "Quotes")
	widths := []int{10, 12, 12, 12, 12, 12}
	PrintTableHeader(w, []string{"expiry", "strike", "bid", "ask", "mid", "adjustment"}, widths)
	for _, r := range rows {
		PrintTableRow(w, []string{num(r.Expiry), num(r.Strike), num(r.Bid), num(r.Ask), num(r.Mid), num(r.Adjustment)}, widths)
	}
	return nil
}
