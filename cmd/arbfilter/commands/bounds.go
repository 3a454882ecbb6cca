package commands

import (
	"encoding/json"
	"io"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/arbfilter/internal/service"
	"github.com/wonny/arbfilter/internal/units"
)

type boundsOptions struct {
	input   inputFlags
	run     runFlags
	expiry  float64
	strikes string
	format  string
}

// boundRow is one strike of the bounds command output
type boundRow struct {
	Strike float64 `json:"strike"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

func newBoundsCmd(g *globalFlags) *cobra.Command {
	o := &boundsOptions{}

	cmd := &cobra.Command{
		Use:   "bounds",
		Short: "무차익 상/하한 조회",
		Long: `Filters the quotes, then prints the no-arbitrage price bounds at the
given strikes of one expiry. Strikes and prices use the output units of
the run config (or --strike-unit/--price-unit).

Example:
  go run ./cmd/arbfilter bounds -i quotes.csv --expiry 1 --strikes 90,100,110
  go run ./cmd/arbfilter bounds -i quotes.csv --expiry 0.5 --strikes 0.9,1,1.1 --strike-unit moneyness --price-unit normalized_call`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBounds(cmd, g, o)
		},
	}

	o.input.register(cmd)
	o.run.register(cmd)
	cmd.Flags().Float64Var(&o.expiry, "expiry", 0, "expiry in years, must match an input expiry (required)")
	cmd.Flags().StringVar(&o.strikes, "strikes", "", "comma-separated strikes (required)")
	cmd.Flags().StringVarP(&o.format, "format", "f", formatTable, "output format: table|json")
	cmd.MarkFlagRequired("expiry")
	cmd.MarkFlagRequired("strikes")
	return cmd
}

func runBounds(cmd *cobra.Command, g *globalFlags, o *boundsOptions) error {
	if o.format != formatTable && o.format != formatJSON {
		return fmt.Errorf("unknown format %q (table|json)", o.format)
	}
	strikes, err := parseFloats(o.strikes)
	if err != nil {
		return fmt.Errorf("--strikes: %w", err)
	}

	ctx := cmd.Context()
	log := cliLogger(g, cmd.ErrOrStderr())

	cfg, err := o.run.resolve(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	opts, err := cfg.ToOptions()
	if err != nil {
		return err
	}
	su, pu, err := cfg.Units()
	if err != nil {
		return err
	}

	in, err := o.input.load(ctx, log)
	if err != nil {
		return err
	}

	run, err := service.New(service.WithLogger(log)).Submit(ctx, service.Request{
		Source:  "cli",
		Input:   in,
		Options: opts,
	})
	if err != nil {
		return err
	}

	rows := make([]boundRow, 0, len(strikes))
	for _, k := range strikes {
		lo, err := run.Result.LowerBound(o.expiry, k, su, pu)
		if err != nil {
			return err
		}
		hi, err := run.Result.UpperBound(o.expiry, k, su, pu)
		if err != nil {
			return err
		}
		rows = append(rows, boundRow{Strike: k, Lower: lo, Upper: hi})
	}

	out := cmd.OutOrStdout()
	if o.format == formatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	printBounds(out, o.expiry, su, pu, rows)
	return nil
}

func printBounds(w io.Writer, expiry float64, su units.StrikeUnit, pu units.PriceUnit, rows []boundRow) {
	PrintHeader(w, fmt.Sprintf("Bounds @ T=%s (%s, %s)", num(expiry), su, pu))
	widths := []int{12, 14, 14}
	PrintTableHeader(w, []string{"strike", "lower", "upper"}, widths)
	for _, r := range rows {
		PrintTableRow(w, []string{num(r.Strike), num(r.Lower), num(r.Upper)}, widths)
	}
}
