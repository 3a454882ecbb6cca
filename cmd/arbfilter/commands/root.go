package commands

import (
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	verbose bool
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "arbfilter",
		Short: "옵션 호가 무차익 필터",
		Long: `arbfilter removes static arbitrage from option quote surfaces.

Quotes are normalized to forward moneyness and normalized call prices,
filtered expiry by expiry (strike, discard or expiry_forward filter),
and can be queried for no-arbitrage bounds in any supported unit.

Usage:
  go run ./cmd/arbfilter [command]

Examples:
  go run ./cmd/arbfilter filter --input quotes.csv --config config/filter.yaml
  go run ./cmd/arbfilter bounds --input quotes.csv --expiry 1 --strikes 90,100,110
  go run ./cmd/arbfilter serve
  go run ./cmd/arbfilter test-db`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging to stderr")

	rootCmd.AddCommand(
		newFilterCmd(g),
		newBoundsCmd(g),
		newServeCmd(g),
		newSubmitCmd(g),
		newRunsCmd(g),
		newTestDBCmd(),
	)
	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}
