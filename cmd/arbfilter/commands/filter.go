package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/arbfilter/internal/filterconfig"
	"github.com/wonny/arbfilter/internal/service"
	"github.com/wonny/arbfilter/internal/store"
	"github.com/wonny/arbfilter/pkg/config"
	"github.com/wonny/arbfilter/pkg/database"
)

type filterOptions struct {
	input  inputFlags
	run    runFlags
	format string
	output string
	errors bool
	save   bool
}

func newFilterCmd(g *globalFlags) *cobra.Command {
	o := &filterOptions{}

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "호가 필터링 후 결과 출력",
		Long: `Loads quotes, runs the configured filter and prints the admitted quotes.

Example:
  go run ./cmd/arbfilter filter -i quotes.csv
  go run ./cmd/arbfilter filter -i quotes.csv -c config/filter.yaml --errors
  go run ./cmd/arbfilter filter -i quotes.xlsx --kind discard --format xlsx --output filtered.xlsx
  go run ./cmd/arbfilter filter -i quotes.csv --save   # DATABASE_URL 필요`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd, g, o)
		},
	}

	o.input.register(cmd)
	o.run.register(cmd)
	cmd.Flags().StringVarP(&o.format, "format", "f", formatTable, "output format: table|csv|json|xlsx")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&o.errors, "errors", false, "print filter error statistics")
	cmd.Flags().BoolVar(&o.save, "save", false, "store the run in PostgreSQL")
	return cmd
}

func runFilter(cmd *cobra.Command, g *globalFlags, o *filterOptions) error {
	if err := checkFormat(o.format, o.output); err != nil {
		return err
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
	hash, err := filterconfig.Hash(cfg)
	if err != nil {
		return err
	}

	in, err := o.input.load(ctx, log)
	if err != nil {
		return err
	}

	svcOpts := []service.Option{service.WithLogger(log)}
	if o.save {
		repo, closeDB, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeDB()
		svcOpts = append(svcOpts, service.WithStore(repo))
	}

	run, err := service.New(svcOpts...).Submit(ctx, service.Request{
		Source:     "cli",
		Input:      in,
		Options:    opts,
		ConfigHash: hash,
	})
	if err != nil {
		return err
	}

	rows, err := run.Result.QuoteTable(su, pu)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.output != "" && o.format != formatXLSX {
		f, err := os.Create(o.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if o.format == formatTable {
		PrintReports(out, run.Summary.Kind, run.Summary.Reports)
	}
	if err := writeRows(out, o.format, o.output, rows); err != nil {
		return err
	}

	if o.errors {
		report, err := run.Result.FilterErrors(pu)
		if err != nil {
			return err
		}
		PrintErrorReport(errorsWriter(cmd, o.format, out), report)
	}
	if o.save {
		fmt.Fprintf(cmd.ErrOrStderr(), "✅ Run %s saved\n", run.Summary.ID)
	}
	return nil
}

// errorsWriter keeps machine-readable output clean.
func errorsWriter(cmd *cobra.Command, format string, out io.Writer) io.Writer {
	if format == formatTable {
		return out
	}
	return cmd.ErrOrStderr()
}

// openStore connects to the configured database and migrates the schema.
func openStore(ctx context.Context) (*store.Repository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	repo := store.NewRepository(db.Pool)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db.Close, nil
}

