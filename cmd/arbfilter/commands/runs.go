package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/arbfilter/internal/store"
)

func newRunsCmd(_ *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "저장된 실행 조회",
		Long: `Lists and shows runs stored in PostgreSQL (DATABASE_URL required).

Subcommands:
  list         - 최근 실행 목록
  show <id>    - 실행 요약 (--quotes: 저장된 호가 포함)

Example:
  go run ./cmd/arbfilter runs list --limit 10
  go run ./cmd/arbfilter runs show 6f1c... --quotes --format csv`,
	}

	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "최근 실행 목록",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, closeDB, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			runs, err := repo.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			printRuns(cmd, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []store.RunRecord) {
	w := cmd.OutOrStdout()
	PrintHeader(w, fmt.Sprintf("Runs (%d)", len(runs)))
	widths := []int{36, 20, 16, 15, 7}
	PrintTableHeader(w, []string{"id", "created_at", "source", "kind", "quotes"}, widths)
	for _, r := range runs {
		PrintTableRow(w, []string{
			r.ID.String(),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Source,
			string(r.Kind),
			strconv.Itoa(r.NumQuotes),
		}, widths)
	}
}

func newRunsShowCmd() *cobra.Command {
	var (
		withQuotes bool
		format     string
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "실행 요약",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatTable && format != formatCSV && format != formatJSON {
				return fmt.Errorf("unknown format %q (table|csv|json)", format)
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			ctx := cmd.Context()
			repo, closeDB, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			rec, err := repo.GetRun(ctx, id)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if format == formatJSON && !withQuotes {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			if format == formatTable {
				PrintHeader(w, "Run "+rec.ID.String())
				PrintKeyValue(w, "created_at", rec.CreatedAt.Format("2006-01-02 15:04:05"), 11)
				PrintKeyValue(w, "source", rec.Source, 11)
				PrintKeyValue(w, "config", rec.ConfigHash, 11)
				PrintKeyValue(w, "quotes", strconv.Itoa(rec.NumQuotes), 11)
				PrintReports(w, rec.Kind, rec.Reports)
			}
			if !withQuotes {
				return nil
			}

			// Stored quotes are in moneyness / normalized call price
			rows, err := repo.GetQuotes(ctx, id)
			if err != nil {
				return err
			}
			return writeRows(w, format, "", rows)
		},
	}

	cmd.Flags().BoolVar(&withQuotes, "quotes", false, "include stored quotes")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table|csv|json")
	return cmd
}
