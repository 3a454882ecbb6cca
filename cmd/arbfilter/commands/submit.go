package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/arbfilter/internal/api/handlers"
	"github.com/wonny/arbfilter/pkg/httputil"
)

type submitOptions struct {
	input  inputFlags
	run    runFlags
	server string
}

// apiEnvelope mirrors the server response envelope
type apiEnvelope struct {
	Success bool                    `json:"success"`
	Data    handlers.SubmitResponse `json:"data"`
	Error   string                  `json:"error"`
}

func newSubmitCmd(g *globalFlags) *cobra.Command {
	o := &submitOptions{}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "원격 서버에 필터 실행 요청",
		Long: `Reads quotes locally and posts them to a running arbfilter server.
The run config (file and overrides) is sent along with the quotes.

Example:
  go run ./cmd/arbfilter submit -i quotes.csv --server http://localhost:8089
  go run ./cmd/arbfilter submit -i quotes.csv -c config/filter.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, g, o)
		},
	}

	o.input.register(cmd)
	o.run.register(cmd)
	cmd.Flags().StringVar(&o.server, "server", "http://localhost:8089", "arbfilter server base URL")
	return cmd
}

func runSubmit(cmd *cobra.Command, g *globalFlags, o *submitOptions) error {
	ctx := cmd.Context()
	log := cliLogger(g, cmd.ErrOrStderr())

	cfg, err := o.run.resolve(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	rawConfig, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}

	in, err := o.input.load(ctx, log)
	if err != nil {
		return err
	}

	// POST is not idempotent: a retried request would create a second run
	client := httputil.New(log, httputil.WithoutRetry())
	url := strings.TrimRight(o.server, "/") + "/api/runs"

	resp, err := client.PostJSON(ctx, url, handlers.SubmitRequest{Input: in, Config: rawConfig})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !env.Success {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, env.Error)
	}

	out := cmd.OutOrStdout()
	run := env.Data.Run
	PrintHeader(out, "Run submitted")
	PrintKeyValue(out, "id", run.ID.String(), 10)
	PrintKeyValue(out, "kind", string(run.Kind), 10)
	PrintKeyValue(out, "quotes", fmt.Sprint(run.NumQuotes), 10)
	PrintKeyValue(out, "config", run.ConfigHash, 10)
	for _, w := range env.Data.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  [%s] %s\n", w.Code, w.Message)
	}
	return nil
}
