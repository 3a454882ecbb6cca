package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/arbfilter/internal/filterconfig"
	"github.com/wonny/arbfilter/internal/marketdata"
	"github.com/wonny/arbfilter/internal/service"
	"github.com/wonny/arbfilter/pkg/httputil"
	"github.com/wonny/arbfilter/pkg/logger"
)

// Submitter runs a filter request
type Submitter interface {
	Submit(ctx context.Context, req service.Request) (*service.Run, error)
}

// RefilterJob re-reads quotes and the run config, then submits a run
type RefilterJob struct {
	name       string
	schedule   string
	inputPath  string
	configPath string
	units      marketdata.Units

	svc    Submitter
	client *httputil.Client
	logger *logger.Logger
}

// RefilterConfig describes one re-filter job
type RefilterConfig struct {
	Name       string
	Schedule   string
	InputPath  string // local .csv/.xlsx or http(s) URL
	ConfigPath string // optional YAML run config
	Units      marketdata.Units
}

// NewRefilterJob creates a new re-filter job
func NewRefilterJob(cfg RefilterConfig, svc Submitter, client *httputil.Client, log *logger.Logger) *RefilterJob {
	return &RefilterJob{
		name:       cfg.Name,
		schedule:   cfg.Schedule,
		inputPath:  cfg.InputPath,
		configPath: cfg.ConfigPath,
		units:      cfg.Units,
		svc:        svc,
		client:     client,
		logger:     log,
	}
}

// Name returns the job name
func (j *RefilterJob) Name() string {
	return j.name
}

// Schedule returns the cron schedule
func (j *RefilterJob) Schedule() string {
	return j.schedule
}

// Run loads the inputs and submits one run
func (j *RefilterJob) Run(ctx context.Context) error {
	cfg := filterconfig.Default()
	if j.configPath != "" {
		loaded, _, err := filterconfig.Load(j.configPath)
		if err != nil {
			return fmt.Errorf("load run config: %w", err)
		}
		cfg = loaded
	}
	opts, err := cfg.ToOptions()
	if err != nil {
		return err
	}
	hash, err := filterconfig.Hash(cfg)
	if err != nil {
		return err
	}

	in, err := marketdata.Load(ctx, j.client, j.inputPath, j.units)
	if err != nil {
		return fmt.Errorf("load quotes: %w", err)
	}

	run, err := j.svc.Submit(ctx, service.Request{
		Source:     "scheduler:" + j.name,
		Input:      in,
		Options:    opts,
		ConfigHash: hash,
	})
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"job":    j.name,
		"run_id": run.Summary.ID.String(),
		"quotes": run.Summary.NumQuotes,
	}).Info("Scheduled run completed")
	return nil
}
