package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/wonny/arbfilter/internal/filterconfig"
	"github.com/wonny/arbfilter/internal/processor"
	"github.com/wonny/arbfilter/internal/service"
	"github.com/wonny/arbfilter/internal/store"
	"github.com/wonny/arbfilter/internal/units"
	"github.com/wonny/arbfilter/pkg/config"
	"github.com/wonny/arbfilter/pkg/logger"
)

const maxBodyBytes = 8 << 20

// RunHandler handles filter run endpoints
// ⭐ SSOT: 실행 API 핸들러는 이 구조체에서만
type RunHandler struct {
	svc      *service.Service
	defaults config.FilterConfig
	validate *validator.Validate
	logger   *logger.Logger
}

// NewRunHandler creates a new run handler. defaults supply the filter options
// and output units for requests that omit them.
func NewRunHandler(svc *service.Service, defaults config.FilterConfig, log *logger.Logger) *RunHandler {
	return &RunHandler{
		svc:      svc,
		defaults: defaults,
		validate: validator.New(),
		logger:   log,
	}
}

// SubmitRequest represents a filter run request
type SubmitRequest struct {
	Input processor.Input `json:"input"`
	// Config is a run config in JSON form, overlaid on the server defaults.
	Config json.RawMessage `json:"config,omitempty"`
}

// SubmitResponse represents a finished run
type SubmitResponse struct {
	Run      store.RunRecord        `json:"run"`
	Warnings []filterconfig.Warning `json:"warnings,omitempty"`
}

// Submit runs the filter on the posted quotes
// POST /api/runs
func (h *RunHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, describe(err))
		return
	}

	cfg, err := h.runConfig(req.Config)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := cfg.ToOptions()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := filterconfig.Hash(cfg)
	if err != nil {
		h.fail(w, err, "hash run config")
		return
	}

	run, err := h.svc.Submit(r.Context(), service.Request{
		Source:     "api",
		Input:      req.Input,
		Options:    opts,
		ConfigHash: hash,
	})
	if err != nil {
		h.fail(w, err, "run filter")
		return
	}

	respondData(w, http.StatusCreated, SubmitResponse{
		Run:      run.Summary,
		Warnings: filterconfig.Warn(cfg),
	})
}

func (h *RunHandler) runConfig(raw json.RawMessage) (*filterconfig.Config, error) {
	cfg := filterconfig.FromEnv(h.defaults)
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	if err := filterconfig.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// List returns recent runs held in memory
// GET /api/runs?limit=20
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	respondData(w, http.StatusOK, h.svc.Recent(limit))
}

// Get returns a run summary
// GET /api/runs/{id}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Summary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, "get run")
		return
	}
	respondData(w, http.StatusOK, rec)
}

// =============================================================================
// Queries against a finished run
// =============================================================================

// UnitQuery 공통 단위 파라미터
type UnitQuery struct {
	StrikeUnit string `validate:"oneof=strike moneyness log_moneyness"`
	PriceUnit  string `validate:"oneof=vol total_var call normalized_call"`
}

type quotesQuery struct {
	UnitQuery
	Expiry *float64 `validate:"omitempty,gt=0"`
}

type boundsQuery struct {
	UnitQuery
	Expiry *float64 `validate:"required,gt=0"`
	Strike *float64 `validate:"required"`
}

// BoundsResponse represents the no-arbitrage interval at one strike
type BoundsResponse struct {
	Expiry     float64 `json:"expiry"`
	Strike     float64 `json:"strike"`
	StrikeUnit string  `json:"strike_unit"`
	PriceUnit  string  `json:"price_unit"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
}

func (h *RunHandler) unitParams(r *http.Request) UnitQuery {
	q := UnitQuery{StrikeUnit: h.defaults.StrikeUnit, PriceUnit: h.defaults.PriceUnit}
	if v := r.URL.Query().Get("strike_unit"); v != "" {
		q.StrikeUnit = v
	}
	if v := r.URL.Query().Get("price_unit"); v != "" {
		q.PriceUnit = v
	}
	return q
}

// floatParam parses an optional finite float query parameter.
func floatParam(r *http.Request, name string) (*float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%s must be a finite number", name)
	}
	return &v, nil
}

// run resolves {id} to a run held in memory.
func (h *RunHandler) run(w http.ResponseWriter, r *http.Request) (*service.Run, bool) {
	run, err := h.svc.Get(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, "get run")
		return nil, false
	}
	return run, true
}

// Quotes returns filtered quotes of one expiry, or every expiry if omitted
// GET /api/runs/{id}/quotes?expiry=1&strike_unit=strike&price_unit=vol
func (h *RunHandler) Quotes(w http.ResponseWriter, r *http.Request) {
	q := quotesQuery{UnitQuery: h.unitParams(r)}
	var err error
	if q.Expiry, err = floatParam(r, "expiry"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(q); err != nil {
		respondError(w, http.StatusBadRequest, describe(err))
		return
	}

	run, ok := h.run(w, r)
	if !ok {
		return
	}

	su, pu := units.StrikeUnit(q.StrikeUnit), units.PriceUnit(q.PriceUnit)
	if q.Expiry == nil {
		rows, err := run.Result.QuoteTable(su, pu)
		if err != nil {
			h.fail(w, err, "quote table")
			return
		}
		respondData(w, http.StatusOK, rows)
		return
	}

	qs, err := run.Result.Quotes(*q.Expiry, su, pu)
	if err != nil {
		h.fail(w, err, "quotes")
		return
	}
	rows := make([]processor.Row, len(qs))
	for i, quote := range qs {
		rows[i] = processor.Row{
			Expiry:     *q.Expiry,
			Strike:     quote.Strike,
			Mid:        quote.Mid(),
			Bid:        quote.Bid,
			Ask:        quote.Ask,
			Liquidity:  quote.Liquidity,
			Adjustment: quote.Adjustment,
		}
	}
	respondData(w, http.StatusOK, rows)
}

// Bounds returns the lower and upper bound at a strike
// GET /api/runs/{id}/bounds?expiry=1&strike=100&strike_unit=strike&price_unit=call
func (h *RunHandler) Bounds(w http.ResponseWriter, r *http.Request) {
	q := boundsQuery{UnitQuery: h.unitParams(r)}
	var err error
	if q.Expiry, err = floatParam(r, "expiry"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Strike, err = floatParam(r, "strike"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(q); err != nil {
		respondError(w, http.StatusBadRequest, describe(err))
		return
	}

	run, ok := h.run(w, r)
	if !ok {
		return
	}

	su, pu := units.StrikeUnit(q.StrikeUnit), units.PriceUnit(q.PriceUnit)
	lower, err := run.Result.LowerBound(*q.Expiry, *q.Strike, su, pu)
	if err != nil {
		h.fail(w, err, "lower bound")
		return
	}
	upper, err := run.Result.UpperBound(*q.Expiry, *q.Strike, su, pu)
	if err != nil {
		h.fail(w, err, "upper bound")
		return
	}

	respondData(w, http.StatusOK, BoundsResponse{
		Expiry:     *q.Expiry,
		Strike:     *q.Strike,
		StrikeUnit: q.StrikeUnit,
		PriceUnit:  q.PriceUnit,
		Lower:      lower,
		Upper:      upper,
	})
}

// Errors returns filtered-vs-raw mid statistics
// GET /api/runs/{id}/errors?price_unit=vol
func (h *RunHandler) Errors(w http.ResponseWriter, r *http.Request) {
	q := h.unitParams(r)
	if err := h.validate.Struct(q); err != nil {
		respondError(w, http.StatusBadRequest, describe(err))
		return
	}

	run, ok := h.run(w, r)
	if !ok {
		return
	}

	report, err := run.Result.FilterErrors(units.PriceUnit(q.PriceUnit))
	if err != nil {
		h.fail(w, err, "filter errors")
		return
	}
	respondData(w, http.StatusOK, report)
}

// fail logs server-side failures and maps err to a status.
func (h *RunHandler) fail(w http.ResponseWriter, err error, op string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("op", op).Error("Run request failed")
		respondError(w, status, "Internal server error")
		return
	}
	respondError(w, status, err.Error())
}
