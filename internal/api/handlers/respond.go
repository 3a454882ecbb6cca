package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/filterconfig"
	"github.com/wonny/arbfilter/internal/quotes"
	"github.com/wonny/arbfilter/internal/service"
	"github.com/wonny/arbfilter/internal/units"
)

// Helper functions

// respondJSON marshals before writing the header. An unencodable value such as
// a saturated (+Inf) implied vol becomes a 500.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		body, _ = json.Marshal(map[string]interface{}{
			"success": false,
			"error":   "response not representable as JSON: " + err.Error(),
		})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		verr       validator.ValidationErrors
		cfgErr     filterconfig.ValidationError
		infeasible *arbitrage.InfeasibleError
	)
	switch {
	case errors.Is(err, service.ErrRunNotFound),
		errors.Is(err, arbitrage.ErrUnknownExpiry),
		errors.Is(err, quotes.ErrUnknownExpiry):
		return http.StatusNotFound
	case errors.As(err, &infeasible):
		return http.StatusUnprocessableEntity
	case errors.As(err, &verr),
		errors.As(err, &cfgErr),
		errors.Is(err, service.ErrInvalidRunID),
		errors.Is(err, quotes.ErrInvalidInput),
		errors.Is(err, quotes.ErrInvalidQuote),
		errors.Is(err, quotes.ErrDuplicateStrike),
		errors.Is(err, quotes.ErrStrikeOrder),
		errors.Is(err, quotes.ErrExpiryOrder),
		errors.Is(err, quotes.ErrDuplicateExpiry),
		errors.Is(err, arbitrage.ErrInvalidOptions),
		errors.Is(err, units.ErrUnknownUnit),
		errors.Is(err, units.ErrInvalidMarket):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// describe flattens validator errors into "field: tag" pairs.
func describe(err error) string {
	var verr validator.ValidationErrors
	if !errors.As(err, &verr) {
		return err.Error()
	}
	parts := make([]string, 0, len(verr))
	for _, fe := range verr {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
