package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/straja-ai/emotion/internal/analysis"
	"github.com/straja-ai/emotion/internal/classifier"
	"github.com/straja-ai/emotion/internal/redact"
	"github.com/straja-ai/emotion/internal/store"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message, typ string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: message, Type: typ}})
}

// classify maps an error to its HTTP status, error type and client message.
func classify(err error) (int, string, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "request_too_large", "request body too large"
	case errors.Is(err, analysis.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request_error", err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", "record not found"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "timeout", "classification timed out"
	case errors.Is(err, classifier.ErrUnavailable):
		return http.StatusServiceUnavailable, "upstream_unavailable", redact.String(err.Error())
	case errors.Is(err, classifier.ErrMalformedResponse):
		return http.StatusBadGateway, "upstream_malformed", redact.String(err.Error())
	case errors.Is(err, analysis.ErrClassification):
		return http.StatusBadGateway, "upstream_error", redact.String(err.Error())
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, typ, msg := classify(err)
	if status >= 500 {
		log.Error().
			Err(errors.New(redact.String(err.Error()))).
			Str("request_id", requestIDFrom(r.Context())).
			Int("status", status).
			Msg("request failed")
	}
	writeError(w, status, msg, typ)
}
