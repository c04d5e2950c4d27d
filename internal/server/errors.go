package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/stratdash/meta-insights/pkg/daterange"
	"github.com/stratdash/meta-insights/pkg/graph"
)

// errorResponse mirrors the Graph error payload shape so clients see one
// consistent format.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// writeError maps the pipeline's error taxonomy onto HTTP statuses.
// Input errors are the caller's fault, credential problems are 401,
// exhausted rate budget is 429, and anything the upstream refused or
// failed to deliver maps to a gateway status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var apiErr *graph.APIError
	switch {
	case errors.Is(err, daterange.ErrInvalidDateFormat),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, daterange.ErrRangeTooLarge),
		errors.Is(err, daterange.ErrFutureEndDate):
		status = http.StatusBadRequest
	case errors.Is(err, graph.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, graph.ErrRateLimitExceeded):
		status = http.StatusTooManyRequests
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = apiErr.StatusCode
		} else {
			status = http.StatusBadGateway
		}
	case errors.Is(err, graph.ErrRetryExhausted):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	s.logger.Error().
		Err(err).
		Int("status", status).
		Str("path", r.URL.Path).
		Msg("Request failed")

	var resp errorResponse
	resp.Error.Message = err.Error()
	s.writeJSON(w, status, resp)
}
