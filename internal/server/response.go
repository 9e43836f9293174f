package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/oriolmontcreus/cms-sub000/internal/content"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps handler errors to responses. Unclassified errors are
// logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, content.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, content.ErrInvalidCredentials):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	case errors.Is(err, content.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, content.ErrConflict), errors.Is(err, content.ErrBuildRunning):
		status = http.StatusConflict
	case errors.Is(err, content.ErrBuildDisabled):
		status = http.StatusServiceUnavailable
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "error", err)
		_ = writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	_ = writeJSON(w, status, errorBody{Error: err.Error()})
}
