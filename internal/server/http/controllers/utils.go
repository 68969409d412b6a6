package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rzbill/ensdb/internal/recordlog"
)

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeCreated writes a 201 Created response with a JSON body.
func writeCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(data)
}

// writeNoContent writes a 204 No Content response.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps log errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, recordlog.ErrNotFound), errors.Is(err, recordlog.ErrDeleted):
		return http.StatusNotFound
	case errors.Is(err, recordlog.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, recordlog.ErrAddressInUse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var errMixedBounds = errors.New("start/end and from/to cannot be combined")

// badRequest tags err so statusFor maps it to 400.
func badRequest(err error) error {
	return fmt.Errorf("%v: %w", err, recordlog.ErrInvalidArgument)
}

// parseLimit parses a limit string. Returns 0 for empty or invalid values.
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
		return limit
	}
	return 0
}

// parseOptUint32 parses an optional query parameter. Absent yields nil.
func parseOptUint32(r *http.Request, name string) (*uint32, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", name, s)
	}
	u := uint32(v)
	return &u, nil
}
