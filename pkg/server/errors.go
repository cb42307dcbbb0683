package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/routewatch/pkg/util"
)

// Error codes carried in ErrorResponse.Code.
const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"requestId"`
	Timestamp time.Time              `json:"timestamp"`
	Retryable bool                   `json:"retryable"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, statusCode int,
	code, message string, retryable bool, details map[string]interface{}) {

	id := requestID(r)
	if id == "" {
		id = uuid.New().String()
	}
	writeJSON(w, statusCode, ErrorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: id,
		Timestamp: time.Now().UTC(),
		Retryable: retryable,
	})
}

// statusFor maps a lookup error to its HTTP status, error code and
// whether the client should retry.
func statusFor(err error) (int, string, bool) {
	switch {
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, false
	case errors.Is(err, util.ErrNotReady):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable, true
	default:
		return http.StatusInternalServerError, ErrCodeInternalError, false
	}
}

// writeFailure writes the error response for err, classified by statusFor.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error,
	message string, details map[string]interface{}) {

	status, code, retryable := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	if status == http.StatusInternalServerError {
		s.log.Errorf("%s: %v", r.URL.Path, err)
	}
	s.writeError(w, r, status, code, message, retryable, details)
}

// writeJSON encodes before writing headers so an encoding failure can still
// become a 500.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		util.WithComponent("server").Errorf("json encoding failed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(buf.Bytes()); err != nil {
		util.WithComponent("server").Debugf("response write failed: %v", err)
	}
}
