package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fossabot/failmap/internal/platform/logger"
	"github.com/fossabot/failmap/internal/redact"
)

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"-"` // Not serialized to JSON, used for logging
	TraceID string `json:"trace_id,omitempty"`
	Detail  string `json:"detail,omitempty"` // redacted cause of a 5xx, debug mode only
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error response with the given status code and message.
// It also sets the TraceID from the request context if available.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	traceID := GetTraceID(r.Context())

	logger.FromContext(r.Context()).Debug("sending error response",
		"status_code", status,
		"message", message,
		"path", r.URL.Path,
		"method", r.Method)

	RespondWithJSON(w, r, status, ErrorResponse{Error: message, Code: status, TraceID: traceID})
}

// RespondWithErrorAndLog writes a JSON error response with a safe message and
// logs the redacted error.
//
// Log level strategy:
// - 5xx errors: Always logged at ERROR level
// - 403 Forbidden: Logged at WARN level (possible forgery)
// - Other 4xx errors: Logged at DEBUG level
func RespondWithErrorAndLog(w http.ResponseWriter, r *http.Request, status int, userMessage string, err error) {
	traceID := GetTraceID(r.Context())

	logAttrs := []slog.Attr{
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("user_message", userMessage),
	}
	if err != nil {
		logAttrs = append(logAttrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	logLevel := slog.LevelDebug
	switch {
	case status >= http.StatusInternalServerError:
		logLevel = slog.LevelError
	case status == http.StatusForbidden:
		logLevel = slog.LevelWarn
	}
	logger.FromContext(r.Context()).LogAttrs(r.Context(), logLevel, "error response", logAttrs...)

	resp := ErrorResponse{Error: userMessage, Code: status, TraceID: traceID}
	if err != nil && status >= http.StatusInternalServerError && IsDebug(r.Context()) {
		resp.Detail = redact.Error(err)
	}
	RespondWithJSON(w, r, status, resp)
}

// RespondWithMappedError answers err with the status and safe message it maps to.
func RespondWithMappedError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
