package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/storyforge/storyforge/internal/logging"
	"github.com/storyforge/storyforge/pkg/entitlements"
)

// apiError is the body of every non-402 error response. Entitlement denials
// use the payload written by entitlements.WriteEntitlementRequired instead.
type apiError struct {
	Message   string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler assigns the request ID and the request logger, recovers
// panics, and records every request under the route pattern that served it.
func ErrorHandler(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Honor an incoming request ID from the proxy
		ctx, requestID := logging.WithRequestID(r.Context(), strings.TrimSpace(r.Header.Get("X-Request-ID")))
		ctx = logging.WithLogger(ctx, logger.With().Str("request_id", requestID).Logger())
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		rw.Header().Set("X-Request-ID", requestID)
		start := time.Now()

		defer func() {
			if v := recover(); v != nil {
				reqLogger := logging.FromContext(r.Context())
				reqLogger.Error().
					Interface("panic", v).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("Panic recovered in API handler")
				if rw.written {
					rw.status = http.StatusInternalServerError
				} else {
					writeErrorResponse(rw, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
				}
			}
			finishRequest(r, rw, time.Since(start))
		}()

		next.ServeHTTP(rw, r)
	})
}

// finishRequest records metrics for a served request and logs failures.
// Entitlement denials are expected traffic: they count as upgrade prompts and
// were already logged by the gate middleware with the caller's profile.
func finishRequest(r *http.Request, rw *responseWriter, elapsed time.Duration) {
	route := routeLabel(r)
	recordAPIRequest(r.Method, route, rw.status, elapsed)

	if rw.denial != nil {
		recordUpgradePrompt(route, rw.denial.Capability, rw.denial.Outcome())
		return
	}

	switch {
	case rw.status >= 500:
		logger := logging.FromContext(r.Context())
		logger.Error().Str("method", r.Method).Str("route", route).Int("status", rw.status).Msg("Request failed")
	case rw.status >= 400:
		logger := logging.FromContext(r.Context())
		logger.Warn().Str("method", r.Method).Str("route", route).Int("status", rw.status).Msg("Request rejected")
	case logging.IsLevelEnabled(zerolog.DebugLevel):
		logger := logging.FromContext(r.Context())
		logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rw.status).
			Dur("duration", elapsed).
			Msg("Request handled")
	}
}

// writeErrorResponse writes an apiError, echoing the request ID header set by
// ErrorHandler.
func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// writeInternalError logs err with the request logger and sends the client
// only message.
func writeInternalError(w http.ResponseWriter, r *http.Request, code, message string, err error) {
	logger := logging.FromContext(r.Context())
	logger.Error().Err(err).Str("code", code).Msg(message)
	writeErrorResponse(w, http.StatusInternalServerError, code, message)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger := logging.FromContext(context.Background())
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// responseWriter captures the status code and, for 402s written by the gate
// middleware, the decision behind them.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written bool
	denial  *entitlements.Decision
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.status = code
		rw.ResponseWriter.WriteHeader(code)
		rw.written = true
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// noteDenial tags the response with the gate decision that refused it. It is
// a no-op outside ErrorHandler.
func noteDenial(w http.ResponseWriter, d entitlements.Decision) {
	if rw, ok := w.(*responseWriter); ok {
		rw.denial = &d
	}
}
