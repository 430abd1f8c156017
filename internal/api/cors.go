package api

import (
	"net/http"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
)

// originAllowed reports whether origin matches one of the configured
// patterns. Patterns may use "*" wildcards, e.g. "https://*.storyforge.app".
func originAllowed(patterns []string, origin string) bool {
	if origin == "" {
		return false
	}
	origin = literalDots(strings.ToLower(origin))
	for _, pattern := range patterns {
		if pattern == "*" || wildcard.Match(literalDots(strings.ToLower(pattern)), origin) {
			return true
		}
	}
	return false
}

// literalDots swaps '.' for a control byte on both sides of a match, since
// go-wildcard treats '.' as "any single character".
func literalDots(s string) string {
	return strings.ReplaceAll(s, ".", "\x1f")
}

// applyCORS sets CORS headers for allowed origins. It reports whether the
// request was a preflight that has been fully answered.
func applyCORS(patterns []string, w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	allowed := originAllowed(patterns, origin)
	if allowed {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserIDHeader+", X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Add("Vary", "Origin")
	}

	if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
		if allowed {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusForbidden)
		}
		return true
	}
	return false
}
