package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"https://app.storyforge.test", "https://*.preview.storyforge.test"}

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "exact", origin: "https://app.storyforge.test", want: true},
		{name: "exact_case_insensitive", origin: "https://APP.storyforge.test", want: true},
		{name: "wildcard_subdomain", origin: "https://pr-42.preview.storyforge.test", want: true},
		{name: "dot_is_literal", origin: "https://appXstoryforgeYtest", want: false},
		{name: "other_host", origin: "https://evil.test", want: false},
		{name: "empty", origin: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, originAllowed(patterns, tt.origin))
		})
	}

	assert.True(t, originAllowed([]string{"*"}, "https://anything.test"))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{name: "allowed_origin", origin: "https://app.storyforge.test", wantStatus: http.StatusNoContent, wantAllow: "https://app.storyforge.test"},
		{name: "blocked_origin", origin: "https://evil.test", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/series", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSHeadersOnSimpleRequest(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tiers", nil)
	req.Header.Set("Origin", "https://pr-7.preview.storyforge.test")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://pr-7.preview.storyforge.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), UserIDHeader)
}
