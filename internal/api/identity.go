package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/storyforge/storyforge/internal/logging"
	"github.com/storyforge/storyforge/internal/profiles"
)

// UserIDHeader carries the authenticated profile ID, set by the auth proxy in
// front of the API.
const UserIDHeader = "X-User-ID"

type profileContextKey struct{}

// WithProfile stores the resolved profile on the context.
func WithProfile(ctx context.Context, p *profiles.Profile) context.Context {
	return context.WithValue(ctx, profileContextKey{}, p)
}

// ProfileFromContext returns the profile resolved by RequireIdentity.
func ProfileFromContext(ctx context.Context) (*profiles.Profile, bool) {
	p, ok := ctx.Value(profileContextKey{}).(*profiles.Profile)
	return p, ok && p != nil
}

// RequireIdentity loads the caller's profile once per request. The tier on
// that profile is the one every gate decision in the request uses.
func RequireIdentity(store profiles.Store, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if id == "" {
			writeErrorResponse(w, http.StatusUnauthorized, "unauthenticated", "Missing user identity")
			return
		}

		profile, err := store.Get(r.Context(), id)
		switch {
		case errors.Is(err, profiles.ErrNotFound):
			writeErrorResponse(w, http.StatusUnauthorized, "unknown_user", "Unknown user")
			return
		case err != nil:
			writeInternalError(w, r, "profile_unavailable", "Failed to load profile", err)
			return
		}

		logger := logging.FromContext(r.Context()).With().
			Str("profile_id", profile.ID).
			Str("tier", string(profile.Tier)).
			Logger()
		ctx := logging.WithLogger(WithProfile(r.Context(), profile), logger)
		next(w, r.WithContext(ctx))
	}
}
