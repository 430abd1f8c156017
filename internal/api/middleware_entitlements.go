package api

import (
	"net/http"

	"github.com/storyforge/storyforge/internal/logging"
	"github.com/storyforge/storyforge/pkg/entitlements"
)

// RequireCapability returns 402 unless the caller's tier can access
// capability. It must run inside RequireIdentity.
func RequireCapability(gate *entitlements.Gate, capability entitlements.Capability, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, ok := ProfileFromContext(r.Context())
		if !ok {
			writeErrorResponse(w, http.StatusUnauthorized, "unauthenticated", "Missing user identity")
			return
		}

		decision := gate.Check(profile.Tier, capability)
		if !decision.Allowed() {
			denyEntitlement(w, r, decision)
			return
		}
		next(w, r)
	}
}

// EnforceLimit returns 402 when the caller cannot use capability or has
// already used all of it. It must run inside RequireIdentity.
func EnforceLimit(gate *entitlements.Gate, capability entitlements.Capability, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, ok := ProfileFromContext(r.Context())
		if !ok {
			writeErrorResponse(w, http.StatusUnauthorized, "unauthenticated", "Missing user identity")
			return
		}

		decision := gate.CheckUsage(profile.Tier, capability, profile.UsageOf(capability))
		if !decision.Allowed() {
			denyEntitlement(w, r, decision)
			return
		}
		next(w, r)
	}
}

// denyEntitlement logs the refusal with the caller's profile, tags the
// response for ErrorHandler's upgrade prompt count and writes the 402.
func denyEntitlement(w http.ResponseWriter, r *http.Request, d entitlements.Decision) {
	logger := logging.FromContext(r.Context())
	event := logger.Info().
		Str("capability", string(d.Capability)).
		Str("outcome", string(d.Outcome()))
	if d.RequiredTier != "" {
		event = event.Str("required_tier", string(d.RequiredTier))
	}
	if d.Current != nil {
		event = event.Int64("current", *d.Current)
	}
	event.Msg("Entitlement denied")

	noteDenial(w, d)
	entitlements.WriteEntitlementRequired(w, d)
}
