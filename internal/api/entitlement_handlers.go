package api

import (
	"net/http"
	"time"

	"github.com/storyforge/storyforge/pkg/entitlements"
)

// EntitlementPayload is the normalized entitlement response for frontend
// consumption. The frontend gates on Capabilities and Limits, never on Tier.
type EntitlementPayload struct {
	// Tier is the plan key; TierName is for display only.
	Tier     entitlements.Tier `json:"tier"`
	TierName string            `json:"tier_name"`

	// Capabilities lists every capability the tier can access.
	Capabilities []entitlements.Capability `json:"capabilities"`

	// Limits lists every usage-limited capability with current usage.
	Limits []LimitStatus `json:"limits"`

	UpgradeReasons []entitlements.UpgradeReason `json:"upgrade_reasons"`

	// NextTier is the next plan up, omitted at the top tier.
	NextTier entitlements.Tier `json:"next_tier,omitempty"`
}

// LimitStatus represents a quantitative limit with current usage state.
type LimitStatus struct {
	Key entitlements.Capability `json:"key"`

	// Limit is the ceiling; -1 means unlimited and 0 disabled.
	Limit     int64 `json:"limit"`
	Current   int64 `json:"current"`
	Remaining int64 `json:"remaining"`

	// State is one of "ok", "warning", "enforced".
	State entitlements.LimitState `json:"state"`

	// ResetsAt is when Current returns to zero, omitted for counters that
	// never reset.
	ResetsAt *time.Time `json:"resets_at,omitempty"`
}

// TierSummary describes one plan for the pricing table.
type TierSummary struct {
	Tier   entitlements.Tier                              `json:"tier"`
	Name   string                                         `json:"name"`
	Rank   int                                            `json:"rank"`
	Values map[entitlements.Capability]entitlements.Value `json:"values"`
}

// EntitlementHandlers serves entitlement lookups for the current user.
type EntitlementHandlers struct {
	gate       *entitlements.Gate
	upgradeURL string
	now        func() time.Time
}

// NewEntitlementHandlers creates the handlers.
func NewEntitlementHandlers(gate *entitlements.Gate, upgradeURL string) *EntitlementHandlers {
	return &EntitlementHandlers{gate: gate, upgradeURL: upgradeURL, now: time.Now}
}

// HandleTiers returns the full tier table. It needs no identity.
func (h *EntitlementHandlers) HandleTiers(w http.ResponseWriter, r *http.Request) {
	table := h.gate.Resolver().Table()
	out := make([]TierSummary, 0, len(entitlements.Tiers()))
	for _, tier := range entitlements.Tiers() {
		out = append(out, TierSummary{
			Tier:   tier,
			Name:   entitlements.TierDisplayName(tier),
			Rank:   entitlements.TierRank(tier),
			Values: table.Row(tier),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tiers": out})
}

// HandleEntitlements returns the normalized entitlement payload for the caller.
func (h *EntitlementHandlers) HandleEntitlements(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "unauthenticated", "Missing user identity")
		return
	}
	writeJSON(w, http.StatusOK, buildEntitlementPayload(h.gate.Resolver(), profile.Tier, profile.Usage, h.upgradeURL, h.now()))
}

// HandleCapability returns a single gate decision for the caller's current
// usage of the capability named in the path.
func (h *EntitlementHandlers) HandleCapability(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "unauthenticated", "Missing user identity")
		return
	}

	capability, err := entitlements.ParseCapability(r.PathValue("capability"))
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "unknown_capability", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.gate.CheckUsage(profile.Tier, capability, profile.UsageOf(capability)))
}

func buildEntitlementPayload(resolver *entitlements.Resolver, tier entitlements.Tier, usage map[entitlements.Capability]int64, upgradeURL string, now time.Time) EntitlementPayload {
	payload := EntitlementPayload{
		Tier:           tier,
		TierName:       entitlements.TierDisplayName(tier),
		Capabilities:   []entitlements.Capability{},
		Limits:         []LimitStatus{},
		UpgradeReasons: resolver.UpgradeReasons(tier, upgradeURL),
	}
	if next, ok := entitlements.NextTier(tier); ok {
		payload.NextTier = next
	}

	for _, capability := range entitlements.Capabilities() {
		if resolver.CanAccess(tier, capability) {
			payload.Capabilities = append(payload.Capabilities, capability)
		}
		limit, isLimit := resolver.ValueFor(tier, capability).Int()
		if !isLimit {
			continue
		}
		current := usage[capability]
		status := LimitStatus{
			Key:       capability,
			Limit:     limit,
			Current:   current,
			Remaining: resolver.Remaining(tier, capability, current),
			State:     resolver.LimitState(tier, capability, current),
		}
		if reset, ok := entitlements.NextUsageReset(capability, now); ok {
			status.ResetsAt = &reset
		}
		payload.Limits = append(payload.Limits, status)
	}
	return payload
}
