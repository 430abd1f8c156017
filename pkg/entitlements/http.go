package entitlements

import (
	"encoding/json"
	"net/http"
)

// WritePaymentRequired writes a JSON 402 response payload.
func WritePaymentRequired(w http.ResponseWriter, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteEntitlementRequired writes the canonical 402 response for a denied
// decision. All gate responses go through here so the shape stays consistent.
func WriteEntitlementRequired(w http.ResponseWriter, d Decision) {
	code := "entitlement_required"
	if d.Accessible && d.LimitReached {
		code = "limit_reached"
	}
	payload := map[string]interface{}{
		"error":         code,
		"message":       d.Message,
		"capability":    d.Capability,
		"tier":          d.Tier,
		"required_tier": d.RequiredTier,
		"upgrade_url":   d.UpgradeURL,
	}
	if d.Limit != nil {
		payload["limit"] = *d.Limit
	}
	if d.Current != nil {
		payload["current"] = *d.Current
	}
	WritePaymentRequired(w, payload)
}
