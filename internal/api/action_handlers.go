package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/storyforge/storyforge/internal/logging"
	"github.com/storyforge/storyforge/internal/profiles"
	"github.com/storyforge/storyforge/internal/reporting"
	"github.com/storyforge/storyforge/pkg/entitlements"
)

const maxActionBodyBytes = 64 << 10

// UsageRecorder is told about every successful metered action.
type UsageRecorder interface {
	RecordUsage(capability entitlements.Capability, delta int64)
}

// ActionRequest is the body accepted by the metered create endpoints.
type ActionRequest struct {
	Name     string `json:"name"`
	SeriesID string `json:"series_id,omitempty"`
}

// ActionResponse reports the metered action and the caller's new standing.
type ActionResponse struct {
	Capability entitlements.Capability `json:"capability"`
	Name       string                  `json:"name"`
	SeriesID   string                  `json:"series_id,omitempty"`
	Used       int64                   `json:"used"`
	Limit      int64                   `json:"limit"`
	Remaining  int64                   `json:"remaining"`
	State      entitlements.LimitState `json:"state"`
}

// ActionHandlers implements the privileged actions guarded by the gate.
type ActionHandlers struct {
	store      profiles.Store
	resolver   *entitlements.Resolver
	recorder   UsageRecorder
	comparison *reporting.ComparisonSheet
	now        func() time.Time
}

// NewActionHandlers creates the handlers. recorder may be nil.
func NewActionHandlers(store profiles.Store, resolver *entitlements.Resolver, recorder UsageRecorder) *ActionHandlers {
	return &ActionHandlers{
		store:      store,
		resolver:   resolver,
		recorder:   recorder,
		comparison: reporting.NewComparisonSheet(resolver),
		now:        time.Now,
	}
}

// HandleMetered returns a handler that records one unit of capability for
// the caller. It must run behind EnforceLimit.
func (h *ActionHandlers) HandleMetered(capability entitlements.Capability, requireSeries bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, ok := ProfileFromContext(r.Context())
		if !ok {
			writeErrorResponse(w, http.StatusUnauthorized, "unauthenticated", "Missing user identity")
			return
		}

		req, err := decodeActionRequest(r, requireSeries)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		used, err := h.store.IncrementUsage(r.Context(), profile.ID, capability, 1)
		switch {
		case errors.Is(err, profiles.ErrNotFound):
			writeErrorResponse(w, http.StatusUnauthorized, "unknown_user", "Unknown user")
			return
		case err != nil:
			writeInternalError(w, r, "usage_unavailable", "Failed to record usage", err)
			return
		}
		if h.recorder != nil {
			h.recorder.RecordUsage(capability, 1)
		}

		limit, _ := h.resolver.ValueFor(profile.Tier, capability).Int()
		logger := logging.FromContext(r.Context())
		logger.Debug().
			Str("capability", string(capability)).
			Int64("used", used).
			Int64("limit", limit).
			Msg("Metered action recorded")

		writeJSON(w, http.StatusCreated, ActionResponse{
			Capability: capability,
			Name:       req.Name,
			SeriesID:   req.SeriesID,
			Used:       used,
			Limit:      limit,
			Remaining:  h.resolver.Remaining(profile.Tier, capability, used),
			State:      h.resolver.LimitState(profile.Tier, capability, used),
		})
	}
}

// HandleFeature returns a handler for a flag-gated read endpoint. It must run
// behind RequireCapability.
func (h *ActionHandlers) HandleFeature(capability entitlements.Capability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, ok := ProfileFromContext(r.Context())
		if !ok {
			writeErrorResponse(w, http.StatusUnauthorized, "unauthenticated", "Missing user identity")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"capability": capability,
			"name":       entitlements.CapabilityDisplayName(capability),
			"tier":       profile.Tier,
			"available":  true,
		})
	}
}

// HandleExportPDF streams the plan comparison sheet with the caller's tier
// highlighted. It must run behind RequireCapability(exportPdf).
func (h *ActionHandlers) HandleExportPDF(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "unauthenticated", "Missing user identity")
		return
	}

	pdf, err := h.comparison.Generate(reporting.ComparisonOptions{
		Highlight:   profile.Tier,
		GeneratedAt: h.now(),
	})
	if err != nil {
		writeInternalError(w, r, "export_failed", "Failed to generate PDF", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="storyforge-plans.pdf"`)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func decodeActionRequest(r *http.Request, requireSeries bool) (ActionRequest, error) {
	var req ActionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxActionBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, errors.New("request body is required")
		}
		return req, fmt.Errorf("invalid JSON body: %w", err)
	}

	req.Name = strings.TrimSpace(req.Name)
	req.SeriesID = strings.TrimSpace(req.SeriesID)
	if req.Name == "" {
		return req, errors.New("name is required")
	}
	if requireSeries && req.SeriesID == "" {
		return req, errors.New("series_id is required")
	}
	return req, nil
}
