package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/storyforge/storyforge/internal/audit"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// PlanHistory reads recorded plan changes for a profile.
type PlanHistory interface {
	History(ctx context.Context, profileID string, limit int) ([]audit.Event, error)
}

// HistoryHandlers serves the caller's own plan history.
type HistoryHandlers struct {
	history PlanHistory
}

func NewHistoryHandlers(history PlanHistory) *HistoryHandlers {
	return &HistoryHandlers{history: history}
}

// HandlePlanHistory returns {"events": [...]}, newest first. ?limit caps the
// result (default 50, max 500).
func (h *HistoryHandlers) HandlePlanHistory(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	events, err := h.history.History(r.Context(), profile.ID, limit)
	if err != nil {
		writeInternalError(w, r, "history_unavailable", "Plan history is unavailable", err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
