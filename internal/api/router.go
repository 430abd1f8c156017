package api

import (
	"net/http"
	"strings"

	"github.com/storyforge/storyforge/internal/logging"
	"github.com/storyforge/storyforge/internal/profiles"
	"github.com/storyforge/storyforge/pkg/entitlements"
)

// RouterConfig holds what the router needs to serve requests.
type RouterConfig struct {
	Profiles       profiles.Store
	Gate           *entitlements.Gate
	UsageRecorder  UsageRecorder
	AllowedOrigins []string
	UpgradeURL     string
	Version        string
	History        PlanHistory // serves GET /api/plan/history when set
}

// Router handles HTTP routing
type Router struct {
	mux    *http.ServeMux
	config RouterConfig
}

// NewRouter creates a new router instance
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Gate == nil {
		cfg.Gate = entitlements.NewGate(nil, entitlements.WithUpgradeURL(cfg.UpgradeURL))
	}
	r := &Router{
		mux:    http.NewServeMux(),
		config: cfg,
	}
	r.setupRoutes()
	return ErrorHandler(logging.New("api"), r)
}

func (r *Router) setupRoutes() {
	gate := r.config.Gate
	store := r.config.Profiles
	entitlementHandlers := NewEntitlementHandlers(gate, r.config.UpgradeURL)
	actionHandlers := NewActionHandlers(store, gate.Resolver(), r.config.UsageRecorder)

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return RequireIdentity(store, h)
	}
	metered := func(capability entitlements.Capability, requireSeries bool) http.HandlerFunc {
		return authed(EnforceLimit(gate, capability, actionHandlers.HandleMetered(capability, requireSeries)))
	}
	feature := func(capability entitlements.Capability, h http.HandlerFunc) http.HandlerFunc {
		return authed(RequireCapability(gate, capability, h))
	}

	r.mux.HandleFunc("GET /api/health", r.handleHealth)
	r.mux.HandleFunc("GET /api/tiers", entitlementHandlers.HandleTiers)
	r.mux.HandleFunc("GET /api/entitlements", authed(entitlementHandlers.HandleEntitlements))
	r.mux.HandleFunc("GET /api/entitlements/{capability}", authed(entitlementHandlers.HandleCapability))
	if r.config.History != nil {
		historyHandlers := NewHistoryHandlers(r.config.History)
		r.mux.HandleFunc("GET /api/plan/history", authed(historyHandlers.HandlePlanHistory))
	}

	// Metered actions
	r.mux.HandleFunc("POST /api/series", metered(entitlements.CapMaxSeries, false))
	r.mux.HandleFunc("POST /api/series/characters", metered(entitlements.CapMaxCharactersPerSeries, true))
	r.mux.HandleFunc("POST /api/series/locations", metered(entitlements.CapMaxLocationsPerSeries, true))
	r.mux.HandleFunc("POST /api/timeline/events", metered(entitlements.CapMaxTimelineEvents, true))
	r.mux.HandleFunc("POST /api/ai/suggestions", metered(entitlements.CapAISuggestionsLimit, false))
	r.mux.HandleFunc("POST /api/collaborators", metered(entitlements.CapMaxCollaborators, true))

	// Flag-gated features
	r.mux.HandleFunc("GET /api/worlds/advanced", feature(entitlements.CapWorldBuildingAdvanced,
		actionHandlers.HandleFeature(entitlements.CapWorldBuildingAdvanced)))
	r.mux.HandleFunc("GET /api/relationships", feature(entitlements.CapRelationshipMapping,
		actionHandlers.HandleFeature(entitlements.CapRelationshipMapping)))
	r.mux.HandleFunc("GET /api/export/pdf", feature(entitlements.CapExportPDF, actionHandlers.HandleExportPDF))
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if applyCORS(r.config.AllowedOrigins, w, req) {
		return
	}
	if strings.HasPrefix(req.URL.Path, "/api/") {
		addSecurityHeaders(w)
	}
	r.mux.ServeHTTP(w, req)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": r.config.Version,
	})
}

func addSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "no-store")
}
