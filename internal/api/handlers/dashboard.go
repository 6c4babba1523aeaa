package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"growgent/internal/backend"
	"growgent/internal/core"
	"growgent/internal/types"
)

// demoIDPrefix marks placeholder recommendations.
const demoIDPrefix = "demo-"

// Warning attached when placeholder cards replace backend data.
const (
	warnBackendOffline    = "backend offline: showing sample recommendations"
	warnNoRecommendations = "no recommendations yet: showing sample recommendations"
)

// DashboardBackend is the backend surface used by the dashboard.
type DashboardBackend interface {
	ListRecommendations(ctx context.Context, q backend.RecommendationQuery) (*types.RecommendationList, error)
	AcceptRecommendation(ctx context.Context, id string) (*types.APIRecommendation, error)
	ListAlerts(ctx context.Context, q backend.AlertQuery) (*types.AlertList, error)
	AcknowledgeAlert(ctx context.Context, id string) (*types.Alert, error)
	GetWaterSummary(ctx context.Context, farmID string) (*types.WaterMetricsSummary, error)
}

var _ DashboardBackend = (*backend.Client)(nil)

// DashboardHandler serves recommendation cards, alerts and water metrics.
type DashboardHandler struct {
	backend DashboardBackend
	farmID  string
	logger  *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler for farmID.
func NewDashboardHandler(b DashboardBackend, farmID string, l *slog.Logger) *DashboardHandler {
	if l == nil {
		l = slog.Default()
	}
	return &DashboardHandler{backend: b, farmID: farmID, logger: l}
}

// RegisterRoutes mounts the dashboard routes on r.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/recommendations", h.Recommendations)
		r.Get("/alerts", h.Alerts)
		r.Get("/water", h.WaterSummary)
	})
	r.Post("/recommendations/{id}/accept", h.AcceptRecommendation)
	r.Post("/alerts/{id}/acknowledge", h.AcknowledgeAlert)
}

// Recommendations handles GET /v1/dashboard/recommendations. When the backend
// is unreachable or has nothing to show, sample cards are returned with a
// warning instead of an error.
func (h *DashboardHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	q := backend.RecommendationQuery{
		FieldID:  strings.TrimSpace(r.URL.Query().Get("field_id")),
		PageSize: 20,
	}
	if raw := r.URL.Query().Get("accepted"); raw != "" {
		accepted, err := strconv.ParseBool(raw)
		if err != nil {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidField,
				"accepted must be true or false", err))
			return
		}
		q.Accepted = &accepted
	}

	list, err := h.backend.ListRecommendations(r.Context(), q)
	switch {
	case err != nil && isBackendUnreachable(err):
		h.logger.WarnContext(r.Context(), "backend unreachable, serving sample recommendations", "error", err)
		h.respondDemo(w, r, warnBackendOffline)
		return
	case err != nil:
		core.Error(w, r, err)
		return
	case len(list.Recommendations) == 0:
		h.respondDemo(w, r, warnNoRecommendations)
		return
	}

	cards := make([]types.Recommendation, 0, len(list.Recommendations))
	for _, rec := range list.Recommendations {
		cards = append(cards, types.FromAPI(rec))
	}
	total := list.Total
	core.RespondWithMeta(w, r, http.StatusOK, cards, &core.Meta{Total: &total})
}

func (h *DashboardHandler) respondDemo(w http.ResponseWriter, r *http.Request, warning string) {
	cards := demoRecommendations()
	total := len(cards)
	core.RespondWithMeta(w, r, http.StatusOK, cards, &core.Meta{Total: &total, Warnings: []string{warning}})
}

// AcceptRecommendation handles POST /v1/recommendations/{id}/accept.
func (h *DashboardHandler) AcceptRecommendation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.HasPrefix(id, demoIDPrefix) {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidField,
			"sample recommendations cannot be accepted", nil,
			map[string]any{"recommendation_id": id}))
		return
	}

	rec, err := h.backend.AcceptRecommendation(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "recommendation accepted", "recommendation_id", id)
	core.Respond(w, r, http.StatusOK, types.FromAPI(*rec))
}

// Alerts handles GET /v1/dashboard/alerts.
func (h *DashboardHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	q := backend.AlertQuery{
		FieldID:  strings.TrimSpace(r.URL.Query().Get("field_id")),
		Severity: strings.TrimSpace(r.URL.Query().Get("severity")),
		PageSize: 50,
	}
	if raw := r.URL.Query().Get("acknowledged"); raw != "" {
		ack, err := strconv.ParseBool(raw)
		if err != nil {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidField,
				"acknowledged must be true or false", err))
			return
		}
		q.Acknowledged = &ack
	}

	list, err := h.backend.ListAlerts(r.Context(), q)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	alerts := list.Alerts
	if alerts == nil {
		alerts = []types.Alert{}
	}
	total := list.Total
	core.RespondWithMeta(w, r, http.StatusOK, alerts, &core.Meta{Total: &total})
}

// AcknowledgeAlert handles POST /v1/alerts/{id}/acknowledge.
func (h *DashboardHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	alert, err := h.backend.AcknowledgeAlert(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "alert acknowledged", "alert_id", id)
	core.Respond(w, r, http.StatusOK, alert)
}

// WaterSummary handles GET /v1/dashboard/water.
func (h *DashboardHandler) WaterSummary(w http.ResponseWriter, r *http.Request) {
	farmID := h.farmID
	if q := strings.TrimSpace(r.URL.Query().Get("farm_id")); q != "" {
		farmID = q
	}
	summary, err := h.backend.GetWaterSummary(r.Context(), farmID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, summary)
}

func isBackendUnreachable(err error) bool {
	return types.IsCode(err, types.ErrCodeUpstreamBackendOffline) ||
		types.IsCode(err, types.ErrCodeUpstreamUnavailable) ||
		types.IsCode(err, types.ErrCodeUpstreamTimeout)
}

// demoRecommendations returns the sample cards shown before the agents have
// produced anything.
func demoRecommendations() []types.Recommendation {
	demos := []types.DemoRecommendation{
		{
			Title:       "Pre-irrigate before PSPS shutoff",
			Action:      types.ActionPreIrrigate,
			FieldName:   "North Orchard",
			Description: "A public safety power shutoff is forecast. Irrigate while pumps have power to raise soil moisture ahead of the outage.",
			Timing:      "Tonight, 22:00",
			WaterAmount: "12,000 L",
		},
		{
			Title:       "Delay irrigation",
			Action:      types.ActionDelay,
			FieldName:   "South Vineyard",
			Description: "Soil moisture is adequate and rain is expected within 48 hours.",
			Timing:      "Next 2 days",
			WaterAmount: "0 L",
		},
		{
			Title:       "Irrigate to reduce fire risk",
			Action:      types.ActionIrrigate,
			FieldName:   "East Pasture",
			Description: "Dry fuel near the field edge raises fire risk. A short cycle keeps the buffer green.",
			Timing:      "Tomorrow, 05:30",
			WaterAmount: "4,500 L",
		},
	}

	cards := make([]types.Recommendation, 0, len(demos))
	for i, d := range demos {
		d.ID = fmt.Sprintf("%s%d", demoIDPrefix, i+1)
		cards = append(cards, types.FromDemo(d))
	}
	return cards
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return strconv.Itoa(n) + " " + plural
}
