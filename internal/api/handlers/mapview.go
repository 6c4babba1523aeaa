package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"growgent/internal/backend"
	"growgent/internal/core"
	"growgent/internal/geometry"
	"growgent/internal/layers"
	"growgent/internal/types"
)

// fieldPageSize is how many fields the map requests from the backend.
const fieldPageSize = 100

// MapSettings are the map defaults served to the browser and handed to
// every session.
type MapSettings struct {
	FarmID   string
	StyleURL string
	Center   types.Position
	Zoom     float64
	Palette  layers.Palette
	Tiles    layers.TileSources
	Layers   layers.LayerState
}

// mapConfigResponse is the body of GET /v1/map/config.
type mapConfigResponse struct {
	StyleURL string             `json:"style_url"`
	Center   types.Position     `json:"center"`
	Zoom     float64            `json:"zoom"`
	FarmID   string             `json:"farm_id,omitempty"`
	Layers   layers.LayerState  `json:"layers"`
	Palette  layers.Palette     `json:"palette"`
	Tiles    layers.TileSources `json:"tiles"`
}

// MapHandler serves the field layer, the map defaults and the map session
// WebSocket.
type MapHandler struct {
	fields   FieldSource
	zones    ZoneService
	settings MapSettings
	parser   *geometry.Parser
	logger   *slog.Logger

	upgrader websocket.Upgrader
	sessions context.Context
}

// FieldSource lists the farm's fields.
type FieldSource interface {
	ListFields(ctx context.Context, q backend.FieldQuery) (*types.FieldList, error)
}

// NewMapHandler creates a MapHandler. sessions bounds the lifetime of every
// WebSocket session; cancel it on shutdown. allowedOrigins is checked during
// the WebSocket handshake.
func NewMapHandler(
	sessions context.Context,
	fields FieldSource,
	zoneSvc ZoneService,
	settings MapSettings,
	allowedOrigins []string,
	l *slog.Logger,
) *MapHandler {
	if l == nil {
		l = slog.Default()
	}
	if settings.Palette == nil {
		settings.Palette = layers.DefaultPalette()
	}
	return &MapHandler{
		fields:   fields,
		zones:    zoneSvc,
		settings: settings,
		parser:   geometry.NewParser(l),
		logger:   l,
		upgrader: newUpgrader(allowedOrigins),
		sessions: sessions,
	}
}

// RegisterRoutes mounts the map routes on r.
func (h *MapHandler) RegisterRoutes(r chi.Router) {
	r.Route("/map", func(r chi.Router) {
		r.Get("/config", h.Config)
		r.Get("/fields", h.Fields)
		r.Get("/ws", h.ServeWS)
	})
}

// Config handles GET /v1/map/config.
func (h *MapHandler) Config(w http.ResponseWriter, r *http.Request) {
	core.Respond(w, r, http.StatusOK, mapConfigResponse{
		StyleURL: h.settings.StyleURL,
		Center:   h.settings.Center,
		Zoom:     h.settings.Zoom,
		FarmID:   h.settings.FarmID,
		Layers:   h.settings.Layers,
		Palette:  h.settings.Palette,
		Tiles:    h.settings.Tiles,
	})
}

// Fields handles GET /v1/map/fields. Fields whose boundary cannot be parsed
// are omitted and counted in a warning.
func (h *MapHandler) Fields(w http.ResponseWriter, r *http.Request) {
	q := backend.FieldQuery{
		FarmID:   h.settings.FarmID,
		CropType: strings.TrimSpace(r.URL.Query().Get("crop_type")),
		PageSize: fieldPageSize,
	}
	if farm := strings.TrimSpace(r.URL.Query().Get("farm_id")); farm != "" {
		q.FarmID = farm
	}

	list, err := h.fields.ListFields(r.Context(), q)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to load fields", "farm_id", q.FarmID, "error", err)
		core.Error(w, r, err)
		return
	}

	fc := layers.FieldCollection(h.parser, list.Fields, r.URL.Query().Get("selected"))
	total := len(fc.Features)
	meta := &core.Meta{Total: &total}
	if skipped := len(list.Fields) - total; skipped > 0 {
		meta.Warnings = append(meta.Warnings, pluralize(skipped, "field", "fields")+" without a usable boundary")
	}
	core.RespondWithMeta(w, r, http.StatusOK, fc, meta)
}
