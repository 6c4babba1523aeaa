// Package handlers contains the HTTP handlers of the field map API.
//
// Handlers depend on small locally declared interfaces so tests can swap in
// fakes; cmd/api wires the concrete services.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"growgent/internal/core"
	"growgent/internal/types"
	"growgent/internal/zones"
)

// ZoneService is the zone store used by ZoneHandler.
type ZoneService interface {
	List(ctx context.Context, f types.ZoneFilter) ([]types.RiskZone, error)
	Get(ctx context.Context, id string) (*types.RiskZone, error)
	Create(ctx context.Context, in zones.CreateZoneInput) (*types.RiskZone, error)
	Update(ctx context.Context, id string, patch types.ZonePatch) (*types.RiskZone, bool, error)
	Delete(ctx context.Context, id string, confirmed bool) (bool, error)
}

var _ ZoneService = (*zones.Service)(nil)

// ZoneHandler serves zone CRUD and export.
type ZoneHandler struct {
	zones     ZoneService
	validator *core.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewZoneHandler creates a ZoneHandler.
func NewZoneHandler(svc ZoneService, v *core.Validator, l *slog.Logger) *ZoneHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ZoneHandler{zones: svc, validator: v, logger: l, now: time.Now}
}

// RegisterRoutes mounts the zone routes on r.
func (h *ZoneHandler) RegisterRoutes(r chi.Router) {
	r.Route("/zones", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/export.geojson", h.ExportGeoJSON)
		r.Get("/export.xlsx", h.ExportXLSX)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

// List handles GET /v1/zones.
func (h *ZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseZoneFilter(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	list, err := h.zones.List(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if list == nil {
		list = []types.RiskZone{}
	}

	total := len(list)
	core.RespondWithMeta(w, r, http.StatusOK, list, &core.Meta{Total: &total})
}

// Create handles POST /v1/zones.
func (h *ZoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in zones.CreateZoneInput
	if err := core.DecodeJSON(w, r, &in); err != nil {
		core.Error(w, r, err)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := h.validator.ValidateStruct(in); err != nil {
		core.Error(w, r, err)
		return
	}

	z, err := h.zones.Create(r.Context(), in)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusCreated, z)
}

// Get handles GET /v1/zones/{id}.
func (h *ZoneHandler) Get(w http.ResponseWriter, r *http.Request) {
	z, err := h.zones.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, z)
}

// Update handles PATCH /v1/zones/{id}. Over HTTP an unknown id is a 404; the
// map session treats the same case as a no-op.
func (h *ZoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch types.ZonePatch
	if err := core.DecodeJSON(w, r, &patch); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(patch); err != nil {
		core.Error(w, r, err)
		return
	}

	z, found, err := h.zones.Update(r.Context(), id, patch)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !found {
		core.Error(w, r, zoneNotFound(id))
		return
	}
	core.Respond(w, r, http.StatusOK, z)
}

// Delete handles DELETE /v1/zones/{id}?confirm=true.
func (h *ZoneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	found, err := h.zones.Delete(r.Context(), id, confirmed)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !found {
		core.Error(w, r, zoneNotFound(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportGeoJSON handles GET /v1/zones/export.geojson.
func (h *ZoneHandler) ExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, zones.ExtGeoJSON, "application/geo+json", zones.ExportGeoJSON)
}

// ExportXLSX handles GET /v1/zones/export.xlsx.
func (h *ZoneHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, zones.ExtXLSX,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", zones.ExportXLSX)
}

func (h *ZoneHandler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, render func([]types.RiskZone) ([]byte, error)) {
	filter, err := parseZoneFilter(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	list, err := h.zones.List(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	body, err := render(list)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "zone export failed", "format", ext, "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to export zones", err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+zones.ExportFilename(h.now(), ext)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// parseZoneFilter reads type, level, field_id and farm_id. type and level
// accept comma-separated lists.
func parseZoneFilter(r *http.Request) (types.ZoneFilter, error) {
	q := r.URL.Query()
	f := types.ZoneFilter{
		FieldID: strings.TrimSpace(q.Get("field_id")),
		FarmID:  strings.TrimSpace(q.Get("farm_id")),
	}

	for _, raw := range splitList(q["type"]) {
		t := types.ZoneType(raw)
		if !t.Valid() {
			return f, types.NewAppErrorWithDetails(types.ErrCodeValidationZoneType,
				"unknown zone type "+strconv.Quote(raw), nil,
				map[string]any{"allowed": types.ZoneTypes})
		}
		f.Types = append(f.Types, t)
	}
	for _, raw := range splitList(q["level"]) {
		l := types.RiskLevel(raw)
		if !l.Valid() {
			return f, types.NewAppErrorWithDetails(types.ErrCodeValidationRiskLevel,
				"unknown risk level "+strconv.Quote(raw), nil,
				map[string]any{"allowed": types.RiskLevels})
		}
		f.Levels = append(f.Levels, l)
	}
	return f, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func zoneNotFound(id string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeNotFoundZone, "zone not found", nil,
		map[string]any{"zone_id": id})
}
