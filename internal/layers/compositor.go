package layers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"growgent/internal/geometry"
	"growgent/internal/mapengine"
	"growgent/internal/types"
)

// Step is one engine mutation of a plan, tagged with the group it belongs to.
type Step struct {
	Group string
	Op    mapengine.Op
}

// Plan is the ordered list of mutations that turns the materialized layer set
// into the desired one. Removals always precede additions.
type Plan []Step

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool { return len(p) == 0 }

// materialized records what the compositor has put on the engine for a group.
type materialized struct {
	fingerprint []byte
	layerIDs    []string
}

// Compositor keeps the map's layers in step with its inputs. It is not safe
// for concurrent use; each map session owns one.
type Compositor struct {
	parser  *geometry.Parser
	palette Palette
	logger  *slog.Logger
	current map[string]materialized
}

// NewCompositor creates a Compositor. A nil palette uses DefaultPalette.
func NewCompositor(palette Palette, logger *slog.Logger) *Compositor {
	if palette == nil {
		palette = DefaultPalette()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{
		parser:  geometry.NewParser(logger),
		palette: palette,
		logger:  logger,
		current: make(map[string]materialized),
	}
}

// Reset forgets everything materialized, for use after the engine has lost
// its state.
func (c *Compositor) Reset() {
	c.current = make(map[string]materialized)
}

// Materialized returns the ids of the groups currently on the engine, bottom
// to top.
func (c *Compositor) Materialized() []string {
	out := make([]string, 0, len(c.current))
	for _, id := range GroupOrder {
		if _, ok := c.current[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Render brings the engine in line with in and returns the plan it applied.
// When the engine is not ready nothing is planned or applied; callers render
// again once it reports ready.
func (c *Compositor) Render(e mapengine.Engine, in Inputs) (Plan, error) {
	if !e.Ready() {
		return nil, nil
	}
	plan, err := c.Plan(e, in)
	if err != nil {
		return nil, err
	}
	if err := c.apply(e, plan, c.desired(in)); err != nil {
		return plan, err
	}
	return plan, nil
}

// Plan computes the mutations Render would apply, without applying them.
func (c *Compositor) Plan(e mapengine.Engine, in Inputs) (Plan, error) {
	desired := c.desired(in)
	prints := make(map[string][]byte, len(desired))
	for id, g := range desired {
		fp, err := fingerprint(g)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalMapEngine, "failed to encode layer group "+id, err)
		}
		prints[id] = fp
	}

	var removals, additions Plan
	kept := make(map[string]bool, len(GroupOrder))

	for _, id := range GroupOrder {
		m, have := c.current[id]
		if have && !e.HasSource(id) {
			// The engine dropped its state behind our back.
			delete(c.current, id)
			have = false
		}
		g, want := desired[id]
		switch {
		case have && want && bytes.Equal(m.fingerprint, prints[id]):
			kept[id] = true
		case have:
			removals = append(removals, teardown(id, m.layerIDs)...)
		case want:
			removals = append(removals, strays(e, g)...)
		}
	}

	for i, id := range GroupOrder {
		g, want := desired[id]
		if !want || kept[id] {
			continue
		}
		before := c.anchorAbove(GroupOrder[i+1:], kept)
		src := g.source
		additions = append(additions, Step{Group: id, Op: mapengine.Op{Kind: mapengine.OpAddSource, ID: id, Source: &src}})
		for _, l := range g.layers {
			l.Before = before
			additions = append(additions, Step{Group: id, Op: mapengine.Op{Kind: mapengine.OpAddLayer, ID: l.ID, Layer: &l}})
		}
	}

	return append(removals, additions...), nil
}

// anchorAbove returns the bottom layer of the nearest kept group in above.
func (c *Compositor) anchorAbove(above []string, kept map[string]bool) string {
	for _, id := range above {
		if kept[id] {
			if ids := c.current[id].layerIDs; len(ids) > 0 {
				return ids[0]
			}
		}
	}
	return ""
}

func (c *Compositor) apply(e mapengine.Engine, plan Plan, desired map[string]group) error {
	for _, step := range plan {
		if err := mapengine.Apply(e, step.Op); err != nil {
			// Forget the group; the next render treats leftovers as strays.
			delete(c.current, step.Group)
			return types.NewAppError(types.ErrCodeInternalMapEngine,
				fmt.Sprintf("failed to apply %s %q", step.Op.Kind, step.Op.ID), err)
		}
		switch step.Op.Kind {
		case mapengine.OpRemoveSource:
			delete(c.current, step.Group)
		case mapengine.OpAddLayer:
			g := desired[step.Group]
			ids := g.layerIDs()
			if step.Op.ID == ids[len(ids)-1] {
				fp, _ := fingerprint(g)
				c.current[step.Group] = materialized{fingerprint: fp, layerIDs: ids}
			}
		}
	}
	if len(plan) > 0 {
		c.logger.Debug("map layers updated", "steps", len(plan), "groups", c.Materialized())
	}
	return nil
}

// desired builds the groups that should be on the map for in.
func (c *Compositor) desired(in Inputs) map[string]group {
	out := make(map[string]group, len(GroupOrder))

	if in.Layers.Satellite && in.Tiles.Satellite != "" {
		out[GroupSatellite] = rasterGroup(GroupSatellite, in.Tiles.Satellite, 1)
	}
	if in.Layers.NDVI && in.Tiles.NDVI != "" {
		out[GroupNDVI] = rasterGroup(GroupNDVI, in.Tiles.NDVI, 0.6)
	}
	if fields := fieldFeatures(c.parser, in.Fields, in.SelectedFieldID); len(fields) > 0 {
		out[GroupFields] = fieldsGroup(fields)
	}
	if in.Layers.FireRisk {
		out[GroupFireRisk] = polygonGroup(GroupFireRisk, zoneFeatures(c.palette, in.Zones, zoneTypeIs(types.ZoneFireRisk)), 0.35)
	}
	if in.Layers.PSPS {
		out[GroupPSPS] = polygonGroup(GroupPSPS, zoneFeatures(c.palette, in.Zones, zoneTypeIs(types.ZonePSPS)), 0.35)
	}
	if custom := zoneFeatures(c.palette, in.Zones, isCustomZone); len(custom) > 0 {
		out[GroupCustomZones] = polygonGroup(GroupCustomZones, custom, 0.3)
	}
	if in.Layers.Sensors {
		out[GroupSensors] = sensorsGroup(sensorFeatures(c.parser, in.Fields))
	}
	return out
}

// teardown removes a group's layers top-down, then its source.
func teardown(id string, layerIDs []string) Plan {
	steps := make(Plan, 0, len(layerIDs)+1)
	for _, lid := range slices.Backward(layerIDs) {
		steps = append(steps, Step{Group: id, Op: mapengine.Op{Kind: mapengine.OpRemoveLayer, ID: lid}})
	}
	return append(steps, Step{Group: id, Op: mapengine.Op{Kind: mapengine.OpRemoveSource, ID: id}})
}

// strays removes ids the engine holds for a group the compositor does not
// track, so the following add never collides.
func strays(e mapengine.Engine, g group) Plan {
	var steps Plan
	for _, l := range slices.Backward(g.layers) {
		if e.HasLayer(l.ID) {
			steps = append(steps, Step{Group: g.id, Op: mapengine.Op{Kind: mapengine.OpRemoveLayer, ID: l.ID}})
		}
	}
	if e.HasSource(g.id) {
		steps = append(steps, Step{Group: g.id, Op: mapengine.Op{Kind: mapengine.OpRemoveSource, ID: g.id}})
	}
	return steps
}

func fingerprint(g group) ([]byte, error) {
	return json.Marshal(struct {
		Source mapengine.Source  `json:"source"`
		Layers []mapengine.Layer `json:"layers"`
	}{g.source, g.layers})
}
