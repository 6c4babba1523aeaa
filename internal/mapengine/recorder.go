package mapengine

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"growgent/internal/types"
)

// Recorder is an in-memory Engine. It enforces the same id rules as a real
// map, keeps layer stacking order, and logs every successful mutation.
type Recorder struct {
	mu      sync.Mutex
	ready   bool
	sources map[string]Source
	layers  []Layer // bottom to top
	markers map[string]types.Position
	ops     []Op
}

var _ Engine = (*Recorder)(nil)

// NewRecorder creates a Recorder. It starts not ready.
func NewRecorder() *Recorder {
	return &Recorder{
		sources: make(map[string]Source),
		markers: make(map[string]types.Position),
	}
}

// SetReady flips the readiness flag.
func (r *Recorder) SetReady(ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = ready
}

func (r *Recorder) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func (r *Recorder) HasSource(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sources[id]
	return ok
}

func (r *Recorder) AddSource(id string, src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return ErrNotReady
	}
	if _, ok := r.sources[id]; ok {
		return fmt.Errorf("add source %q: %w", id, ErrDuplicateID)
	}
	r.sources[id] = src
	r.ops = append(r.ops, Op{Kind: OpAddSource, ID: id, Source: &src})
	return nil
}

func (r *Recorder) RemoveSource(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return ErrNotReady
	}
	if _, ok := r.sources[id]; !ok {
		return fmt.Errorf("remove source %q: %w", id, ErrUnknownID)
	}
	for _, l := range r.layers {
		if l.Source == id {
			return fmt.Errorf("remove source %q used by layer %q: %w", id, l.ID, ErrSourceInUse)
		}
	}
	delete(r.sources, id)
	r.ops = append(r.ops, Op{Kind: OpRemoveSource, ID: id})
	return nil
}

func (r *Recorder) HasLayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layerIndex(id) >= 0
}

func (r *Recorder) AddLayer(layer Layer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return ErrNotReady
	}
	if r.layerIndex(layer.ID) >= 0 {
		return fmt.Errorf("add layer %q: %w", layer.ID, ErrDuplicateID)
	}
	if _, ok := r.sources[layer.Source]; !ok {
		return fmt.Errorf("add layer %q with source %q: %w", layer.ID, layer.Source, ErrUnknownSource)
	}
	pos := len(r.layers)
	if layer.Before != "" {
		if i := r.layerIndex(layer.Before); i >= 0 {
			pos = i
		}
	}
	r.layers = slices.Insert(r.layers, pos, layer)
	r.ops = append(r.ops, Op{Kind: OpAddLayer, ID: layer.ID, Layer: &layer})
	return nil
}

func (r *Recorder) RemoveLayer(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return ErrNotReady
	}
	i := r.layerIndex(id)
	if i < 0 {
		return fmt.Errorf("remove layer %q: %w", id, ErrUnknownID)
	}
	r.layers = slices.Delete(r.layers, i, i+1)
	r.ops = append(r.ops, Op{Kind: OpRemoveLayer, ID: id})
	return nil
}

func (r *Recorder) AddMarker(id string, at types.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return ErrNotReady
	}
	if _, ok := r.markers[id]; ok {
		return fmt.Errorf("add marker %q: %w", id, ErrDuplicateID)
	}
	r.markers[id] = at
	r.ops = append(r.ops, Op{Kind: OpAddMarker, ID: id, Position: &at})
	return nil
}

func (r *Recorder) RemoveMarker(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return ErrNotReady
	}
	if _, ok := r.markers[id]; !ok {
		return fmt.Errorf("remove marker %q: %w", id, ErrUnknownID)
	}
	delete(r.markers, id)
	r.ops = append(r.ops, Op{Kind: OpRemoveMarker, ID: id})
	return nil
}

// Ops returns a copy of the mutation log.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ops)
}

// ResetOps clears the mutation log without touching map state.
func (r *Recorder) ResetOps() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

// Source returns the source registered under id.
func (r *Recorder) Source(id string) (Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	return s, ok
}

// SourceIDs returns the registered source ids in lexical order.
func (r *Recorder) SourceIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LayerIDs returns the layer ids from bottom to top.
func (r *Recorder) LayerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.layers))
	for i, l := range r.layers {
		ids[i] = l.ID
	}
	return ids
}

// MarkerIDs returns the marker ids in lexical order.
func (r *Recorder) MarkerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.markers))
	for id := range r.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear drops all sources, layers and markers, as a browser map does when it
// reloads its style. The op log is kept.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = make(map[string]Source)
	r.markers = make(map[string]types.Position)
	r.layers = nil
}

func (r *Recorder) layerIndex(id string) int {
	for i, l := range r.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}
