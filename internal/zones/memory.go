package zones

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"growgent/internal/types"
)

// MemoryRepository keeps zones in process memory. Zones are lost on restart.
// It is safe for concurrent use.
type MemoryRepository struct {
	mu    sync.RWMutex
	zones []types.RiskZone
}

var _ ZoneRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) List(_ context.Context) ([]types.RiskZone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.RiskZone, len(r.zones))
	for i, z := range r.zones {
		out[i] = copyZone(z)
	}
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*types.RiskZone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.index(id)
	if i < 0 {
		return nil, types.NewAppError(types.ErrCodeNotFoundZone, fmt.Sprintf("zone %q not found", id), nil)
	}
	z := copyZone(r.zones[i])
	return &z, nil
}

func (r *MemoryRepository) Create(_ context.Context, z *types.RiskZone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(z.ID) >= 0 {
		return types.NewAppError(types.ErrCodeConflictDuplicateID, fmt.Sprintf("zone %q already exists", z.ID), nil)
	}
	r.zones = append(r.zones, copyZone(*z))
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, apply func(*types.RiskZone)) (*types.RiskZone, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return nil, false, nil
	}
	z := copyZone(r.zones[i])
	apply(&z)
	// The stored zone keeps its identity whatever apply does.
	z.ID, z.CreatedAt = r.zones[i].ID, r.zones[i].CreatedAt
	r.zones[i] = copyZone(z)
	return &z, true, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return false, nil
	}
	r.zones = slices.Delete(r.zones, i, i+1)
	return true, nil
}

func (r *MemoryRepository) index(id string) int {
	return slices.IndexFunc(r.zones, func(z types.RiskZone) bool { return z.ID == id })
}

// copyZone detaches the mutable parts of z so callers cannot alter stored state.
func copyZone(z types.RiskZone) types.RiskZone {
	z.Geometry = z.Geometry.Clone()
	if z.Metadata != nil {
		z.Metadata = slices.Clone(z.Metadata)
	}
	return z
}
