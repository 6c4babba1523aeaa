// Package zones holds the user-drawn risk zones and the operations on them.
package zones

import (
	"context"

	"growgent/internal/types"
)

// ZoneRepository stores zones. List returns zones in creation order. Get
// returns a not_found_zone AppError for unknown ids; Update and Delete report
// found == false instead of failing.
//
// Update reads zone id, passes it to apply and stores the result as one
// atomic step, so concurrent patches to the same zone never overwrite each
// other. apply must not retain the zone.
type ZoneRepository interface {
	List(ctx context.Context) ([]types.RiskZone, error)
	Get(ctx context.Context, id string) (*types.RiskZone, error)
	Create(ctx context.Context, z *types.RiskZone) error
	Update(ctx context.Context, id string, apply func(*types.RiskZone)) (*types.RiskZone, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// EventPublisher delivers zone change events.
type EventPublisher interface {
	Publish(ctx context.Context, ev types.ZoneEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, types.ZoneEvent) error { return nil }
