package zones

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"growgent/internal/geometry"
	"growgent/internal/types"
)

// CreateZoneInput is the content of the zone dialog. Type and Level default
// to fire_risk and moderate; a nil Geometry gets a placeholder polygon.
type CreateZoneInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Type        types.ZoneType  `json:"type,omitempty" validate:"omitempty,zone_type"`
	Level       types.RiskLevel `json:"level,omitempty" validate:"omitempty,risk_level"`
	Geometry    *types.Feature  `json:"geometry,omitempty"`
	Description *string         `json:"description,omitempty"`
	FieldID     *string         `json:"field_id,omitempty"`
	FarmID      *string         `json:"farm_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Service implements the zone operations on top of a ZoneRepository.
type Service struct {
	repo      ZoneRepository
	publisher EventPublisher
	center    types.Position
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a Service. center is where placeholder polygons are
// dropped. A nil publisher discards events.
func NewService(repo ZoneRepository, publisher EventPublisher, center types.Position, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		center:    center,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// List returns the zones passing f, in creation order.
func (s *Service) List(ctx context.Context, f types.ZoneFilter) ([]types.RiskZone, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, f), nil
}

// Get returns one zone.
func (s *Service) Get(ctx context.Context, id string) (*types.RiskZone, error) {
	return s.repo.Get(ctx, id)
}

// Create validates in, fills defaults, and stores a new zone.
func (s *Service) Create(ctx context.Context, in CreateZoneInput) (*types.RiskZone, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField, "zone name is required", nil,
			map[string]any{"field": "name"})
	}
	if len(name) > types.MaxNameLength {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidField,
			fmt.Sprintf("zone name must be at most %d characters", types.MaxNameLength), nil, map[string]any{"field": "name"})
	}

	zoneType := in.Type
	if zoneType == "" {
		zoneType = types.DefaultZoneType
	}
	if !zoneType.Valid() {
		return nil, invalidZoneType(zoneType)
	}
	level := in.Level
	if level == "" {
		level = types.DefaultRiskLevel
	}
	if !level.Valid() {
		return nil, invalidRiskLevel(level)
	}

	var feature types.Feature
	if in.Geometry == nil {
		feature = geometry.PlaceholderPolygon(s.center)
	} else {
		if err := checkGeometry(*in.Geometry); err != nil {
			return nil, err
		}
		feature = in.Geometry.Clone()
	}

	now := s.now()
	z := &types.RiskZone{
		ID:          s.newID(),
		Name:        name,
		Type:        zoneType,
		Level:       level,
		Geometry:    feature,
		Description: in.Description,
		FieldID:     in.FieldID,
		FarmID:      in.FarmID,
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, z); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "zone created", "zone_id", z.ID, "type", z.Type, "level", z.Level)
	s.publish(ctx, types.ZoneCreated, z.ID, z)
	return z, nil
}

// Update overwrites the patched fields of zone id and bumps updated_at.
// An unknown id is a silent no-op: it returns found == false and no error.
func (s *Service) Update(ctx context.Context, id string, patch types.ZonePatch) (*types.RiskZone, bool, error) {
	if err := checkPatch(patch); err != nil {
		return nil, false, err
	}

	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if patch.Geometry != nil {
		g := patch.Geometry.Clone()
		patch.Geometry = &g
	}

	now := s.now()
	z, found, err := s.repo.Update(ctx, id, func(z *types.RiskZone) { patch.Apply(z, now) })
	if err != nil || !found {
		return nil, found, err
	}

	s.logger.InfoContext(ctx, "zone updated", "zone_id", z.ID)
	s.publish(ctx, types.ZoneUpdated, z.ID, z)
	return z, true, nil
}

// Delete removes zone id. The caller must pass confirmed == true once the
// user has acknowledged that deletion cannot be undone.
func (s *Service) Delete(ctx context.Context, id string, confirmed bool) (bool, error) {
	if !confirmed {
		return false, types.NewAppError(types.ErrCodeValidationConfirmation,
			"deleting a zone is irreversible and must be confirmed", nil)
	}
	found, err := s.repo.Delete(ctx, id)
	if err != nil || !found {
		return found, err
	}

	s.logger.InfoContext(ctx, "zone deleted", "zone_id", id)
	s.publish(ctx, types.ZoneDeleted, id, nil)
	return true, nil
}

// publish sends a change event. Failures are logged and never surface to the caller.
func (s *Service) publish(ctx context.Context, kind types.ZoneEventType, id string, z *types.RiskZone) {
	ev := types.ZoneEvent{
		EventID:    uuid.New().String(),
		Type:       kind,
		ZoneID:     id,
		Zone:       z,
		RequestID:  types.GetRequestID(ctx),
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish zone event", "event_type", kind, "zone_id", id, "error", err)
	}
}

func checkPatch(p types.ZonePatch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField, "zone name cannot be empty", nil,
			map[string]any{"field": "name"})
	}
	if p.Type != nil && !p.Type.Valid() {
		return invalidZoneType(*p.Type)
	}
	if p.Level != nil && !p.Level.Valid() {
		return invalidRiskLevel(*p.Level)
	}
	if p.Geometry != nil {
		return checkGeometry(*p.Geometry)
	}
	return nil
}

func checkGeometry(f types.Feature) error {
	if err := types.ValidateZoneGeometry(f); err != nil {
		return types.NewAppError(types.ErrCodeValidationGeometry, "zone geometry must be a closed polygon", err)
	}
	return nil
}

func invalidZoneType(t types.ZoneType) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationZoneType, fmt.Sprintf("unknown zone type %q", t), nil,
		map[string]any{"allowed": types.ZoneTypes})
}

func invalidRiskLevel(l types.RiskLevel) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationRiskLevel, fmt.Sprintf("unknown risk level %q", l), nil,
		map[string]any{"allowed": types.RiskLevels})
}
