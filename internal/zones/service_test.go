package zones

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growgent/internal/geometry"
	"growgent/internal/types"
)

var testCenter = types.Position{-121.4944, 38.5816}

type mockPublisher struct {
	mu     sync.Mutex
	events []types.ZoneEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, ev types.ZoneEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *mockPublisher, *fakeClock, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	pub := &mockPublisher{}
	clock := &fakeClock{t: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(NewMemoryRepository(), pub, testCenter, slog.New(slog.NewJSONHandler(&logs, nil)))
	svc.now = clock.now
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("zone-%d", n)
	}
	return svc, pub, clock, &logs
}

func strPtr(s string) *string { return &s }

func drawnPolygon(t *testing.T) *types.Feature {
	t.Helper()
	f, err := geometry.PolygonFromPoints([]types.Position{{-121.5, 38.5}, {-121.4, 38.5}, {-121.4, 38.6}})
	require.NoError(t, err)
	return &f
}

func TestCreate_DefaultsAndPlaceholderGeometry(t *testing.T) {
	svc, pub, clock, _ := newTestService(t)

	z, err := svc.Create(context.Background(), CreateZoneInput{Name: "High Fire Risk Area A"})

	require.NoError(t, err)
	assert.Equal(t, "zone-1", z.ID)
	assert.Equal(t, types.ZoneFireRisk, z.Type)
	assert.Equal(t, types.LevelModerate, z.Level)
	require.NotNil(t, z.Geometry.Geometry, "placeholder geometry is never nil")
	assert.Equal(t, types.GeometryPolygon, z.Geometry.Geometry.Type)
	assert.NoError(t, types.ValidateZoneGeometry(z.Geometry))
	c, ok := geometry.Centroid(&z.Geometry)
	require.True(t, ok)
	assert.InDelta(t, testCenter.Lng(), c.Lng(), 1e-9)
	assert.InDelta(t, testCenter.Lat(), c.Lat(), 1e-9)
	assert.Equal(t, clock.t, z.CreatedAt)
	assert.Equal(t, clock.t, z.UpdatedAt)

	require.Len(t, pub.events, 1)
	assert.Equal(t, types.ZoneCreated, pub.events[0].Type)
	assert.Equal(t, "zone-1", pub.events[0].ZoneID)
}

func TestCreate_UsesDrawnGeometry(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	drawn := drawnPolygon(t)

	z, err := svc.Create(context.Background(), CreateZoneInput{
		Name:        "Pump house",
		Type:        types.ZoneIrrigation,
		Level:       types.LevelLow,
		Geometry:    drawn,
		Description: strPtr("drip line"),
	})

	require.NoError(t, err)
	assert.Equal(t, types.ZoneIrrigation, z.Type)
	assert.Equal(t, types.LevelLow, z.Level)
	assert.JSONEq(t, string(drawn.Geometry.Coordinates), string(z.Geometry.Geometry.Coordinates))
	assert.Equal(t, "drip line", *z.Description)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateZoneInput
		code types.ErrorCode
	}{
		{"empty name", CreateZoneInput{Name: "   "}, types.ErrCodeValidationMissingField},
		{"bad type", CreateZoneInput{Name: "a", Type: "flood"}, types.ErrCodeValidationZoneType},
		{"bad level", CreateZoneInput{Name: "a", Level: "extreme"}, types.ErrCodeValidationRiskLevel},
		{"point geometry", CreateZoneInput{Name: "a", Geometry: &types.Feature{
			Type: types.GeoJSONFeature, Geometry: types.NewPointGeometry(types.Position{0, 0}),
		}}, types.ErrCodeValidationGeometry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, pub, _, _ := newTestService(t)

			_, err := svc.Create(context.Background(), tt.in)

			require.Error(t, err)
			assert.True(t, types.IsCode(err, tt.code), "got %v", err)
			all, _ := svc.List(context.Background(), types.ZoneFilter{})
			assert.Empty(t, all, "validation failures never mutate the store")
			assert.Empty(t, pub.events)
		})
	}
}

func TestUpdate_PreservesIdentity(t *testing.T) {
	svc, pub, clock, _ := newTestService(t)
	ctx := context.Background()
	orig, err := svc.Create(ctx, CreateZoneInput{Name: "North", Type: types.ZonePSPS, Level: types.LevelHigh, Description: strPtr("ridge")})
	require.NoError(t, err)

	clock.advance(time.Hour)
	level := types.LevelCritical
	updated, found, err := svc.Update(ctx, orig.ID, types.ZonePatch{Level: &level})

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, orig.ID, updated.ID)
	assert.Equal(t, orig.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(orig.UpdatedAt))
	assert.Equal(t, types.LevelCritical, updated.Level)
	assert.Equal(t, "North", updated.Name)
	assert.Equal(t, types.ZonePSPS, updated.Type)
	assert.Equal(t, "ridge", *updated.Description)
	assert.Equal(t, orig.Geometry, updated.Geometry)

	stored, err := svc.Get(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LevelCritical, stored.Level)

	require.Len(t, pub.events, 2)
	assert.Equal(t, types.ZoneUpdated, pub.events[1].Type)
}

func TestUpdate_UnknownIDIsSilentNoop(t *testing.T) {
	svc, pub, _, _ := newTestService(t)
	name := "ghost"

	z, found, err := svc.Update(context.Background(), "missing", types.ZonePatch{Name: &name})

	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, z)
	assert.Empty(t, pub.events)
}

func TestUpdate_ConcurrentPatchesKeepEveryField(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	level := types.LevelCritical

	for round := range 20 {
		z, err := svc.Create(ctx, CreateZoneInput{Name: "A", Type: types.ZonePSPS, Level: types.LevelLow})
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = svc.Update(ctx, z.ID, types.ZonePatch{Name: strPtr("Renamed")})
		}()
		go func() {
			defer wg.Done()
			_, _, _ = svc.Update(ctx, z.ID, types.ZonePatch{Level: &level})
		}()
		wg.Wait()

		got, err := svc.Get(ctx, z.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name, "round %d", round)
		assert.Equal(t, types.LevelCritical, got.Level, "round %d", round)
	}
}

func TestUpdate_RejectsInvalidPatch(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	z, err := svc.Create(ctx, CreateZoneInput{Name: "North"})
	require.NoError(t, err)

	empty := " "
	_, _, err = svc.Update(ctx, z.ID, types.ZonePatch{Name: &empty})
	assert.True(t, types.IsCode(err, types.ErrCodeValidationMissingField))

	bad := types.ZoneType("flood")
	_, _, err = svc.Update(ctx, z.ID, types.ZonePatch{Type: &bad})
	assert.True(t, types.IsCode(err, types.ErrCodeValidationZoneType))

	stored, err := svc.Get(ctx, z.ID)
	require.NoError(t, err)
	assert.Equal(t, "North", stored.Name)
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	svc, pub, _, _ := newTestService(t)
	ctx := context.Background()
	z, err := svc.Create(ctx, CreateZoneInput{Name: "North"})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, z.ID, false)
	assert.True(t, types.IsCode(err, types.ErrCodeValidationConfirmation))
	_, err = svc.Get(ctx, z.ID)
	require.NoError(t, err, "unconfirmed delete keeps the zone")

	found, err := svc.Delete(ctx, z.ID, true)
	require.NoError(t, err)
	assert.True(t, found)
	_, err = svc.Get(ctx, z.ID)
	assert.True(t, types.IsCode(err, types.ErrCodeNotFoundZone))

	found, err = svc.Delete(ctx, z.ID, true)
	require.NoError(t, err)
	assert.False(t, found)

	require.Len(t, pub.events, 2)
	assert.Equal(t, types.ZoneDeleted, pub.events[1].Type)
	assert.Nil(t, pub.events[1].Zone)
}

func TestPublishFailureIsLoggedNotReturned(t *testing.T) {
	svc, pub, _, logs := newTestService(t)
	pub.err = errors.New("queue unavailable")

	_, err := svc.Create(context.Background(), CreateZoneInput{Name: "North"})

	require.NoError(t, err)
	assert.Contains(t, logs.String(), "failed to publish zone event")
}

func TestEventCarriesRequestID(t *testing.T) {
	svc, pub, _, _ := newTestService(t)
	ctx := types.WithRequestID(context.Background(), "req-42")

	_, err := svc.Create(ctx, CreateZoneInput{Name: "North"})

	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "req-42", pub.events[0].RequestID)
	assert.NotEmpty(t, pub.events[0].EventID)
}

func TestList_AppliesFilter(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	for _, in := range []CreateZoneInput{
		{Name: "a", Type: types.ZonePSPS, Level: types.LevelCritical},
		{Name: "b", Type: types.ZoneFireRisk, Level: types.LevelCritical},
		{Name: "c", Type: types.ZonePSPS, Level: types.LevelLow},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	got, err := svc.List(ctx, types.ZoneFilter{Types: []types.ZoneType{types.ZonePSPS}})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "c", got[1].Name)
}
