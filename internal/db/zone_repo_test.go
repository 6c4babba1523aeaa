package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"growgent/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Tx ---

type mockTx struct {
	*mockDBTX
	committed  bool
	rolledBack bool
}

func newMockTx() *mockTx { return &mockTx{mockDBTX: new(mockDBTX)} }

func (t *mockTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }

func (t *mockTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *mockTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *mockTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *mockTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *mockTx) LargeObjects() pgx.LargeObjects                        { return pgx.LargeObjects{} }
func (t *mockTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *mockTx) Conn() *pgx.Conn { return nil }

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- Mock Rows ---

type mockRows struct {
	scanFns []func(dest ...any) error
	idx     int
	closed  bool
	errVal  error
}

func newMockRows(scanFns ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFns: scanFns, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.scanFns)
}

func (r *mockRows) Scan(dest ...any) error { return r.scanFns[r.idx](dest...) }

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

// zoneScanFn fills the zoneColumns destinations for a zone row.
func zoneScanFn(id string, meta []byte) func(dest ...any) error {
	ts := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return func(dest ...any) error {
		*dest[0].(*string) = id
		*dest[1].(*string) = "Ridge " + id
		*dest[2].(*types.ZoneType) = types.ZonePSPS
		*dest[3].(*types.RiskLevel) = types.LevelCritical
		if err := dest[4].(*types.Geometry).Scan(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`); err != nil {
			return err
		}
		farm := "farm-1"
		*dest[7].(**string) = &farm
		*dest[8].(*[]byte) = meta
		*dest[9].(*time.Time) = ts
		*dest[10].(*time.Time) = ts
		return nil
	}
}

func testZone() *types.RiskZone {
	ts := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return &types.RiskZone{
		ID:        "z1",
		Name:      "Ridge",
		Type:      types.ZoneFireRisk,
		Level:     types.LevelHigh,
		Geometry:  types.Feature{Type: types.GeoJSONFeature, Geometry: types.NewPolygonGeometry([]types.Position{{0, 0}, {1, 0}, {1, 1}, {0, 0}})},
		Metadata:  json.RawMessage(`{"source":"drawn"}`),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// --- ZoneRepository Tests ---

func TestZoneRepository_List(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db)

	rows := newMockRows(zoneScanFn("z1", []byte(`{"a":1}`)), zoneScanFn("z2", nil))
	db.On("Query", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return assert.Contains(t, sql, "ST_AsGeoJSON(geometry)")
	}), mock.Anything).Return(rows, nil)

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "z1", got[0].ID)
	assert.Equal(t, types.ZonePSPS, got[0].Type)
	assert.Equal(t, types.GeoJSONFeature, got[0].Geometry.Type)
	assert.Equal(t, types.GeometryPolygon, got[0].Geometry.Geometry.Type)
	assert.JSONEq(t, `{"a":1}`, string(got[0].Metadata))
	assert.Nil(t, got[1].Metadata)
	assert.Equal(t, "farm-1", *got[1].FarmID)
	assert.True(t, rows.closed)
	db.AssertExpectations(t)
}

func TestZoneRepository_List_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db)
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(newMockRows(), nil)

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestZoneRepository_List_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db)
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.List(context.Background())
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
}

func TestZoneRepository_Get(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"z1"}).
		Return(&mockRow{scanFn: zoneScanFn("z1", nil)})

	z, err := repo.Get(context.Background(), "z1")
	require.NoError(t, err)
	assert.Equal(t, "Ridge z1", z.Name)
	assert.NotNil(t, z.Geometry.Properties)
}

func TestZoneRepository_Get_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.Get(context.Background(), "missing")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundZone, appErr.Code)
}

func TestZoneRepository_Create(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db)
	z := testZone()

	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return assert.Contains(t, sql, "ST_GeomFromGeoJSON($5)")
	}), mock.MatchedBy(func(args []any) bool {
		return len(args) == 11 && args[0] == "z1" && string(args[8].([]byte)) == `{"source":"drawn"}`
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Create(context.Background(), z))
	db.AssertExpectations(t)
}

func TestZoneRepository_Create_Duplicate(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), testZone())
	assert.True(t, types.IsCode(err, types.ErrCodeConflictDuplicateID))
}

func TestZoneRepository_Create_MissingGeometry(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db)
	z := testZone()
	z.Geometry.Geometry = nil

	err := repo.Create(context.Background(), z)
	assert.True(t, types.IsCode(err, types.ErrCodeValidationGeometry))
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestZoneRepository_Update(t *testing.T) {
	tx := newMockTx()
	repo := NewZoneRepository(tx)

	tx.On("QueryRow", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.HasSuffix(sql, "FOR UPDATE")
	}), []any{"z1"}).Return(&mockRow{scanFn: zoneScanFn("z1", nil)})
	tx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return args[0] == "Renamed" && args[2] == types.LevelCritical && args[7] == nil && args[9] == "z1"
	})).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	updated, found, err := repo.Update(context.Background(), "z1", func(z *types.RiskZone) { z.Name = "Renamed" })
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, types.LevelCritical, updated.Level)
	assert.True(t, tx.committed)
	tx.AssertExpectations(t)
}

func TestZoneRepository_Update_NotFound(t *testing.T) {
	tx := newMockTx()
	repo := NewZoneRepository(tx)
	tx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"nope"}).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	called := false
	updated, found, err := repo.Update(context.Background(), "nope", func(*types.RiskZone) { called = true })
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, updated)
	assert.False(t, called)
	tx.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestZoneRepository_Update_WriteErrorRollsBack(t *testing.T) {
	tx := newMockTx()
	repo := NewZoneRepository(tx)
	tx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"z1"}).
		Return(&mockRow{scanFn: zoneScanFn("z1", nil)})
	tx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("deadlock detected"))

	_, found, err := repo.Update(context.Background(), "z1", func(*types.RiskZone) {})
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
	assert.False(t, found)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestZoneRepository_Update_WithoutTransactionSupport(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"z1"}).
		Return(&mockRow{scanFn: zoneScanFn("z1", nil)})
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	_, found, err := repo.Update(context.Background(), "z1", func(z *types.RiskZone) { z.Level = types.LevelLow })
	require.NoError(t, err)
	assert.True(t, found)
	db.AssertExpectations(t)
}

func TestZoneRepository_Delete(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"z1"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"nope"}).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"boom"}).
		Return(pgconn.CommandTag{}, errors.New("timeout"))

	found, err := repo.Delete(context.Background(), "z1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Delete(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = repo.Delete(context.Background(), "boom")
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
}
