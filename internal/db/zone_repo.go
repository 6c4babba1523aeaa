package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"growgent/internal/types"
	"growgent/internal/zones"
)

// ZoneRepository stores risk zones in the risk_zones table. Geometry lives in a
// PostGIS geometry(Geometry, 4326) column and is exchanged as GeoJSON text;
// feature properties are not persisted.
//
//	CREATE TABLE risk_zones (
//	    id             TEXT PRIMARY KEY,
//	    name           TEXT NOT NULL,
//	    zone_type      TEXT NOT NULL,
//	    risk_level     TEXT NOT NULL,
//	    geometry       geometry(Geometry, 4326) NOT NULL,
//	    description    TEXT,
//	    field_id       TEXT,
//	    farm_id        TEXT,
//	    extra_metadata JSONB,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL
//	);
type ZoneRepository struct {
	db DBTX
}

var _ zones.ZoneRepository = (*ZoneRepository)(nil)

// NewZoneRepository creates a ZoneRepository backed by the given connection.
func NewZoneRepository(db DBTX) *ZoneRepository {
	return &ZoneRepository{db: db}
}

// zoneColumns must match the scan order in scanZone.
const zoneColumns = `id, name, zone_type, risk_level, ST_AsGeoJSON(geometry),
	description, field_id, farm_id, extra_metadata, created_at, updated_at`

func scanZone(row pgx.Row) (*types.RiskZone, error) {
	var (
		z    types.RiskZone
		geom types.Geometry
		meta []byte
	)
	err := row.Scan(
		&z.ID,
		&z.Name,
		&z.Type,
		&z.Level,
		&geom,
		&z.Description,
		&z.FieldID,
		&z.FarmID,
		&meta,
		&z.CreatedAt,
		&z.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	z.Geometry = types.Feature{
		Type:       types.GeoJSONFeature,
		Geometry:   &geom,
		Properties: map[string]any{},
	}
	if len(meta) > 0 {
		z.Metadata = meta
	}
	return &z, nil
}

// List returns every zone, oldest first.
func (r *ZoneRepository) List(ctx context.Context) ([]types.RiskZone, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+zoneColumns+` FROM risk_zones ORDER BY created_at, id`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list zones", err)
	}
	defer rows.Close()

	out := []types.RiskZone{}
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan zone row", err)
		}
		out = append(out, *z)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating zone rows", err)
	}
	return out, nil
}

func (r *ZoneRepository) Get(ctx context.Context, id string) (*types.RiskZone, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+zoneColumns+` FROM risk_zones WHERE id = $1`, id)
	z, err := scanZone(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundZone, fmt.Sprintf("zone %q not found", id), nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve zone", err)
	}
	return z, nil
}

func (r *ZoneRepository) Create(ctx context.Context, z *types.RiskZone) error {
	if z.Geometry.Geometry == nil {
		return types.NewAppError(types.ErrCodeValidationGeometry, "zone geometry is required", nil)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO risk_zones (
			id, name, zone_type, risk_level, geometry,
			description, field_id, farm_id, extra_metadata,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, ST_SetSRID(ST_GeomFromGeoJSON($5), 4326),
			$6, $7, $8, $9,
			$10, $11
		)`,
		z.ID,
		z.Name,
		z.Type,
		z.Level,
		*z.Geometry.Geometry,
		z.Description,
		z.FieldID,
		z.FarmID,
		metadataArg(z),
		z.CreatedAt,
		z.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictDuplicateID, fmt.Sprintf("zone %q already exists", z.ID), err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create zone", err)
	}
	return nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies the change and
// writes every mutable column back in one transaction. id and created_at are
// never changed.
func (r *ZoneRepository) Update(ctx context.Context, id string, apply func(*types.RiskZone)) (*types.RiskZone, bool, error) {
	var updated *types.RiskZone
	err := withTx(ctx, r.db, func(q DBTX) error {
		z, err := scanZone(q.QueryRow(ctx,
			`SELECT `+zoneColumns+` FROM risk_zones WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to lock zone", err)
		}

		apply(z)
		if z.Geometry.Geometry == nil {
			return types.NewAppError(types.ErrCodeValidationGeometry, "zone geometry is required", nil)
		}
		_, err = q.Exec(ctx,
			`UPDATE risk_zones SET
				name = $1,
				zone_type = $2,
				risk_level = $3,
				geometry = ST_SetSRID(ST_GeomFromGeoJSON($4), 4326),
				description = $5,
				field_id = $6,
				farm_id = $7,
				extra_metadata = $8,
				updated_at = $9
			 WHERE id = $10`,
			z.Name,
			z.Type,
			z.Level,
			*z.Geometry.Geometry,
			z.Description,
			z.FieldID,
			z.FarmID,
			metadataArg(z),
			z.UpdatedAt,
			id,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to update zone", err)
		}
		z.ID = id
		updated = z
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return updated, updated != nil, nil
}

func (r *ZoneRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM risk_zones WHERE id = $1`, id)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to delete zone", err)
	}
	return tag.RowsAffected() > 0, nil
}

// metadataArg binds empty metadata as NULL.
func metadataArg(z *types.RiskZone) any {
	if len(z.Metadata) == 0 {
		return nil
	}
	return []byte(z.Metadata)
}
