package postgres

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/postgres"
	"github.com/flexprice/parkingpermits/internal/types"
)

type temporaryVehicleRow struct {
	ID        string                 `db:"id"`
	PermitID  string                 `db:"permit_id"`
	Vehicle   jsonb[vehicle.Vehicle] `db:"vehicle"`
	StartTime time.Time              `db:"start_time"`
	EndTime   time.Time              `db:"end_time"`
	IsActive  bool                   `db:"is_active"`
	types.BaseModel
}

func (r *temporaryVehicleRow) toDomain() *permit.TemporaryVehicle {
	return &permit.TemporaryVehicle{
		ID:        r.ID,
		PermitID:  r.PermitID,
		Vehicle:   r.Vehicle.V,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		IsActive:  r.IsActive,
		BaseModel: r.BaseModel,
	}
}

func temporaryVehicleToRow(tv *permit.TemporaryVehicle) *temporaryVehicleRow {
	return &temporaryVehicleRow{
		ID:        tv.ID,
		PermitID:  tv.PermitID,
		Vehicle:   jsonb[vehicle.Vehicle]{V: tv.Vehicle},
		StartTime: tv.StartTime,
		EndTime:   tv.EndTime,
		IsActive:  tv.IsActive,
		BaseModel: tv.BaseModel,
	}
}

type temporaryVehicleRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewTemporaryVehicleRepository(db *postgres.DB, logger *logger.Logger) permit.TemporaryVehicleRepository {
	return &temporaryVehicleRepository{db: db, logger: logger}
}

func (r *temporaryVehicleRepository) Create(ctx context.Context, tv *permit.TemporaryVehicle) error {
	query := `
		INSERT INTO temporary_vehicles (
			id, permit_id, vehicle, start_time, end_time, is_active,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :permit_id, :vehicle, :start_time, :end_time, :is_active,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating temporary vehicle", "temporary_vehicle_id", tv.ID, "permit_id", tv.PermitID)

	if _, err := r.db.NamedExecContext(ctx, query, temporaryVehicleToRow(tv)); err != nil {
		return dbError(err, "failed to create temporary vehicle")
	}
	return nil
}

func (r *temporaryVehicleRepository) List(ctx context.Context, filter *types.TemporaryVehicleFilter) ([]*permit.TemporaryVehicle, error) {
	where := newWhere()
	if filter.PermitID != "" {
		where.add("permit_id = :permit_id", "permit_id", filter.PermitID)
	}
	if filter.ActiveOnly {
		where.add("is_active = :is_active", "is_active", true)
	}
	if filter.CreatedAfter != nil {
		where.add("created_at > :created_after", "created_after", *filter.CreatedAfter)
	}

	rows, err := r.db.NamedQueryContext(ctx, "SELECT * FROM temporary_vehicles"+where.String()+" ORDER BY start_time", where.params)
	if err != nil {
		return nil, dbError(err, "failed to list temporary vehicles")
	}

	tvRows, err := scanAll[temporaryVehicleRow](rows, "temporary vehicle")
	if err != nil {
		return nil, err
	}
	out := make([]*permit.TemporaryVehicle, 0, len(tvRows))
	for _, row := range tvRows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *temporaryVehicleRepository) Update(ctx context.Context, tv *permit.TemporaryVehicle) error {
	query := `
		UPDATE temporary_vehicles SET
			end_time = :end_time,
			is_active = :is_active,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, temporaryVehicleToRow(tv))
	if err != nil {
		return dbError(err, "failed to update temporary vehicle")
	}
	return checkAffected(res, "temporary vehicle", tv.ID)
}
