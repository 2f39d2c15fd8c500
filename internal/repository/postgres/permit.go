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

type permitRow struct {
	ID                         string                  `db:"id"`
	CustomerID                 string                  `db:"customer_id"`
	Vehicle                    jsonb[vehicle.Vehicle]  `db:"vehicle"`
	ZoneID                     string                  `db:"zone_id"`
	AddressID                  string                  `db:"address_id"`
	ContractType               string                  `db:"contract_type"`
	Status                     string                  `db:"status"`
	StartTime                  time.Time               `db:"start_time"`
	EndTime                    *time.Time              `db:"end_time"`
	MonthCount                 int                     `db:"month_count"`
	PrimaryVehicle             bool                    `db:"primary_vehicle"`
	ConsentLowEmissionAccepted bool                    `db:"consent_low_emission_accepted"`
	EndType                    string                  `db:"end_type"`
	StatusChangedAt            time.Time               `db:"status_changed_at"`
	NextVehicle                jsonb[*vehicle.Vehicle] `db:"next_vehicle"`
	NextZoneID                 string                  `db:"next_zone_id"`
	NextAddressID              string                  `db:"next_address_id"`
	NextConsentLowEmission     *bool                   `db:"next_consent_low_emission_accepted"`
	types.BaseModel
}

func permitToRow(p *permit.Permit) *permitRow {
	return &permitRow{
		ID:                         p.ID,
		CustomerID:                 p.CustomerID,
		Vehicle:                    jsonb[vehicle.Vehicle]{V: p.Vehicle},
		ZoneID:                     p.ZoneID,
		AddressID:                  p.AddressID,
		ContractType:               string(p.ContractType),
		Status:                     string(p.Status),
		StartTime:                  p.StartTime,
		EndTime:                    p.EndTime,
		MonthCount:                 p.MonthCount,
		PrimaryVehicle:             p.PrimaryVehicle,
		ConsentLowEmissionAccepted: p.ConsentLowEmissionAccepted,
		EndType:                    string(p.EndType),
		StatusChangedAt:            p.StatusChangedAt,
		NextVehicle:                jsonb[*vehicle.Vehicle]{V: p.NextVehicle},
		NextZoneID:                 p.NextZoneID,
		NextAddressID:              p.NextAddressID,
		NextConsentLowEmission:     p.NextConsentLowEmissionAccepted,
		BaseModel:                  p.BaseModel,
	}
}

func (r *permitRow) toDomain() *permit.Permit {
	return &permit.Permit{
		ID:                             r.ID,
		CustomerID:                     r.CustomerID,
		Vehicle:                        r.Vehicle.V,
		ZoneID:                         r.ZoneID,
		AddressID:                      r.AddressID,
		ContractType:                   types.ContractType(r.ContractType),
		Status:                         types.PermitStatus(r.Status),
		StartTime:                      r.StartTime,
		EndTime:                        r.EndTime,
		MonthCount:                     r.MonthCount,
		PrimaryVehicle:                 r.PrimaryVehicle,
		ConsentLowEmissionAccepted:     r.ConsentLowEmissionAccepted,
		EndType:                        types.EndType(r.EndType),
		StatusChangedAt:                r.StatusChangedAt,
		NextVehicle:                    r.NextVehicle.V,
		NextZoneID:                     r.NextZoneID,
		NextAddressID:                  r.NextAddressID,
		NextConsentLowEmissionAccepted: r.NextConsentLowEmission,
		BaseModel:                      r.BaseModel,
	}
}

type permitRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPermitRepository(db *postgres.DB, logger *logger.Logger) permit.Repository {
	return &permitRepository{db: db, logger: logger}
}

func (r *permitRepository) Create(ctx context.Context, p *permit.Permit) error {
	query := `
		INSERT INTO permits (
			id, customer_id, vehicle, zone_id, address_id, contract_type, status,
			start_time, end_time, month_count, primary_vehicle, consent_low_emission_accepted,
			end_type, status_changed_at, next_vehicle, next_zone_id, next_address_id,
			next_consent_low_emission_accepted,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :customer_id, :vehicle, :zone_id, :address_id, :contract_type, :status,
			:start_time, :end_time, :month_count, :primary_vehicle, :consent_low_emission_accepted,
			:end_type, :status_changed_at, :next_vehicle, :next_zone_id, :next_address_id,
			:next_consent_low_emission_accepted,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating permit",
		"permit_id", p.ID,
		"customer_id", p.CustomerID,
		"status", p.Status,
	)

	if _, err := r.db.NamedExecContext(ctx, query, permitToRow(p)); err != nil {
		return dbError(err, "failed to create permit")
	}
	return nil
}

func (r *permitRepository) Get(ctx context.Context, id string) (*permit.Permit, error) {
	return r.get(ctx, "SELECT * FROM permits WHERE id = :id", id)
}

// GetForUpdate locks the permit row until the transaction in ctx ends.
// Outside a transaction the lock is released immediately, so callers run it inside WithTx.
func (r *permitRepository) GetForUpdate(ctx context.Context, id string) (*permit.Permit, error) {
	r.logger.Debugw("locking permit", "permit_id", id)
	return r.get(ctx, "SELECT * FROM permits WHERE id = :id FOR UPDATE", id)
}

func (r *permitRepository) get(ctx context.Context, query, id string) (*permit.Permit, error) {
	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return nil, dbError(err, "failed to get permit")
	}

	var row permitRow
	if err := scanOne(rows, &row, "permit", id); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *permitRepository) List(ctx context.Context, filter *types.PermitFilter) ([]*permit.Permit, error) {
	where := newWhere()
	if len(filter.PermitIDs) > 0 {
		where.add("id = ANY(:ids)", "ids", stringArray(filter.PermitIDs))
	}
	if filter.CustomerID != "" {
		where.add("customer_id = :customer_id", "customer_id", filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		where.add("status = ANY(:statuses)", "statuses", stringArray(filter.Statuses))
	}
	if filter.ContractType != "" {
		where.add("contract_type = :contract_type", "contract_type", string(filter.ContractType))
	}
	if filter.StatusChangedBefore != nil {
		where.add("status_changed_at < :status_changed_before", "status_changed_before", *filter.StatusChangedBefore)
	}
	if filter.EndTimeBefore != nil {
		where.add("end_time < :end_time_before", "end_time_before", *filter.EndTimeBefore)
	}

	query := "SELECT * FROM permits" + where.String() + " ORDER BY start_time, id"
	if filter.Limit > 0 {
		query += " LIMIT :limit"
		where.params["limit"] = filter.Limit
	}

	rows, err := r.db.NamedQueryContext(ctx, query, where.params)
	if err != nil {
		return nil, dbError(err, "failed to list permits")
	}

	permitRows, err := scanAll[permitRow](rows, "permit")
	if err != nil {
		return nil, err
	}
	out := make([]*permit.Permit, 0, len(permitRows))
	for _, row := range permitRows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *permitRepository) Update(ctx context.Context, p *permit.Permit) error {
	query := `
		UPDATE permits SET
			vehicle = :vehicle,
			zone_id = :zone_id,
			address_id = :address_id,
			status = :status,
			start_time = :start_time,
			end_time = :end_time,
			month_count = :month_count,
			primary_vehicle = :primary_vehicle,
			consent_low_emission_accepted = :consent_low_emission_accepted,
			end_type = :end_type,
			status_changed_at = :status_changed_at,
			next_vehicle = :next_vehicle,
			next_zone_id = :next_zone_id,
			next_address_id = :next_address_id,
			next_consent_low_emission_accepted = :next_consent_low_emission_accepted,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	r.logger.Debugw("updating permit", "permit_id", p.ID, "status", p.Status)

	res, err := r.db.NamedExecContext(ctx, query, permitToRow(p))
	if err != nil {
		return dbError(err, "failed to update permit")
	}
	return checkAffected(res, "permit", p.ID)
}

func (r *permitRepository) Delete(ctx context.Context, id string) error {
	r.logger.Debugw("deleting permit", "permit_id", id)

	res, err := r.db.NamedExecContext(ctx, "DELETE FROM permits WHERE id = :id", map[string]interface{}{"id": id})
	if err != nil {
		return dbError(err, "failed to delete permit")
	}
	return checkAffected(res, "permit", id)
}
