package postgres

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/domain/extension"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/postgres"
	"github.com/flexprice/parkingpermits/internal/types"
)

type extensionRequestRow struct {
	ID              string     `db:"id"`
	PermitID        string     `db:"permit_id"`
	MonthCount      int        `db:"month_count"`
	Status          string     `db:"status"`
	OrderID         string     `db:"order_id"`
	PreviousEndTime *time.Time `db:"previous_end_time"`
	types.BaseModel
}

func (r *extensionRequestRow) toDomain() *extension.Request {
	return &extension.Request{
		ID:              r.ID,
		PermitID:        r.PermitID,
		MonthCount:      r.MonthCount,
		Status:          types.ExtensionRequestStatus(r.Status),
		OrderID:         r.OrderID,
		PreviousEndTime: r.PreviousEndTime,
		BaseModel:       r.BaseModel,
	}
}

func extensionRequestToRow(req *extension.Request) *extensionRequestRow {
	return &extensionRequestRow{
		ID:              req.ID,
		PermitID:        req.PermitID,
		MonthCount:      req.MonthCount,
		Status:          string(req.Status),
		OrderID:         req.OrderID,
		PreviousEndTime: req.PreviousEndTime,
		BaseModel:       req.BaseModel,
	}
}

type extensionRequestRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewExtensionRequestRepository(db *postgres.DB, logger *logger.Logger) extension.Repository {
	return &extensionRequestRepository{db: db, logger: logger}
}

func (r *extensionRequestRepository) Create(ctx context.Context, req *extension.Request) error {
	query := `
		INSERT INTO extension_requests (
			id, permit_id, month_count, status, order_id, previous_end_time,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :permit_id, :month_count, :status, :order_id, :previous_end_time,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating extension request", "extension_request_id", req.ID, "permit_id", req.PermitID)

	if _, err := r.db.NamedExecContext(ctx, query, extensionRequestToRow(req)); err != nil {
		return dbError(err, "failed to create extension request")
	}
	return nil
}

func (r *extensionRequestRepository) Get(ctx context.Context, id string) (*extension.Request, error) {
	rows, err := r.db.NamedQueryContext(ctx, "SELECT * FROM extension_requests WHERE id = :id", map[string]interface{}{"id": id})
	if err != nil {
		return nil, dbError(err, "failed to get extension request")
	}

	var row extensionRequestRow
	if err := scanOne(rows, &row, "extension request", id); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *extensionRequestRepository) List(ctx context.Context, filter *types.ExtensionRequestFilter) ([]*extension.Request, error) {
	where := newWhere()
	if filter.PermitID != "" {
		where.add("permit_id = :permit_id", "permit_id", filter.PermitID)
	}
	if len(filter.Statuses) > 0 {
		where.add("status = ANY(:statuses)", "statuses", stringArray(filter.Statuses))
	}

	rows, err := r.db.NamedQueryContext(ctx, "SELECT * FROM extension_requests"+where.String()+" ORDER BY created_at", where.params)
	if err != nil {
		return nil, dbError(err, "failed to list extension requests")
	}

	reqRows, err := scanAll[extensionRequestRow](rows, "extension request")
	if err != nil {
		return nil, err
	}
	out := make([]*extension.Request, 0, len(reqRows))
	for _, row := range reqRows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *extensionRequestRepository) Update(ctx context.Context, req *extension.Request) error {
	query := `
		UPDATE extension_requests SET
			month_count = :month_count,
			status = :status,
			order_id = :order_id,
			previous_end_time = :previous_end_time,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	r.logger.Debugw("updating extension request", "extension_request_id", req.ID, "status", req.Status)

	res, err := r.db.NamedExecContext(ctx, query, extensionRequestToRow(req))
	if err != nil {
		return dbError(err, "failed to update extension request")
	}
	return checkAffected(res, "extension request", req.ID)
}
