package postgres

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/domain/refund"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/postgres"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type refundRow struct {
	ID              string                     `db:"id"`
	ReferenceNumber string                     `db:"reference_number"`
	CustomerID      string                     `db:"customer_id"`
	Name            string                     `db:"name"`
	IBAN            string                     `db:"iban"`
	Amount          decimal.Decimal            `db:"amount"`
	VATAmount       decimal.Decimal            `db:"vat_amount"`
	VATPercentage   decimal.Decimal            `db:"vat_percentage"`
	Status          string                     `db:"status"`
	Description     string                     `db:"description"`
	OrderIDs        pq.StringArray             `db:"order_ids"`
	PermitIDs       pq.StringArray             `db:"permit_ids"`
	Items           jsonb[[]refund.Allocation] `db:"items"`
	types.BaseModel
}

func refundToRow(rf *refund.Refund) *refundRow {
	return &refundRow{
		ID:              rf.ID,
		ReferenceNumber: rf.ReferenceNumber,
		CustomerID:      rf.CustomerID,
		Name:            rf.Name,
		IBAN:            rf.IBAN,
		Amount:          rf.Amount,
		VATAmount:       rf.VATAmount,
		VATPercentage:   rf.VATPercentage,
		Status:          string(rf.Status),
		Description:     rf.Description,
		OrderIDs:        rf.OrderIDs,
		PermitIDs:       rf.PermitIDs,
		Items:           jsonb[[]refund.Allocation]{V: rf.Items},
		BaseModel:       rf.BaseModel,
	}
}

func (r *refundRow) toDomain() *refund.Refund {
	return &refund.Refund{
		ID:              r.ID,
		ReferenceNumber: r.ReferenceNumber,
		CustomerID:      r.CustomerID,
		Name:            r.Name,
		IBAN:            r.IBAN,
		Amount:          r.Amount,
		VATAmount:       r.VATAmount,
		VATPercentage:   r.VATPercentage,
		Status:          types.RefundStatus(r.Status),
		Description:     r.Description,
		OrderIDs:        r.OrderIDs,
		PermitIDs:       r.PermitIDs,
		Items:           r.Items.V,
		BaseModel:       r.BaseModel,
	}
}

type refundRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewRefundRepository(db *postgres.DB, logger *logger.Logger) refund.Repository {
	return &refundRepository{db: db, logger: logger}
}

func (r *refundRepository) Create(ctx context.Context, rf *refund.Refund) error {
	query := `
		INSERT INTO refunds (
			id, reference_number, customer_id, name, iban, amount, vat_amount, vat_percentage,
			status, description, order_ids, permit_ids, items,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :reference_number, :customer_id, :name, :iban, :amount, :vat_amount, :vat_percentage,
			:status, :description, :order_ids, :permit_ids, :items,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating refund",
		"refund_id", rf.ID,
		"amount", rf.Amount,
		"vat_percentage", rf.VATPercentage,
	)

	if _, err := r.db.NamedExecContext(ctx, query, refundToRow(rf)); err != nil {
		return dbError(err, "failed to create refund")
	}
	return nil
}

func (r *refundRepository) Get(ctx context.Context, id string) (*refund.Refund, error) {
	rows, err := r.db.NamedQueryContext(ctx, "SELECT * FROM refunds WHERE id = :id", map[string]interface{}{"id": id})
	if err != nil {
		return nil, dbError(err, "failed to get refund")
	}

	var row refundRow
	if err := scanOne(rows, &row, "refund", id); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *refundRepository) List(ctx context.Context, filter *types.RefundFilter) ([]*refund.Refund, error) {
	where := newWhere()
	if filter.PermitID != "" {
		where.add(":permit_id = ANY(permit_ids)", "permit_id", filter.PermitID)
	}
	if len(filter.Statuses) > 0 {
		where.add("status = ANY(:statuses)", "statuses", stringArray(filter.Statuses))
	}

	rows, err := r.db.NamedQueryContext(ctx, "SELECT * FROM refunds"+where.String()+" ORDER BY created_at", where.params)
	if err != nil {
		return nil, dbError(err, "failed to list refunds")
	}
	refundRows, err := scanAll[refundRow](rows, "refund")
	if err != nil {
		return nil, err
	}
	out := make([]*refund.Refund, 0, len(refundRows))
	for _, row := range refundRows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *refundRepository) Update(ctx context.Context, rf *refund.Refund) error {
	query := `
		UPDATE refunds SET
			name = :name,
			iban = :iban,
			status = :status,
			description = :description,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	r.logger.Debugw("updating refund", "refund_id", rf.ID, "status", rf.Status)

	res, err := r.db.NamedExecContext(ctx, query, refundToRow(rf))
	if err != nil {
		return dbError(err, "failed to update refund")
	}
	return checkAffected(res, "refund", rf.ID)
}
