package postgres

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/postgres"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type orderRow struct {
	ID                     string          `db:"id"`
	ReferenceNumber        string          `db:"reference_number"`
	CustomerID             string          `db:"customer_id"`
	PermitID               string          `db:"permit_id"`
	Type                   string          `db:"type"`
	Status                 string          `db:"status"`
	ExternalOrderID        string          `db:"external_order_id"`
	ExternalSubscriptionID string          `db:"external_subscription_id"`
	SubscriptionStatus     string          `db:"subscription_status"`
	CheckoutURL            string          `db:"checkout_url"`
	IdempotencyKey         string          `db:"idempotency_key"`
	TotalPrice             decimal.Decimal `db:"total_price"`
	PaidTime               *time.Time      `db:"paid_time"`
	CancelledTime          *time.Time      `db:"cancelled_time"`
	ExtensionRequestID     string          `db:"extension_request_id"`
	types.BaseModel
}

type orderItemRow struct {
	ID             string          `db:"id"`
	OrderID        string          `db:"order_id"`
	PermitID       string          `db:"permit_id"`
	ProductID      string          `db:"product_id"`
	StartDate      time.Time       `db:"start_date"`
	EndDate        time.Time       `db:"end_date"`
	Quantity       int             `db:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price"`
	TotalPrice     decimal.Decimal `db:"total_price"`
	VATPercentage  decimal.Decimal `db:"vat_percentage"`
	CreditedItemID string          `db:"credited_item_id"`
	RefundedAmount decimal.Decimal `db:"refunded_amount"`
	RefundedFrom   *time.Time      `db:"refunded_from"`
	types.BaseModel
}

func orderToRow(o *order.Order) *orderRow {
	return &orderRow{
		ID:                     o.ID,
		ReferenceNumber:        o.ReferenceNumber,
		CustomerID:             o.CustomerID,
		PermitID:               o.PermitID,
		Type:                   string(o.Type),
		Status:                 string(o.Status),
		ExternalOrderID:        o.ExternalOrderID,
		ExternalSubscriptionID: o.ExternalSubscriptionID,
		SubscriptionStatus:     string(o.SubscriptionStatus),
		CheckoutURL:            o.CheckoutURL,
		IdempotencyKey:         o.IdempotencyKey,
		TotalPrice:             o.TotalPrice,
		PaidTime:               o.PaidTime,
		CancelledTime:          o.CancelledTime,
		ExtensionRequestID:     o.ExtensionRequestID,
		BaseModel:              o.BaseModel,
	}
}

func (r *orderRow) toDomain(items []*order.OrderItem) *order.Order {
	return &order.Order{
		ID:                     r.ID,
		ReferenceNumber:        r.ReferenceNumber,
		CustomerID:             r.CustomerID,
		PermitID:               r.PermitID,
		Type:                   types.OrderType(r.Type),
		Status:                 types.OrderStatus(r.Status),
		ExternalOrderID:        r.ExternalOrderID,
		ExternalSubscriptionID: r.ExternalSubscriptionID,
		SubscriptionStatus:     types.SubscriptionStatus(r.SubscriptionStatus),
		CheckoutURL:            r.CheckoutURL,
		IdempotencyKey:         r.IdempotencyKey,
		TotalPrice:             r.TotalPrice,
		PaidTime:               r.PaidTime,
		CancelledTime:          r.CancelledTime,
		ExtensionRequestID:     r.ExtensionRequestID,
		Items:                  items,
		BaseModel:              r.BaseModel,
	}
}

func orderItemToRow(i *order.OrderItem) *orderItemRow {
	return &orderItemRow{
		ID:             i.ID,
		OrderID:        i.OrderID,
		PermitID:       i.PermitID,
		ProductID:      i.ProductID,
		StartDate:      toDate(i.StartDate),
		EndDate:        toDate(i.EndDate),
		Quantity:       i.Quantity,
		UnitPrice:      i.UnitPrice,
		TotalPrice:     i.TotalPrice,
		VATPercentage:  i.VATPercentage,
		CreditedItemID: i.CreditedItemID,
		RefundedAmount: i.RefundedAmount,
		RefundedFrom:   toNullableDate(i.RefundedFrom),
		BaseModel:      i.BaseModel,
	}
}

func (r *orderItemRow) toDomain() *order.OrderItem {
	return &order.OrderItem{
		ID:             r.ID,
		OrderID:        r.OrderID,
		PermitID:       r.PermitID,
		ProductID:      r.ProductID,
		StartDate:      fromDate(r.StartDate),
		EndDate:        fromDate(r.EndDate),
		Quantity:       r.Quantity,
		UnitPrice:      r.UnitPrice,
		TotalPrice:     r.TotalPrice,
		VATPercentage:  r.VATPercentage,
		CreditedItemID: r.CreditedItemID,
		RefundedAmount: r.RefundedAmount,
		RefundedFrom:   fromNullableDate(r.RefundedFrom),
		BaseModel:      r.BaseModel,
	}
}

type orderRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewOrderRepository(db *postgres.DB, logger *logger.Logger) order.Repository {
	return &orderRepository{db: db, logger: logger}
}

// Create inserts the order and its items in one transaction
func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	orderQuery := `
		INSERT INTO orders (
			id, reference_number, customer_id, permit_id, type, status,
			external_order_id, external_subscription_id, subscription_status,
			checkout_url, idempotency_key, total_price, paid_time, cancelled_time,
			extension_request_id, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :reference_number, :customer_id, :permit_id, :type, :status,
			:external_order_id, :external_subscription_id, :subscription_status,
			:checkout_url, :idempotency_key, :total_price, :paid_time, :cancelled_time,
			:extension_request_id, :created_at, :updated_at, :created_by, :updated_by
		)`

	itemQuery := `
		INSERT INTO order_items (
			id, order_id, permit_id, product_id, start_date, end_date, quantity,
			unit_price, total_price, vat_percentage, credited_item_id, refunded_amount, refunded_from,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :order_id, :permit_id, :product_id, :start_date, :end_date, :quantity,
			:unit_price, :total_price, :vat_percentage, :credited_item_id, :refunded_amount, :refunded_from,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating order",
		"order_id", o.ID,
		"permit_id", o.PermitID,
		"type", o.Type,
		"items", len(o.Items),
	)

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.NamedExecContext(ctx, orderQuery, orderToRow(o)); err != nil {
			return dbError(err, "failed to create order")
		}
		for _, item := range o.Items {
			if _, err := r.db.NamedExecContext(ctx, itemQuery, orderItemToRow(item)); err != nil {
				return dbError(err, "failed to create order item")
			}
		}
		return nil
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.getBy(ctx, "id", id)
}

func (r *orderRepository) GetByExternalID(ctx context.Context, externalOrderID string) (*order.Order, error) {
	return r.getBy(ctx, "external_order_id", externalOrderID)
}

func (r *orderRepository) GetBySubscriptionID(ctx context.Context, externalSubscriptionID string) (*order.Order, error) {
	return r.getBy(ctx, "external_subscription_id", externalSubscriptionID)
}

func (r *orderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return r.getBy(ctx, "idempotency_key", key)
}

// getBy reads the oldest order matching an identifying column; column is never user input
func (r *orderRepository) getBy(ctx context.Context, column, value string) (*order.Order, error) {
	query := "SELECT * FROM orders WHERE " + column + " = :value ORDER BY created_at LIMIT 1"
	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{"value": value})
	if err != nil {
		return nil, dbError(err, "failed to get order")
	}

	var row orderRow
	if err := scanOne(rows, &row, "order", value); err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, []string{row.ID})
	if err != nil {
		return nil, err
	}
	return row.toDomain(items[row.ID]), nil
}

func (r *orderRepository) List(ctx context.Context, filter *types.OrderFilter) ([]*order.Order, error) {
	where := newWhere()
	if filter.PermitID != "" {
		where.add("permit_id = :permit_id", "permit_id", filter.PermitID)
	}
	if filter.CustomerID != "" {
		where.add("customer_id = :customer_id", "customer_id", filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		where.add("status = ANY(:statuses)", "statuses", stringArray(filter.Statuses))
	}
	if len(filter.Types) > 0 {
		where.add("type = ANY(:types)", "types", stringArray(filter.Types))
	}

	rows, err := r.db.NamedQueryContext(ctx, "SELECT * FROM orders"+where.String()+" ORDER BY created_at, id", where.params)
	if err != nil {
		return nil, dbError(err, "failed to list orders")
	}
	orderRows, err := scanAll[orderRow](rows, "order")
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, lo.Map(orderRows, func(row *orderRow, _ int) string { return row.ID }))
	if err != nil {
		return nil, err
	}

	out := make([]*order.Order, 0, len(orderRows))
	for _, row := range orderRows {
		out = append(out, row.toDomain(items[row.ID]))
	}
	return out, nil
}

func (r *orderRepository) listItems(ctx context.Context, orderIDs []string) (map[string][]*order.OrderItem, error) {
	if len(orderIDs) == 0 {
		return map[string][]*order.OrderItem{}, nil
	}

	rows, err := r.db.NamedQueryContext(ctx,
		"SELECT * FROM order_items WHERE order_id = ANY(:order_ids) ORDER BY start_date, id",
		map[string]interface{}{"order_ids": stringArray(orderIDs)},
	)
	if err != nil {
		return nil, dbError(err, "failed to list order items")
	}
	itemRows, err := scanAll[orderItemRow](rows, "order item")
	if err != nil {
		return nil, err
	}

	return lo.GroupBy(
		lo.Map(itemRows, func(row *orderItemRow, _ int) *order.OrderItem { return row.toDomain() }),
		func(item *order.OrderItem) string { return item.OrderID },
	), nil
}

func (r *orderRepository) Update(ctx context.Context, o *order.Order) error {
	query := `
		UPDATE orders SET
			status = :status,
			external_order_id = :external_order_id,
			external_subscription_id = :external_subscription_id,
			subscription_status = :subscription_status,
			checkout_url = :checkout_url,
			total_price = :total_price,
			paid_time = :paid_time,
			cancelled_time = :cancelled_time,
			extension_request_id = :extension_request_id,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	r.logger.Debugw("updating order", "order_id", o.ID, "status", o.Status)

	res, err := r.db.NamedExecContext(ctx, query, orderToRow(o))
	if err != nil {
		return dbError(err, "failed to update order")
	}
	return checkAffected(res, "order", o.ID)
}

// UpdateItem persists the refunded amount and date of an item; the charged snapshot is immutable
func (r *orderRepository) UpdateItem(ctx context.Context, item *order.OrderItem) error {
	query := `
		UPDATE order_items SET
			refunded_amount = :refunded_amount,
			refunded_from = :refunded_from,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, orderItemToRow(item))
	if err != nil {
		return dbError(err, "failed to update order item")
	}
	return checkAffected(res, "order item", item.ID)
}
