package postgres

import (
	"context"
	"time"

	"github.com/flexprice/parkingpermits/internal/domain/product"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/postgres"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/shopspring/decimal"
)

type productRow struct {
	ID                            string          `db:"id"`
	ZoneID                        string          `db:"zone_id"`
	Name                          string          `db:"name"`
	StartDate                     time.Time       `db:"start_date"`
	EndDate                       time.Time       `db:"end_date"`
	UnitPrice                     decimal.Decimal `db:"unit_price"`
	VATPercentage                 decimal.Decimal `db:"vat_percentage"`
	LowEmissionDiscountPercentage decimal.Decimal `db:"low_emission_discount_percentage"`
	SecondaryVehicleIncreaseRate  decimal.Decimal `db:"secondary_vehicle_increase_rate"`
	types.BaseModel
}

func productToRow(p *product.Product) *productRow {
	return &productRow{
		ID:                            p.ID,
		ZoneID:                        p.ZoneID,
		Name:                          p.Name,
		StartDate:                     toDate(p.StartDate),
		EndDate:                       toDate(p.EndDate),
		UnitPrice:                     p.UnitPrice,
		VATPercentage:                 p.VATPercentage,
		LowEmissionDiscountPercentage: p.LowEmissionDiscountPercentage,
		SecondaryVehicleIncreaseRate:  p.SecondaryVehicleIncreaseRate,
		BaseModel:                     p.BaseModel,
	}
}

func (r *productRow) toDomain() *product.Product {
	return &product.Product{
		ID:                            r.ID,
		ZoneID:                        r.ZoneID,
		Name:                          r.Name,
		StartDate:                     fromDate(r.StartDate),
		EndDate:                       fromDate(r.EndDate),
		UnitPrice:                     r.UnitPrice,
		VATPercentage:                 r.VATPercentage,
		LowEmissionDiscountPercentage: r.LowEmissionDiscountPercentage,
		SecondaryVehicleIncreaseRate:  r.SecondaryVehicleIncreaseRate,
		BaseModel:                     r.BaseModel,
	}
}

type productRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewProductRepository(db *postgres.DB, logger *logger.Logger) product.Repository {
	return &productRepository{db: db, logger: logger}
}

func (r *productRepository) Create(ctx context.Context, p *product.Product) error {
	query := `
		INSERT INTO products (
			id, zone_id, name, start_date, end_date, unit_price, vat_percentage,
			low_emission_discount_percentage, secondary_vehicle_increase_rate,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :zone_id, :name, :start_date, :end_date, :unit_price, :vat_percentage,
			:low_emission_discount_percentage, :secondary_vehicle_increase_rate,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating product", "product_id", p.ID, "zone_id", p.ZoneID)

	if _, err := r.db.NamedExecContext(ctx, query, productToRow(p)); err != nil {
		return dbError(err, "failed to create product")
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.db.NamedQueryContext(ctx, "SELECT * FROM products WHERE id = :id", map[string]interface{}{"id": id})
	if err != nil {
		return nil, dbError(err, "failed to get product")
	}

	var row productRow
	if err := scanOne(rows, &row, "product", id); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// List returns the products of a zone valid on any day of [From, To], ordered by start date
func (r *productRepository) List(ctx context.Context, filter *types.ProductFilter) ([]*product.Product, error) {
	where := newWhere()
	if filter.ZoneID != "" {
		where.add("zone_id = :zone_id", "zone_id", filter.ZoneID)
	}
	if filter.From.IsValid() {
		where.add("end_date >= :from", "from", toDate(filter.From))
	}
	if filter.To.IsValid() {
		where.add("start_date <= :to", "to", toDate(filter.To))
	}

	rows, err := r.db.NamedQueryContext(ctx, "SELECT * FROM products"+where.String()+" ORDER BY start_date", where.params)
	if err != nil {
		return nil, dbError(err, "failed to list products")
	}

	productRows, err := scanAll[productRow](rows, "product")
	if err != nil {
		return nil, err
	}
	out := make([]*product.Product, 0, len(productRows))
	for _, row := range productRows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
