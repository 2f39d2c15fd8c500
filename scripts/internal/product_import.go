package internal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/flexprice/parkingpermits/internal/domain/product"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/postgres"
	"github.com/flexprice/parkingpermits/internal/repository"
	"github.com/flexprice/parkingpermits/internal/sentry"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// productColumns is the header the products CSV must start with
var productColumns = []string{
	"zone_id",
	"name",
	"start_date",
	"end_date",
	"unit_price",
	"vat_percentage",
	"low_emission_discount_percentage",
	"secondary_vehicle_increase_rate",
}

// ProductImportSummary contains statistics about the import process
type ProductImportSummary struct {
	TotalRows       int
	ProductsCreated int
	Skipped         int
	Errors          []string
}

type productImportScript struct {
	log         *logger.Logger
	productRepo product.Repository
	db          postgres.IClient
	summary     ProductImportSummary
}

// ImportProducts loads zone prices from the CSV named by PRODUCTS_FILE.
// With DRY_RUN=true the rows are validated but nothing is written.
func ImportProducts() error {
	filePath := os.Getenv("PRODUCTS_FILE")
	if filePath == "" {
		return fmt.Errorf("PRODUCTS_FILE is required")
	}
	dryRun := os.Getenv("DRY_RUN") == "true"

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()

	script := &productImportScript{
		log:         log,
		productRepo: repository.NewProductRepository(db, log),
		db:          postgres.NewClient(db, sentry.NewSentryService(cfg, log)),
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	rows, err := parseProductCSV(file)
	if err != nil {
		return err
	}

	if err := script.importProducts(context.Background(), rows, dryRun); err != nil {
		return err
	}
	script.printSummary(dryRun)
	return nil
}

// parseProductCSV reads product rows; prices are VAT inclusive decimals, dates YYYY-MM-DD
func parseProductCSV(r io.Reader) ([]*product.Product, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = lo.Map(header, func(h string, _ int) string { return strings.ToLower(strings.TrimSpace(h)) })
	if !lo.Every(header, productColumns) {
		return nil, ierr.NewError("unexpected products header").
			WithHintf("Products CSV must have the columns %s", strings.Join(productColumns, ",")).
			Mark(ierr.ErrValidation)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	var products []*product.Product
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		p, err := parseProductRecord(record, index)
		if err != nil {
			return nil, ierr.WithError(err).
				WithReportableDetails(map[string]any{"line": line}).
				Mark(ierr.ErrValidation)
		}
		products = append(products, p)
	}
	return products, nil
}

func parseProductRecord(record []string, index map[string]int) (*product.Product, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[index[name]])
	}

	start, err := types.ParseDate(field("start_date"))
	if err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	end, err := types.ParseDate(field("end_date"))
	if err != nil {
		return nil, fmt.Errorf("end_date: %w", err)
	}

	amounts := make(map[string]decimal.Decimal, 4)
	for _, name := range []string{"unit_price", "vat_percentage", "low_emission_discount_percentage", "secondary_vehicle_increase_rate"} {
		raw := field(name)
		if raw == "" {
			amounts[name] = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		amounts[name] = d
	}

	return &product.Product{
		ID:                            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRODUCT),
		ZoneID:                        field("zone_id"),
		Name:                          field("name"),
		StartDate:                     start,
		EndDate:                       end,
		UnitPrice:                     amounts["unit_price"],
		VATPercentage:                 amounts["vat_percentage"],
		LowEmissionDiscountPercentage: amounts["low_emission_discount_percentage"],
		SecondaryVehicleIncreaseRate:  amounts["secondary_vehicle_increase_rate"],
	}, nil
}

// importProducts writes every row in one transaction. Rows overlapping a stored
// product of the same zone are skipped; stored products are never changed.
func (s *productImportScript) importProducts(ctx context.Context, rows []*product.Product, dryRun bool) error {
	s.summary.TotalRows = len(rows)

	return s.db.WithTx(ctx, func(ctx context.Context) error {
		for _, p := range rows {
			p.BaseModel = types.GetDefaultBaseModel(ctx)
			if err := p.Validate(); err != nil {
				s.summary.Errors = append(s.summary.Errors, fmt.Sprintf("%s %s: %v", p.ZoneID, p.Name, err))
				continue
			}

			existing, err := s.productRepo.List(ctx, &types.ProductFilter{
				ZoneID: p.ZoneID,
				From:   p.StartDate,
				To:     p.EndDate,
			})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				s.log.Warnw("skipping overlapping product",
					"zone_id", p.ZoneID,
					"start_date", p.StartDate.String(),
					"end_date", p.EndDate.String(),
					"existing_product_id", existing[0].ID,
				)
				s.summary.Skipped++
				continue
			}

			if dryRun {
				s.summary.ProductsCreated++
				continue
			}
			if err := s.productRepo.Create(ctx, p); err != nil {
				return err
			}
			s.summary.ProductsCreated++
		}
		return nil
	})
}

func (s *productImportScript) printSummary(dryRun bool) {
	fmt.Printf("\nProduct import summary (dry run: %v)\n", dryRun)
	fmt.Printf("  rows:     %d\n", s.summary.TotalRows)
	fmt.Printf("  created:  %d\n", s.summary.ProductsCreated)
	fmt.Printf("  skipped:  %d\n", s.summary.Skipped)
	if len(s.summary.Errors) > 0 {
		fmt.Printf("  errors:   %d\n", len(s.summary.Errors))
		for _, e := range s.summary.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}
