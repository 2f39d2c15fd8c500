package pricing

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/flexprice/parkingpermits/internal/domain/product"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(y int, m time.Month, day int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: day}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newProduct(id string, start, end civil.Date, price, vat string) *product.Product {
	return &product.Product{
		ID:                            id,
		ZoneID:                        "A",
		StartDate:                     start,
		EndDate:                       end,
		UnitPrice:                     dec(price),
		VATPercentage:                 dec(vat),
		LowEmissionDiscountPercentage: dec("50"),
		SecondaryVehicleIncreaseRate:  dec("10"),
	}
}

func yearProduct() *product.Product {
	return newProduct("prod_2025", d(2025, time.January, 1), d(2025, time.December, 31), "100", "24")
}

func TestPriceForPeriod_LowEmissionSecondary(t *testing.T) {
	calc := NewCalculator()

	result, err := calc.PriceForPeriod(Params{
		Products:      []*product.Product{yearProduct()},
		Start:         d(2025, time.January, 1),
		End:           d(2025, time.February, 1),
		IsLowEmission: true,
		IsSecondary:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "55.00", result.Gross.StringFixed(2))
	assert.Equal(t, "44.35", result.Net.StringFixed(2))
	assert.Equal(t, "10.65", result.VAT.StringFixed(2))
	require.Len(t, result.ByVAT, 1)
	assert.Equal(t, "10.65", result.ByVAT[0].VAT.StringFixed(2))
}

func TestPriceForPeriod_Proration(t *testing.T) {
	calc := NewCalculator()
	products := []*product.Product{yearProduct()}

	tests := []struct {
		name  string
		start civil.Date
		end   civil.Date
		gross string
	}{
		{"full month starting mid month", d(2025, time.January, 15), d(2025, time.February, 15), "100.00"},
		{"ten days of a 31 day period", d(2025, time.January, 15), d(2025, time.January, 25), "32.26"},
		{"three months", d(2025, time.January, 1), d(2025, time.April, 1), "300.00"},
		{"clamped months", d(2025, time.January, 31), d(2025, time.April, 30), "300.00"},
		{"one and a half months", d(2025, time.March, 1), d(2025, time.April, 16), "150.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := calc.PriceForPeriod(Params{Products: products, Start: tt.start, End: tt.end})
			require.NoError(t, err)
			assert.Equal(t, tt.gross, result.Gross.StringFixed(2))
		})
	}
}

func TestPriceForPeriod_ZeroLength(t *testing.T) {
	calc := NewCalculator()

	result, err := calc.PriceForPeriod(Params{Start: d(2025, time.March, 1), End: d(2025, time.March, 1)})
	require.NoError(t, err)
	assert.True(t, result.IsZero())
	assert.Empty(t, result.Lines)
	assert.Empty(t, calc.OrderItemsFor(result))
}

func TestPriceForPeriod_ProductBoundary(t *testing.T) {
	calc := NewCalculator()
	products := []*product.Product{
		newProduct("prod_h2", d(2025, time.July, 1), d(2025, time.December, 31), "90", "25.5"),
		newProduct("prod_h1", d(2025, time.January, 1), d(2025, time.June, 30), "60", "24"),
	}

	result, err := calc.PriceForPeriod(Params{
		Products: products,
		Start:    d(2025, time.June, 16),
		End:      d(2025, time.July, 16),
	})
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)
	assert.Equal(t, "prod_h1", result.Lines[0].Product.ID)
	assert.Equal(t, 15, result.Lines[0].Days)
	assert.Equal(t, "75.00", result.Gross.StringFixed(2))
	assert.Equal(t, "60.05", result.Net.StringFixed(2))
	assert.Equal(t, "14.95", result.VAT.StringFixed(2))
	require.Len(t, result.ByVAT, 2)

	items := calc.OrderItemsFor(result)
	require.Len(t, items, 2)
	assert.Equal(t, "30.00", items[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "45.00", items[1].TotalPrice.StringFixed(2))
	assert.Equal(t, d(2025, time.July, 1), items[0].EndDate)
	assert.Equal(t, d(2025, time.July, 1), items[1].StartDate)
	assert.Equal(t, 1, items[0].Quantity)
	assert.True(t, items[1].VATPercentage.Equal(dec("25.5")))
}

func TestPriceForPeriod_Coverage(t *testing.T) {
	calc := NewCalculator()
	h1 := newProduct("prod_h1", d(2025, time.January, 1), d(2025, time.June, 30), "60", "24")

	tests := []struct {
		name     string
		products []*product.Product
	}{
		{"no products", nil},
		{"gap", []*product.Product{h1, newProduct("prod_h2", d(2025, time.July, 2), d(2025, time.December, 31), "90", "24")}},
		{"overlap", []*product.Product{h1, newProduct("prod_h2", d(2025, time.June, 1), d(2025, time.December, 31), "90", "24")}},
		{"ends too early", []*product.Product{h1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.PriceForPeriod(Params{
				Products: tt.products,
				Start:    d(2025, time.June, 1),
				End:      d(2025, time.August, 1),
			})
			require.Error(t, err)
			assert.True(t, ierr.IsPricingCoverage(err))
		})
	}
}

func TestPriceForPeriod_GrossEqualsSumOfLines(t *testing.T) {
	calc := NewCalculator()
	products := []*product.Product{
		newProduct("prod_h1", d(2025, time.January, 1), d(2025, time.June, 30), "33.33", "24"),
		newProduct("prod_h2", d(2025, time.July, 1), d(2026, time.December, 31), "47.19", "25.5"),
	}

	start := d(2025, time.January, 7)
	for _, days := range []int{1, 13, 29, 31, 59, 181, 200, 365, 400} {
		result, err := calc.PriceForPeriod(Params{
			Products:      products,
			Start:         start,
			End:           start.AddDays(days),
			IsLowEmission: days%2 == 0,
			IsSecondary:   days%3 == 0,
		})
		require.NoError(t, err)

		sum := decimal.Zero
		covered := 0
		for _, l := range result.Lines {
			sum = sum.Add(l.Amount)
			covered += l.Days
		}
		assert.Equal(t, days, covered)
		assert.True(t, types.RoundMoney(sum).Equal(result.Gross), "days=%d", days)
		assert.True(t, result.Net.Add(result.VAT).Equal(result.Gross))

		itemSum := decimal.Zero
		for _, item := range calc.OrderItemsFor(result) {
			itemSum = itemSum.Add(item.TotalPrice)
		}
		assert.True(t, itemSum.Equal(result.Gross), "days=%d", days)
	}
}
