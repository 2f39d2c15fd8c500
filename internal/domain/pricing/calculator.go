// Package pricing prices a permit configuration over a date range against a zone's products.
package pricing

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/flexprice/parkingpermits/internal/calendar"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/product"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Params describe what to price. Start and End form a half-open civil range.
type Params struct {
	Products      []*product.Product
	Start         civil.Date
	End           civil.Date
	IsLowEmission bool
	IsSecondary   bool
}

// Line is the unrounded charge of one product within one month period
type Line struct {
	Product *product.Product
	// Period is the part of the month period that is charged
	Period calendar.Period
	// MonthPeriod is the full month period the daily price is derived from
	MonthPeriod calendar.Period
	Days        int
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// VATTotal is the charge of all lines sharing a VAT rate
type VATTotal struct {
	VATPercentage decimal.Decimal
	Gross         decimal.Decimal
	Net           decimal.Decimal
	VAT           decimal.Decimal
}

// Result is a priced range. Gross, Net and VAT are rounded to cents; lines are not.
type Result struct {
	Lines []Line
	Gross decimal.Decimal
	Net   decimal.Decimal
	VAT   decimal.Decimal
	ByVAT []VATTotal
}

// IsZero reports whether nothing is charged
func (r *Result) IsZero() bool {
	return r.Gross.IsZero()
}

// Calculator prices permit periods
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// PriceForPeriod splits [Start, End) at every month period boundary (anchored
// at Start) and at every product boundary, prices each piece from its
// product's modified unit price and rounds only the totals.
func (c *Calculator) PriceForPeriod(params Params) (*Result, error) {
	result := &Result{Gross: decimal.Zero, Net: decimal.Zero, VAT: decimal.Zero}
	if !params.Start.Before(params.End) {
		return result, nil
	}

	requested := calendar.Period{Start: params.Start, End: params.End}
	products, err := coveringProducts(params.Products, requested)
	if err != nil {
		return nil, err
	}

	months := calendar.DiffMonthsCeil(params.Start, params.End)
	for month := range calendar.MonthBoundaries(params.Start, months) {
		charged := month.Intersect(requested)
		for _, p := range products {
			piece := charged.Intersect(p.Period())
			if piece.IsEmpty() {
				continue
			}
			unitPrice := p.ModifiedUnitPrice(params.IsLowEmission, params.IsSecondary)
			days := piece.Days()
			result.Lines = append(result.Lines, Line{
				Product:     p,
				Period:      piece,
				MonthPeriod: month,
				Days:        days,
				UnitPrice:   unitPrice,
				Amount:      unitPrice.Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(int64(month.Days()))),
			})
		}
	}

	c.summarize(result)
	return result, nil
}

func (c *Calculator) summarize(result *Result) {
	gross := decimal.Zero
	net := decimal.Zero

	groups := lo.GroupBy(result.Lines, func(l Line) string {
		return l.Product.VATPercentage.String()
	})
	rates := lo.Keys(groups)
	sort.Strings(rates)

	for _, rate := range rates {
		lines := groups[rate]
		vat := lines[0].Product.VATPercentage
		groupGross := sumAmounts(lines)
		groupNet := types.RemoveVAT(groupGross, vat)

		gross = gross.Add(groupGross)
		net = net.Add(groupNet)

		roundedGross := types.RoundMoney(groupGross)
		roundedNet := types.RoundMoney(groupNet)
		result.ByVAT = append(result.ByVAT, VATTotal{
			VATPercentage: vat,
			Gross:         roundedGross,
			Net:           roundedNet,
			VAT:           roundedGross.Sub(roundedNet),
		})
	}

	result.Gross = types.RoundMoney(gross)
	result.Net = types.RoundMoney(net)
	result.VAT = result.Gross.Sub(result.Net)
}

// OrderItemsFor groups the lines of a result into one order item per
// consecutive product. Item totals are rounded with the remainder on the last
// item so that they add up to the result's gross exactly.
func (c *Calculator) OrderItemsFor(result *Result) []*order.OrderItem {
	var items []*order.OrderItem
	var amounts []decimal.Decimal
	var months map[calendar.Period]struct{}

	for _, line := range result.Lines {
		var last *order.OrderItem
		if len(items) > 0 {
			last = items[len(items)-1]
		}
		if last == nil || last.ProductID != line.Product.ID {
			last = &order.OrderItem{
				ProductID:      line.Product.ID,
				StartDate:      line.Period.Start,
				EndDate:        line.Period.End,
				UnitPrice:      types.RoundMoney(line.UnitPrice),
				VATPercentage:  line.Product.VATPercentage,
				RefundedAmount: decimal.Zero,
			}
			items = append(items, last)
			amounts = append(amounts, decimal.Zero)
			months = map[calendar.Period]struct{}{}
		}
		last.EndDate = line.Period.End
		amounts[len(amounts)-1] = amounts[len(amounts)-1].Add(line.Amount)
		if _, seen := months[line.MonthPeriod]; !seen {
			months[line.MonthPeriod] = struct{}{}
			last.Quantity++
		}
	}

	totals := types.AllocateRounded(sumAmounts(result.Lines), amounts)
	for i, item := range items {
		item.TotalPrice = totals[i]
	}
	return items
}

// coveringProducts returns the products intersecting the period in date
// order and checks that they cover every day of it exactly once.
func coveringProducts(all []*product.Product, period calendar.Period) ([]*product.Product, error) {
	candidates := lo.Filter(all, func(p *product.Product, _ int) bool {
		return !p.Period().Intersect(period).IsEmpty()
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].StartDate.Before(candidates[j].StartDate)
	})

	if len(candidates) == 0 || candidates[0].StartDate.After(period.Start) {
		return nil, coverageError("gap in product coverage", period.Start, period)
	}
	for i := 1; i < len(candidates); i++ {
		prevEnd := candidates[i-1].Period().End
		switch next := candidates[i].StartDate; {
		case next.After(prevEnd):
			return nil, coverageError("gap in product coverage", prevEnd, period)
		case next.Before(prevEnd):
			return nil, coverageError("overlapping products", next, period)
		}
	}
	if last := candidates[len(candidates)-1]; last.Period().End.Before(period.End) {
		return nil, coverageError("gap in product coverage", last.Period().End, period)
	}
	return candidates, nil
}

func coverageError(msg string, day civil.Date, period calendar.Period) error {
	return ierr.NewError(msg).
		WithHintf("No single product prices %s", day).
		WithReportableDetails(map[string]any{
			"date":         day.String(),
			"period_start": period.Start.String(),
			"period_end":   period.End.String(),
		}).
		Mark(ierr.ErrPricingCoverage)
}

func sumAmounts(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Amount)
	}
	return sum
}
