package refund

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/flexprice/parkingpermits/internal/calendar"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Params describe what to refund. Items are the paid charge items of one permit.
type Params struct {
	Items  []*order.OrderItem
	Cutoff civil.Date
	// OpenEnded limits the refund to the period the cutoff falls in
	OpenEnded bool
}

// Spec is the refundable amount of the items sharing one VAT rate
type Spec struct {
	Amount        decimal.Decimal
	VATAmount     decimal.Decimal
	VATPercentage decimal.Decimal
	Items         []ItemShare
}

// ItemShare is the part of Spec.Amount taken from one order item for its days from From on
type ItemShare struct {
	Item   *order.OrderItem
	Amount decimal.Decimal
	From   civil.Date
}

// Allocations converts the shares into the form stored on a refund
func (s *Spec) Allocations() []Allocation {
	return lo.Map(s.Items, func(share ItemShare, _ int) Allocation {
		return Allocation{OrderItemID: share.Item.ID, OrderID: share.Item.OrderID, Amount: share.Amount}
	})
}

// Apply records the shares as refunded on their items and returns the touched items
func (s *Spec) Apply() []*order.OrderItem {
	return lo.Map(s.Items, func(share ItemShare, _ int) *order.OrderItem {
		share.Item.RefundedAmount = share.Item.RefundedAmount.Add(share.Amount)
		share.Item.MarkRefundedFrom(share.From)
		return share.Item
	})
}

// Total sums the amounts of several specs
func Total(specs []*Spec) decimal.Decimal {
	return lo.Reduce(specs, func(acc decimal.Decimal, s *Spec, _ int) decimal.Decimal {
		return acc.Add(s.Amount)
	}, decimal.Zero)
}

// Calculator computes refunds from frozen order item prices
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate prorates every item over its unused days from the cutoff on,
// leaving out days an earlier refund or credit already covered. Each item is
// capped at its unrefunded balance and the result is grouped by VAT rate.
// Only specs with a positive amount are returned.
func (c *Calculator) Calculate(params Params) []*Spec {
	items := refundableItems(params)

	groups := lo.GroupBy(items, func(item *order.OrderItem) string {
		return item.VATPercentage.String()
	})
	rates := lo.Keys(groups)
	sort.Strings(rates)

	var specs []*Spec
	for _, rate := range rates {
		if spec := c.calculateGroup(groups[rate], params.Cutoff); spec != nil {
			specs = append(specs, spec)
		}
	}
	return specs
}

func (c *Calculator) calculateGroup(items []*order.OrderItem, cutoff civil.Date) *Spec {
	raws := make([]decimal.Decimal, len(items))
	total := decimal.Zero
	for i, item := range items {
		raws[i] = unusedValue(item, cutoff)
		total = total.Add(raws[i])
	}

	amount := decimal.Zero
	shares := make([]ItemShare, 0, len(items))
	for i, share := range types.AllocateRounded(total, raws) {
		share = decimal.Min(decimal.Max(share, decimal.Zero), items[i].Remaining())
		if !share.IsPositive() {
			continue
		}
		amount = amount.Add(share)
		shares = append(shares, ItemShare{
			Item:   items[i],
			Amount: share,
			From:   calendar.MaxDate(cutoff, items[i].StartDate),
		})
	}
	if !amount.IsPositive() {
		return nil
	}

	vatPercentage := items[0].VATPercentage
	return &Spec{
		Amount:        amount,
		VATAmount:     amount.Sub(types.RoundMoney(types.RemoveVAT(amount, vatPercentage))),
		VATPercentage: vatPercentage,
		Items:         shares,
	}
}

// unusedValue is the item's charge for the days from cutoff up to the first
// day already given back, never more than what is still unrefunded
func unusedValue(item *order.OrderItem, cutoff civil.Date) decimal.Decimal {
	period := item.Period()
	unused := calendar.Period{Start: calendar.MaxDate(cutoff, period.Start), End: item.RefundableUntil()}
	if unused.IsEmpty() || period.IsEmpty() {
		return decimal.Zero
	}
	value := item.TotalPrice.
		Mul(decimal.NewFromInt(int64(unused.Days()))).
		Div(decimal.NewFromInt(int64(period.Days())))
	return decimal.Min(value, item.Remaining())
}

func refundableItems(params Params) []*order.OrderItem {
	items := lo.Filter(params.Items, func(item *order.OrderItem, _ int) bool {
		return !item.IsCredit() && item.Remaining().IsPositive() && item.RefundableUntil().After(params.Cutoff)
	})
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartDate.Before(items[j].StartDate)
	})
	if !params.OpenEnded || len(items) == 0 {
		return items
	}

	// a subscription is charged one period at a time
	current := lo.Filter(items, func(item *order.OrderItem, _ int) bool {
		return item.Period().Contains(params.Cutoff)
	})
	if len(current) > 0 {
		return current
	}
	return items[:1]
}
