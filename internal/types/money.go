package types

import (
	"github.com/shopspring/decimal"
)

// MoneyPrecision is the number of decimals of every persisted amount (EUR cents)
const MoneyPrecision int32 = 2

// RoundMoney rounds an amount half away from zero to cents
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPrecision)
}

// AllocateRounded rounds each part to cents and moves the rounding difference
// onto the last part, so the result always sums to RoundMoney(total).
func AllocateRounded(total decimal.Decimal, parts []decimal.Decimal) []decimal.Decimal {
	if len(parts) == 0 {
		return nil
	}
	out := make([]decimal.Decimal, len(parts))
	sum := decimal.Zero
	for i, p := range parts[:len(parts)-1] {
		out[i] = RoundMoney(p)
		sum = sum.Add(out[i])
	}
	out[len(parts)-1] = RoundMoney(total).Sub(sum)
	return out
}

// RemoveVAT returns the VAT exclusive part of a VAT inclusive amount, unrounded
func RemoveVAT(gross, vatPercentage decimal.Decimal) decimal.Decimal {
	return gross.Div(decimal.NewFromInt(1).Add(vatPercentage.Div(decimal.NewFromInt(100))))
}
