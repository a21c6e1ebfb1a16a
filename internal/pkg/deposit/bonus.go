package deposit

import "github.com/shopspring/decimal"

// bonusTier grants BasisPoints (1/100 of a percent) to amounts of at least Min.
type bonusTier struct {
	Min         int64
	BasisPoints int64
}

// Ordered from the highest threshold down.
var bonusTiers = []bonusTier{
	{Min: 10_000_000, BasisPoints: 500},
	{Min: 5_000_000, BasisPoints: 300},
	{Min: 1_000_000, BasisPoints: 200},
	{Min: 500_000, BasisPoints: 150},
	{Min: 100_000, BasisPoints: 100},
}

// Breakdown is the credited result of a deposit amount.
type Breakdown struct {
	Amount   int64
	BonusBps int64
	Bonus    int64
	Total    int64
}

// BonusBasisPoints returns the tier rate for amount in basis points.
func BonusBasisPoints(amount int64) int64 {
	for _, tier := range bonusTiers {
		if amount >= tier.Min {
			return tier.BasisPoints
		}
	}
	return 0
}

// BonusPercent returns the tier rate for amount as a percentage, e.g. 1.5.
func BonusPercent(amount int64) decimal.Decimal {
	return PercentFromBps(BonusBasisPoints(amount))
}

// PercentFromBps converts basis points to a percentage without rounding.
func PercentFromBps(bps int64) decimal.Decimal {
	return decimal.New(bps, -2)
}

// Compute derives bonus and total with integer arithmetic only. The bonus is
// floored, so the result is identical whenever it is re-derived.
func Compute(amount int64) Breakdown {
	if amount < 0 {
		amount = 0
	}
	bps := BonusBasisPoints(amount)
	bonus := bonusOf(amount, bps)
	return Breakdown{
		Amount:   amount,
		BonusBps: bps,
		Bonus:    bonus,
		Total:    amount + bonus,
	}
}

// ComputeFromBps re-derives a stored breakdown from its frozen rate.
func ComputeFromBps(amount, bps int64) Breakdown {
	bonus := bonusOf(amount, bps)
	return Breakdown{Amount: amount, BonusBps: bps, Bonus: bonus, Total: amount + bonus}
}

// bonusOf is floor(amount*bps/10000) split on the divisor so the product
// never leaves int64 for non-negative inputs.
func bonusOf(amount, bps int64) int64 {
	return amount/10_000*bps + amount%10_000*bps/10_000
}
