// Package bill aggregates priced basket lines into a bill summary.
package bill

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/offer"
)

// Line is a basket line together with its offer result.
type Line struct {
	offer.BasketLine
	offer.Result
}

// Gross returns price * qty before offers.
func (l Line) Gross() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Bill is the priced basket.
type Bill struct {
	Lines []Line
	// Subtotal is the unrounded sum of price * qty over all lines.
	Subtotal decimal.Decimal
	// TotalSavings is the sum of the (rounded) line savings.
	TotalSavings decimal.Decimal
	// Total is Subtotal - TotalSavings, rounded once on the aggregate.
	Total decimal.Decimal
}

// Aggregate sums lines into a Bill. The total is derived from the raw subtotal
// and the savings, not from the already rounded item costs, so rounding drift
// does not accumulate across lines.
func Aggregate(lines []Line) Bill {
	subtotal := decimal.Zero
	savings := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Gross())
		savings = savings.Add(l.Savings)
	}
	return Bill{
		Lines:        lines,
		Subtotal:     subtotal,
		TotalSavings: savings,
		Total:        offer.Round(subtotal.Sub(savings)),
	}
}

// Price evaluates every basket line with e and aggregates the results. Lines
// keep the order of basket.
func Price(e offer.Evaluator, basket []offer.BasketLine) Bill {
	lines := make([]Line, len(basket))
	for i, bl := range basket {
		lines[i] = Line{
			BasketLine: bl,
			Result:     e.Evaluate(bl.ID, bl.Qty, bl.Price, basket),
		}
	}
	return Aggregate(lines)
}
