package offer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Storefront product ids with promotions attached.
const (
	Soup   = "Soup"
	Milk   = "Milk"
	Bread  = "Bread"
	Butter = "Butter"
	Cheese = "Cheese"
)

var (
	comboDiscount = decimal.RequireFromString("0.10")
	butterRate    = decimal.RequireFromString("0.05")
)

// Standard returns an Engine with the storefront rule table:
//
//	Soup    buy 2 get 1 free
//	Milk    combo with Bread, no savings on the Milk line
//	Bread   combo with Milk, 0.10 off per combo
//	Butter  5% off
//
// Everything else, Cheese included, has no offer.
func Standard() *Engine {
	return NewEngine(
		WithRule(Soup, BuyNGetOneFree(3, "Buy 2 Get 1 Free")),
		WithRule(Milk, ComboAnchor(Milk, Bread, "Combo: Milk + Bread", "Buy Bread to unlock combo discount")),
		WithRule(Bread, ComboDiscount(Milk, Bread, comboDiscount, "Combo: Milk + Bread", "Buy Milk to unlock combo discount")),
		WithRule(Butter, PercentOff(butterRate, "5% off Butter")),
	)
}

// NoOffer charges the full line price.
func NoOffer() Rule {
	return func(qty int, unitPrice decimal.Decimal, _ QuantityLookup) Result {
		return Result{
			ItemCost: lineTotal(qty, unitPrice),
			Savings:  decimal.Zero,
			Offer:    NoOfferLabel,
		}
	}
}

// BuyNGetOneFree makes one unit free for every complete group of groupSize
// units. The label carries the free count once at least one unit is free.
func BuyNGetOneFree(groupSize int, label string) Rule {
	return func(qty int, unitPrice decimal.Decimal, _ QuantityLookup) Result {
		free := floorDiv(qty, groupSize)
		savings := unitPrice.Mul(decimal.NewFromInt(int64(free)))
		offer := label
		if free > 0 {
			offer = fmt.Sprintf("%s (Free %d)", label, free)
		}
		return Result{
			ItemCost: lineTotal(qty, unitPrice).Sub(savings),
			Savings:  savings,
			Offer:    offer,
		}
	}
}

// ComboAnchor is the undiscounted side of a paired-product combo. The line is
// always charged in full; the combo discount is attributed to the other side
// only, so evaluating both lines independently never discounts twice.
func ComboAnchor(anchor, partner, comboLabel, promptLabel string) Rule {
	return func(qty int, unitPrice decimal.Decimal, qtyOf QuantityLookup) Result {
		combos := min(qtyOf(anchor), qtyOf(partner))
		return Result{
			ItemCost: lineTotal(qty, unitPrice),
			Savings:  decimal.Zero,
			Offer:    comboOffer(combos, comboLabel, promptLabel),
		}
	}
}

// ComboDiscount is the discounted side of a paired-product combo: perCombo off
// for every matched anchor/discounted pair in the basket.
func ComboDiscount(anchor, discounted string, perCombo decimal.Decimal, comboLabel, promptLabel string) Rule {
	return func(qty int, unitPrice decimal.Decimal, qtyOf QuantityLookup) Result {
		combos := min(qtyOf(anchor), qtyOf(discounted))
		savings := perCombo.Mul(decimal.NewFromInt(int64(combos)))
		return Result{
			ItemCost: lineTotal(qty, unitPrice).Sub(savings),
			Savings:  savings,
			Offer:    comboOffer(combos, comboLabel, promptLabel),
		}
	}
}

// PercentOff takes rate (0.05 for 5%) off the whole line.
func PercentOff(rate decimal.Decimal, label string) Rule {
	return func(qty int, unitPrice decimal.Decimal, _ QuantityLookup) Result {
		gross := lineTotal(qty, unitPrice)
		savings := gross.Mul(rate)
		return Result{
			ItemCost: gross.Sub(savings),
			Savings:  savings,
			Offer:    label,
		}
	}
}

func comboOffer(combos int, comboLabel, promptLabel string) string {
	if combos > 0 {
		return fmt.Sprintf("%s (%d)", comboLabel, combos)
	}
	return promptLabel
}

func lineTotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// floorDiv divides rounding toward negative infinity. A non-positive divisor
// yields 0.
func floorDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
