// Package offer evaluates promotional rules for a single basket line.
//
// Evaluation is pure: the same line and basket snapshot always produce the same
// Result, and no input makes it fail. Rules are looked up by product id; ids
// without a registered rule fall back to the no-offer rule.
package offer

import "github.com/shopspring/decimal"

// NoOfferLabel is reported for lines that no promotion applies to.
const NoOfferLabel = "No offer"

// BasketLine is one product's snapshot inside a basket: the cart quantity
// joined with catalog name and price.
type BasketLine struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Qty   int
}

// Result is the outcome of evaluating one line against the whole basket.
// ItemCost and Savings are rounded to 2 decimal places.
type Result struct {
	ItemCost decimal.Decimal
	Savings  decimal.Decimal
	Offer    string
}

// QuantityLookup returns the basket quantity of a product, 0 when absent.
type QuantityLookup func(productID string) int

// Rule computes the raw (unrounded) result for a line. qtyOf gives access to
// sibling quantities for cross-product combos.
type Rule func(qty int, unitPrice decimal.Decimal, qtyOf QuantityLookup) Result

// Evaluator is implemented by Engine.
type Evaluator interface {
	Evaluate(productID string, qty int, unitPrice decimal.Decimal, basket []BasketLine) Result
}

var _ Evaluator = (*Engine)(nil)

// Engine dispatches lines to rules by product id.
type Engine struct {
	rules    map[string]Rule
	fallback Rule
}

// Option configures an Engine.
type Option func(*Engine)

// WithRule registers rule for productID, replacing any existing one.
func WithRule(productID string, rule Rule) Option {
	return func(e *Engine) {
		e.rules[productID] = rule
	}
}

// WithFallback replaces the rule used for products without a registered rule.
func WithFallback(rule Rule) Option {
	return func(e *Engine) {
		e.fallback = rule
	}
}

// NewEngine creates an Engine with no product rules. Every product is priced by
// NoOffer until rules are registered through options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules:    make(map[string]Rule),
		fallback: NoOffer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate prices productID at qty units of unitPrice. basket is the full
// current snapshot, including the line being evaluated, and is only used to
// look up sibling quantities.
func (e *Engine) Evaluate(productID string, qty int, unitPrice decimal.Decimal, basket []BasketLine) Result {
	rule, ok := e.rules[productID]
	if !ok {
		rule = e.fallback
	}
	res := rule(qty, unitPrice, lookupIn(basket))
	return Result{
		ItemCost: Round(res.ItemCost),
		Savings:  Round(res.Savings),
		Offer:    res.Offer,
	}
}

func lookupIn(basket []BasketLine) QuantityLookup {
	return func(productID string) int {
		for _, line := range basket {
			if line.ID == productID {
				return line.Qty
			}
		}
		return 0
	}
}

var standard = Standard()

// Evaluate prices a line with the standard storefront rule table.
func Evaluate(productID string, qty int, unitPrice decimal.Decimal, basket []BasketLine) Result {
	return standard.Evaluate(productID, qty, unitPrice, basket)
}
