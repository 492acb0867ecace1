package offer

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// epsilon is the float64 machine epsilon. It biases rounding the same way the
// storefront did so half-cent values land on the same side.
var epsilon = decimal.New(2220446049250313, -31)

// Round rounds a monetary amount to 2 decimal places, half away from zero,
// after adding epsilon.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Add(epsilon).Round(2)
}

// ErrPriceRange is returned by CheckPrice.
var ErrPriceRange = errors.New("price out of range")

// Accepted price precision and magnitude. Rounding cost grows with the
// distance between a value's exponent and epsilon's, so both ends are bounded.
const (
	minPriceExponent = -12
	maxPriceExponent = 12
)

var maxPrice = decimal.New(1, maxPriceExponent)

// CheckPrice reports whether d can be priced: at most 12 fractional digits and
// an absolute value below 10^12.
func CheckPrice(d decimal.Decimal) error {
	if exp := d.Exponent(); exp < minPriceExponent || exp > maxPriceExponent {
		return errors.Wrapf(ErrPriceRange, "exponent %d", exp)
	}
	if d.Abs().Cmp(maxPrice) >= 0 {
		return errors.Wrapf(ErrPriceRange, "magnitude of %s", d)
	}
	return nil
}
