package orderbook

import (
	"math"
	"strconv"
)

// PriceScale is the number of implied decimal places in a Price.
const PriceScale = 4

// priceUnit is the scaling factor for one whole currency unit.
const priceUnit = 10_000

// Price is a fixed-point price with PriceScale implied decimals.
// Prices key the level trees, so they must compare exactly; floats
// would fragment levels through representation drift.
type Price int64

// PriceFromFloat converts a float price, rounding to the nearest tick
// representable at PriceScale.
func PriceFromFloat(f float64) Price {
	return Price(math.Round(f * priceUnit))
}

// Float converts back to a float64 for analytics-side math.
func (p Price) Float() float64 { return float64(p) / priceUnit }

// String renders the price with all implied decimals, without going
// through float formatting.
func (p Price) String() string {
	v := int64(p)
	neg := v < 0
	if neg {
		v = -v
	}
	whole := v / priceUnit
	frac := v % priceUnit
	buf := make([]byte, 0, 24)
	if neg {
		buf = append(buf, '-')
	}
	buf = strconv.AppendInt(buf, whole, 10)
	buf = append(buf, '.')
	// frac+priceUnit always has PriceScale+1 digits; drop the leading 1.
	buf = append(buf, strconv.FormatInt(frac+priceUnit, 10)[1:]...)
	return string(buf)
}

// Quantity is a whole number of instrument units.
type Quantity int64
