package course

import (
	"strings"

	"github.com/shopspring/decimal"
)

var priceFormatting = strings.NewReplacer("$", "", ",", "", " ", "")

// ParsePrice derives the numeric value of a display price ("$8,500" -> 8500).
// ok is false when the stripped price is not a valid, non-negative number.
func ParsePrice(price string) (float64, bool) {
	stripped := priceFormatting.Replace(price)
	if stripped == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(stripped)
	if err != nil || d.IsNegative() {
		return 0, false
	}
	return d.InexactFloat64(), true
}
