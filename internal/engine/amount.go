package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fintalk/iecat/internal/common"
)

var amountReplacer = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "₩", "", "원", "")

// ParseAmount reads a whole-currency amount such as "3,000,000",
// "3000000원" or "-120000". Fractions are only accepted when they are zero.
func ParseAmount(text string) (int64, error) {
	cleaned := amountReplacer.Replace(strings.TrimSpace(text))
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty amount", common.ErrMalformedItem)
	}

	if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
		return n, nil
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a number", common.ErrMalformedItem, text)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: amount %q has a fractional part", common.ErrMalformedItem, text)
	}
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: amount %q out of range", common.ErrMalformedItem, text)
	}
	return d.IntPart(), nil
}

// Percent returns part/whole on a 0-100 scale rounded to two places. A zero
// whole yields 0.
func Percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	ratio := decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(whole)).
		Round(2)
	f, _ := ratio.Float64()
	return f
}
