// Package amount converts order totals into the acquirer's minor-unit integers.
package amount

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the storefront's price precision when none is configured.
const DefaultDecimals int32 = 2

var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {},
	"KMF": {}, "KRW": {}, "MGA": {}, "PYG": {}, "RWF": {},
	"VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

var hundred = decimal.NewFromInt(100)

// Codec rounds to Decimals before scaling non zero-decimal amounts to cents.
type Codec struct {
	Decimals int32
}

func NewCodec(decimals int32) Codec {
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	return Codec{Decimals: decimals}
}

// IsZeroDecimal reports whether currency amounts are already in base units.
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimal[strings.ToUpper(strings.TrimSpace(currency))]
	return ok
}

// ToMinorUnits never returns a negative value; the sign of amount is dropped.
func (c Codec) ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if IsZeroDecimal(currency) {
		return amount.Abs().Round(0).IntPart()
	}
	return amount.Round(c.Decimals).Mul(hundred).Abs().Round(0).IntPart()
}

// ToMinorUnits uses DefaultDecimals.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	return Codec{Decimals: DefaultDecimals}.ToMinorUnits(amount, currency)
}

// FromFloat is a convenience for callers that still hold float64 totals.
func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
