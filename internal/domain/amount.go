package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals used to render base units for display.
const (
	CapitalDecimals int32 = 9
	TokenDecimals   int32 = 9
)

// FormatUnits renders a base-unit amount as a decimal string with the given precision.
func FormatUnits(amount uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0).Shift(-decimals).StringFixed(decimals)
}

// ParseUnits converts a decimal string into base units. Fractions finer than
// decimals and negative or oversized values are rejected.
func ParseUnits(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount.Wrap(err)
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() || scaled.IsNegative() {
		return 0, ErrInvalidAmount
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return bi.Uint64(), nil
}

// PriceDisplay renders the per-token price of p in capital units.
func PriceDisplay(p Product) string {
	price, err := p.TokenPrice()
	if err != nil {
		return ""
	}
	return FormatUnits(price, CapitalDecimals)
}

// CheckedAdd returns a+b or ErrArithmeticOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, ErrArithmeticOverflow
	}
	return s, nil
}
