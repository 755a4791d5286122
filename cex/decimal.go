package cex

import (
	"fmt"
	"math/big"
	"strings"
)

// ParsePrice converts a decimal price string into a fixed-point integer
// scaled by types.PriceScale (eight fractional digits).
func ParsePrice(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty price")
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if len(fracPart) > 8 {
		fracPart = fracPart[:8]
	}
	fracPart += strings.Repeat("0", 8-len(fracPart))
	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	return v, nil
}

// AmountToDecimal renders a smallest-unit amount as a decimal quantity string
// with up to eight fractional digits, as exchange APIs expect.
func AmountToDecimal(amount *big.Int, decimals uint8) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, rem := new(big.Int).QuoRem(amount, scale, new(big.Int))
	if rem.Sign() == 0 {
		return whole.String()
	}
	frac := fmt.Sprintf("%0*s", int(decimals), rem.String())
	if len(frac) > 8 {
		frac = frac[:8]
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole.String()
	}
	return whole.String() + "." + frac
}

// DecimalToAmount parses a decimal quantity string into a smallest-unit
// integer amount for an asset with the given decimals.
func DecimalToAmount(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if len(fracPart) > int(decimals) {
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))
	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
