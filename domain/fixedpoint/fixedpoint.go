// Package fixedpoint centralizes the decimal-shifted integer arithmetic
// shared by purchase and redemption. Amounts live in three numeric domains
// (claim-token units, fiat units, stablecoin units), each with its own
// decimal precision; every scaling between them goes through this package.
//
// All functions are pure, operate on math/big integers so the full product
// exists before any division, and use floor division as the single rounding
// policy. Inputs are never mutated; results are freshly allocated.
package fixedpoint

import "math/big"

// FiatDecimals is the implied decimal precision of NAV and all fiat amounts.
const FiatDecimals uint8 = 6

var ten = big.NewInt(10)

// Pow10 returns 10^n.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(n)), nil)
}

// AlignDecimals rescales value from one decimal precision to another.
// Scaling down truncates toward zero for positive values (floor).
func AlignDecimals(value *big.Int, fromDecimals uint8, toDecimals uint8) *big.Int {
	if fromDecimals == toDecimals {
		return new(big.Int).Set(value)
	}
	if fromDecimals < toDecimals {
		return new(big.Int).Mul(value, Pow10(toDecimals-fromDecimals))
	}
	return new(big.Int).Quo(new(big.Int).Set(value), Pow10(fromDecimals-toDecimals))
}

// Convert divides value by a shifted rate: value * 10^rateDecimals / rate.
// With rate meaning "quote units per base unit, shifted by rateDecimals",
// this turns a quote-denominated value into base units. rate must be
// non-zero; callers guard against empty feeds before converting.
func Convert(value *big.Int, rate *big.Int, rateDecimals uint8) *big.Int {
	product := new(big.Int).Mul(value, Pow10(rateDecimals))
	return product.Quo(product, rate)
}

// Apply multiplies value by a shifted rate: value * rate / 10^rateDecimals.
// The inverse direction of Convert, turning base units into quote units.
func Apply(value *big.Int, rate *big.Int, rateDecimals uint8) *big.Int {
	product := new(big.Int).Mul(value, rate)
	return product.Quo(product, Pow10(rateDecimals))
}

// MulDiv returns floor(value * mul / div). The product is computed in full
// before the division, so the intermediate never overflows.
func MulDiv(value *big.Int, mul *big.Int, div *big.Int) *big.Int {
	product := new(big.Int).Mul(value, mul)
	return product.Quo(product, div)
}
