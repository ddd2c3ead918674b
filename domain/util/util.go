package util

import (
	"fmt"
	"math/big"

	"github.com/dustin/go-humanize"
	"rwadriver/domain/fixedpoint"
)

// AmountString renders a fixed-point amount as a human-readable decimal with
// thousands separators, e.g. AmountString(1234500000, 6, "USDC") ->
// "1,234.5 USDC".
func AmountString(amount *big.Int, decimals uint8, symbol string) string {
	value, _ := new(big.Float).SetInt(amount).Float64()
	scale, _ := new(big.Float).SetInt(fixedpoint.Pow10(decimals)).Float64()
	return fmt.Sprintf("%v %v", humanize.Commaf(value/scale), symbol)
}

// FiatString renders a 6-decimal fiat amount.
func FiatString(amount *big.Int, symbol string) string {
	return AmountString(amount, fixedpoint.FiatDecimals, symbol)
}
