package models

import (
	"github.com/shopspring/decimal"
)

const pesoSign = "₱"

// Round2 rounds an amount to centavos before it is stored or transmitted.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// NonNegative floors d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func FormatPeso(d decimal.Decimal) string {
	return pesoSign + d.StringFixed(2)
}

// ActivationAmount is the whole-peso amount the bill acceptor is armed with.
func ActivationAmount(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
