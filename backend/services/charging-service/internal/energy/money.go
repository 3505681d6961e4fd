package energy

import "github.com/shopspring/decimal"

// Round2 rounds a currency amount half away from zero to two fractional digits.
func Round2(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// Sum2 adds amounts exactly and rounds the result to two fractional digits.
func Sum2(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.Round(2).InexactFloat64()
}

// Mul2 multiplies exactly and rounds the product to two fractional digits.
func Mul2(a, b float64) float64 {
	return decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}
