package utils

import "github.com/shopspring/decimal"

// FloorToLot rounds quantity down to a whole number of lots.
func FloorToLot(quantity float64, lot float64) float64 {
	if quantity <= 0 || lot <= 0 {
		return 0
	}

	size := decimal.NewFromFloat(lot)

	return decimal.NewFromFloat(quantity).Div(size).Floor().Mul(size).InexactFloat64()
}

// MaxAffordableQuantity returns the largest whole number of lots balance can
// buy at price when commission is charged at rate on the traded value.
func MaxAffordableQuantity(balance float64, price float64, rate float64, lot float64) float64 {
	if balance <= 0 || price <= 0 || lot <= 0 {
		return 0
	}

	size := decimal.NewFromFloat(lot)
	perShare := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(rate)))

	return decimal.NewFromFloat(balance).Div(perShare).Div(size).Floor().Mul(size).InexactFloat64()
}
