package commission_fee

import "github.com/shopspring/decimal"

// RateCommissionFee charges a fixed fraction of the trade value.
type RateCommissionFee struct {
	rate decimal.Decimal
}

func NewRateCommissionFee(rate float64) CommissionFee {
	return &RateCommissionFee{rate: decimal.NewFromFloat(rate)}
}

func (c *RateCommissionFee) Calculate(price float64, quantity float64) float64 {
	if quantity <= 0 || price <= 0 {
		return 0
	}

	fee, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity)).Mul(c.rate).Float64()

	return fee
}

func (c *RateCommissionFee) Rate() float64 {
	return c.rate.InexactFloat64()
}
