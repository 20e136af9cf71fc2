package commission_fee

type CommissionFee interface {
	// Calculate returns the fee charged for trading quantity shares at price
	Calculate(price float64, quantity float64) float64
	// Rate is the fraction of trade value charged, used to size orders against cash
	Rate() float64
}

type Model string

const (
	ModelRate Model = "rate"
	ModelZero Model = "zero"
)

var AllModels = []any{
	ModelRate,
	ModelZero,
}

func GetCommissionFeeHandler(model Model, rate float64) CommissionFee {
	switch model {
	case ModelRate:
		return NewRateCommissionFee(rate)
	case ModelZero:
		return NewZeroCommissionFee()
	default:
		return NewRateCommissionFee(rate)
	}
}
