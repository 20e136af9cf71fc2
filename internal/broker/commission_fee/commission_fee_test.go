package commission_fee

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type CommissionFeeTestSuite struct {
	suite.Suite
}

func TestCommissionFeeSuite(t *testing.T) {
	suite.Run(t, new(CommissionFeeTestSuite))
}

func (suite *CommissionFeeTestSuite) TestZeroCommissionFee() {
	fee := NewZeroCommissionFee()
	suite.NotNil(fee)
	suite.Equal(0.0, fee.Rate())

	tests := []struct {
		name     string
		price    float64
		quantity float64
		expected float64
	}{
		{"zero quantity", 10, 0, 0},
		{"small quantity", 10, 100, 0},
		{"large quantity", 10, 100000, 0},
		{"negative quantity", 10, -100, 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, fee.Calculate(tc.price, tc.quantity))
		})
	}
}

func (suite *CommissionFeeTestSuite) TestRateCommissionFee() {
	fee := NewRateCommissionFee(0.0003)
	suite.NotNil(fee)
	suite.Equal(0.0003, fee.Rate())

	tests := []struct {
		name     string
		price    float64
		quantity float64
		expected float64
	}{
		{"zero quantity", 10, 0, 0},
		{"one lot", 10, 100, 0.3},            // 10 * 100 * 0.0003
		{"fractional price", 9.43, 500, 1.4145}, // 9.43 * 500 * 0.0003
		{"large order", 25.5, 100000, 765},
		{"negative quantity", 10, -100, 0},
		{"zero price", 0, 100, 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.InDelta(tc.expected, fee.Calculate(tc.price, tc.quantity), 1e-9)
		})
	}
}

func (suite *CommissionFeeTestSuite) TestGetCommissionFeeHandler() {
	tests := []struct {
		name           string
		model          Model
		expectedType   string
		expectedResult float64
	}{
		{
			name:           "rate",
			model:          ModelRate,
			expectedType:   "*commission_fee.RateCommissionFee",
			expectedResult: 3.0,
		},
		{
			name:           "zero commission",
			model:          ModelZero,
			expectedType:   "*commission_fee.ZeroCommissionFee",
			expectedResult: 0.0,
		},
		{
			name:           "unknown model defaults to rate",
			model:          Model("unknown"),
			expectedType:   "*commission_fee.RateCommissionFee",
			expectedResult: 3.0,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			handler := GetCommissionFeeHandler(tc.model, 0.0003)
			suite.Equal(tc.expectedType, fmt.Sprintf("%T", handler))
			suite.InDelta(tc.expectedResult, handler.Calculate(10, 1000), 1e-9)
		})
	}
}
