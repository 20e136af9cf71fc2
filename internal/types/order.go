package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
)

type PurchaseType string

type OrderType string

type OrderStatus string

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	// OrderStatusFilled means the whole requested quantity was matched.
	OrderStatusFilled OrderStatus = "FILLED"
	// OrderStatusPartial means the session ran out of eligible liquidity first.
	OrderStatusPartial OrderStatus = "PARTIAL"
)

// Entrust is a single buy or sell request as it was submitted to the broker.
type Entrust struct {
	ID       string       `yaml:"id" json:"id" csv:"id" validate:"required"`
	Security string       `yaml:"security" json:"security" csv:"security" validate:"required"`
	Side     PurchaseType `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	// BidShares is the requested quantity.
	BidShares float64 `yaml:"bid_shares" json:"bid_shares" csv:"bid_shares" validate:"gt=0"`
	// BidPrice is the limit price. None means a market order.
	BidPrice optional.Option[float64] `yaml:"bid_price" json:"bid_price" csv:"bid_price"`
	BidTime  time.Time                `yaml:"bid_time" json:"bid_time" csv:"bid_time" validate:"required"`
	BidType  OrderType                `yaml:"bid_type" json:"bid_type" csv:"bid_type" validate:"required,oneof=MARKET LIMIT"`
}

// NewEntrust creates an entrust with a fresh id. A None price yields a market order.
func NewEntrust(security string, side PurchaseType, shares float64, price optional.Option[float64], bidTime time.Time) Entrust {
	bidType := OrderTypeLimit
	if price.IsNone() {
		bidType = OrderTypeMarket
	}

	return Entrust{
		ID:        uuid.New().String(),
		Security:  security,
		Side:      side,
		BidShares: shares,
		BidPrice:  price,
		BidTime:   bidTime,
		BidType:   bidType,
	}
}

// Validate rejects a malformed entrust, such as a missing bid time or a
// non-positive quantity or price, with ErrCodeBadParameter.
func (e *Entrust) Validate() error {
	validate := validator.New()
	if err := validate.Struct(e); err != nil {
		return errors.Wrap(errors.ErrCodeBadParameter, "invalid entrust", err)
	}

	if e.BidPrice.IsSome() && e.BidPrice.Unwrap() <= 0 {
		return errors.Newf(errors.ErrCodeBadParameter, "limit price must be positive, got %f", e.BidPrice.Unwrap())
	}

	return nil
}

// OrderResult is what buy and sell hand back on success.
type OrderResult struct {
	Entrust Entrust     `yaml:"entrust" json:"entrust"`
	Trades  []Trade     `yaml:"trades" json:"trades"`
	Filled  float64     `yaml:"filled" json:"filled"`
	Status  OrderStatus `yaml:"status" json:"status"`
}

// NewOrderResult sums the trades and flags the result as partial when they fall short of the bid.
func NewOrderResult(entrust Entrust, trades []Trade) OrderResult {
	filled := 0.0
	for _, t := range trades {
		filled += t.Shares
	}

	status := OrderStatusFilled
	if filled < entrust.BidShares-ClosedEpsilon {
		status = OrderStatusPartial
	}

	return OrderResult{
		Entrust: entrust,
		Trades:  trades,
		Filled:  filled,
		Status:  status,
	}
}
