package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"github.com/shopspring/decimal"
)

// ClosedEpsilon absorbs floating point drift when a lot is sold down to zero.
const ClosedEpsilon = 1e-5

// Trade is a filled order, or the sell fragment produced when a buy lot is closed.
type Trade struct {
	TradeID   string       `yaml:"trade_id" json:"trade_id" csv:"trade_id"`
	EntrustID string       `yaml:"entrust_id" json:"entrust_id" csv:"entrust_id"`
	Security  string       `yaml:"security" json:"security" csv:"security"`
	Price     float64      `yaml:"price" json:"price" csv:"price"`
	Shares    float64      `yaml:"shares" json:"shares" csv:"shares"`
	Fee       float64      `yaml:"fee" json:"fee" csv:"fee"`
	Side      PurchaseType `yaml:"side" json:"side" csv:"side"`
	Time      time.Time    `yaml:"time" json:"time" csv:"time"`

	// UnsoldShares is the part of a buy lot that is still open.
	UnsoldShares float64 `yaml:"unsold_shares" json:"unsold_shares" csv:"unsold_shares"`
	// UnamortizedFee is the buy fee not yet charged to a transaction.
	UnamortizedFee float64 `yaml:"unamortized_fee" json:"unamortized_fee" csv:"unamortized_fee"`
	Closed         bool    `yaml:"closed" json:"closed" csv:"closed"`
}

// NewTrade creates a trade with a fresh id. Buy trades start fully open.
func NewTrade(entrustID string, security string, price float64, shares float64, fee float64, side PurchaseType, at time.Time) Trade {
	trade := Trade{
		TradeID:   uuid.New().String(),
		EntrustID: entrustID,
		Security:  security,
		Price:     price,
		Shares:    shares,
		Fee:       fee,
		Side:      side,
		Time:      at,
	}

	if side == PurchaseTypeBuy {
		trade.UnsoldShares = shares
		trade.UnamortizedFee = fee
	} else {
		trade.Closed = true
	}

	return trade
}

// Amount is price times shares, without fee.
func (t *Trade) Amount() float64 {
	amount, _ := decimal.NewFromFloat(t.Price).Mul(decimal.NewFromFloat(t.Shares)).Float64()

	return amount
}

// SellResult is the outcome of closing (part of) a buy lot.
type SellResult struct {
	// Remaining is the requested quantity this lot could not absorb.
	Remaining float64
	// RemainingFee is the sell fee not yet charged to any lot.
	RemainingFee float64
	// Fragment is the sell side record for the closed part.
	Fragment Trade
	// Transaction is the round trip for the closed part.
	Transaction Transaction
}

// Sell closes up to shares of this buy lot at price on behalf of the sell entrust.
// fee is the sell fee for the whole requested quantity; only the part
// proportional to what this lot absorbs is charged here.
func (t *Trade) Sell(entrustID string, shares float64, price float64, fee float64, closeTime time.Time) (SellResult, error) {
	if t.Side != PurchaseTypeBuy {
		return SellResult{}, errors.Newf(errors.ErrCodeBadParameter, "trade %s is not a buy lot", t.TradeID)
	}

	if t.Closed {
		return SellResult{}, errors.Newf(errors.ErrCodeTradeAlreadyClosed, "trade %s is already closed", t.TradeID)
	}

	if shares <= 0 {
		return SellResult{}, errors.Newf(errors.ErrCodeBadParameter, "sell shares must be positive, got %f", shares)
	}

	sellable := min(shares, t.UnsoldShares)

	sellableDec := decimal.NewFromFloat(sellable)
	buyFee, _ := decimal.NewFromFloat(t.Fee).Mul(sellableDec).Div(decimal.NewFromFloat(t.Shares)).Float64()
	sellFee, _ := decimal.NewFromFloat(fee).Mul(sellableDec).Div(decimal.NewFromFloat(shares)).Float64()

	t.UnsoldShares -= sellable
	t.UnamortizedFee -= buyFee

	if t.UnsoldShares < ClosedEpsilon {
		t.UnsoldShares = 0
		t.UnamortizedFee = 0
		t.Closed = true
	}

	fragment := NewTrade(entrustID, t.Security, price, sellable, sellFee, PurchaseTypeSell, closeTime)
	tx := NewTransaction(t.Security, t.Time, closeTime, t.Price, price, sellable, buyFee+sellFee)

	return SellResult{
		Remaining:    shares - sellable,
		RemainingFee: fee - sellFee,
		Fragment:     fragment,
		Transaction:  tx,
	}, nil
}
