package broker

import (
	"encoding/json"
	"time"

	"github.com/rxtech-lab/argo-broker/internal/ledger"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/internal/version"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"go.uber.org/zap"
)

// snapshot is the persisted form of an account.
type snapshot struct {
	Version      string              `json:"version"`
	Config       Config              `json:"config"`
	Stopped      bool                `json:"stopped"`
	LastTrade    time.Time           `json:"last_trade"`
	Entrusts     []types.Entrust     `json:"entrusts"`
	Trades       []types.Trade       `json:"trades"`
	Transactions []types.Transaction `json:"transactions"`
	Ledger       ledger.State        `json:"ledger"`
}

// Snapshot serializes the full account state.
func (b *Broker) Snapshot() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(snapshot{
		Version:      version.GetVersion(),
		Config:       b.config,
		Stopped:      b.stopped,
		LastTrade:    b.lastTrade,
		Entrusts:     b.entrusts,
		Trades:       b.tradeList(),
		Transactions: b.transactions,
		Ledger:       b.ledger.State(),
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSnapshotFailed, "failed to encode account", err)
	}

	return data, nil
}

// Restore rebuilds an account from a Snapshot. Snapshots of a newer minor
// version are refused.
func Restore(data []byte, deps Deps) (*Broker, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSnapshotFailed, "failed to decode account", err)
	}

	if err := version.CheckSnapshotCompatibility(version.GetVersion(), s.Version); err != nil {
		return nil, err
	}

	b, err := newBroker(s.Config, deps)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSnapshotFailed, "invalid account in snapshot", err)
	}

	b.ledger = ledger.Restore(s.Config.Principal, s.Config.Start, b.cal, b.feed, b.logger, s.Ledger)
	b.stopped = s.Stopped
	b.lastTrade = s.LastTrade
	b.entrusts = s.Entrusts
	b.transactions = s.Transactions

	for i := range s.Trades {
		trade := s.Trades[i]
		b.trades[trade.TradeID] = &trade
		b.tradeOrder = append(b.tradeOrder, trade.TradeID)
	}

	b.logger.Info("Account restored",
		zap.Bool("stopped", b.stopped),
		zap.Int("trades", len(b.tradeOrder)),
	)

	return b, nil
}
