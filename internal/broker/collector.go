package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
)

// Collector counts orders and fills per account.
type Collector struct {
	orderTotal   *prometheus.CounterVec
	rejectTotal  *prometheus.CounterVec
	tradeVolume  *prometheus.CounterVec
	tradeAmount  *prometheus.CounterVec
	partialTotal *prometheus.CounterVec
}

// NewCollector registers the broker counters with reg. A nil reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		orderTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argo_broker_order_total",
				Help: "Total number of orders accepted",
			},
			[]string{"account", "security", "side"},
		),
		rejectTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argo_broker_order_rejected_total",
				Help: "Total number of orders rejected",
			},
			[]string{"account", "side", "reason"},
		),
		tradeVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argo_broker_trade_volume_total",
				Help: "Total number of shares filled",
			},
			[]string{"account", "security", "side"},
		),
		tradeAmount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argo_broker_trade_amount_total",
				Help: "Total value filled",
			},
			[]string{"account", "security", "side"},
		),
		partialTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argo_broker_partial_fill_total",
				Help: "Total number of orders only partially filled",
			},
			[]string{"account", "side"},
		),
	}
}

func (c *Collector) recordOrder(account string, result types.OrderResult) {
	if c == nil {
		return
	}

	side := string(result.Entrust.Side)
	security := result.Entrust.Security

	c.orderTotal.WithLabelValues(account, security, side).Inc()

	for _, trade := range result.Trades {
		c.tradeVolume.WithLabelValues(account, security, side).Add(trade.Shares)
		c.tradeAmount.WithLabelValues(account, security, side).Add(trade.Amount())
	}

	if result.Status == types.OrderStatusPartial {
		c.partialTotal.WithLabelValues(account, side).Inc()
	}
}

func (c *Collector) recordReject(account string, side types.PurchaseType, err error) {
	if c == nil {
		return
	}

	c.rejectTotal.WithLabelValues(account, string(side), errors.GetCode(err).String()).Inc()
}
