// Package replay places a scripted sequence of orders on a registered account.
package replay

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-broker/internal/broker"
	"github.com/rxtech-lab/argo-broker/internal/logger"
	"github.com/rxtech-lab/argo-broker/internal/registry"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"go.uber.org/zap"
)

// OnProcessOrderCallback is called after each order. Returning an error stops the replay.
type OnProcessOrderCallback func(current int, total int) error

// Outcome is the result of one scripted order.
type Outcome struct {
	Order  Order              `yaml:"order"`
	Result *types.OrderResult `yaml:"result,omitempty"`
	Error  string             `yaml:"error,omitempty"`
	Code   string             `yaml:"code,omitempty"`
}

// Report summarizes a replay.
type Report struct {
	Outcomes []Outcome `yaml:"outcomes"`
	Accepted int       `yaml:"accepted"`
	Rejected int       `yaml:"rejected"`
}

type Runner struct {
	registry *registry.Registry
	token    string
	logger   *logger.Logger
}

func NewRunner(reg *registry.Registry, token string, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Runner{registry: reg, token: token, logger: log}
}

// Run places every order of script in turn. Rejected orders are recorded in
// the report and do not stop the replay. The account is stopped at the end.
func (r *Runner) Run(ctx context.Context, script Script, onProcessOrder optional.Option[OnProcessOrderCallback]) (Report, error) {
	report := Report{Outcomes: make([]Outcome, 0, len(script.Orders))}
	total := len(script.Orders)

	for i, order := range script.Orders {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome := Outcome{Order: order}

		value, err := r.registry.Do(r.token, order.RequestID, func(b *broker.Broker) (any, error) {
			return place(ctx, b, order)
		})

		switch {
		case errors.HasCode(err, errors.ErrCodeAccountNotFound):
			return report, err
		case err != nil:
			outcome.Error = err.Error()
			outcome.Code = errors.GetCode(err).String()
			report.Rejected++

			r.logger.Debug("Scripted order rejected",
				zap.Int("index", i),
				zap.String("security", order.Security),
				zap.Error(err),
			)
		default:
			result := value.(types.OrderResult)
			outcome.Result = &result
			report.Accepted++
		}

		report.Outcomes = append(report.Outcomes, outcome)

		if onProcessOrder.IsSome() {
			if err := onProcessOrder.Unwrap()(i+1, total); err != nil {
				return report, err
			}
		}
	}

	_, err := r.registry.Do(r.token, "", func(b *broker.Broker) (any, error) {
		if b.Stopped() {
			return nil, nil
		}

		return nil, b.StopBacktest(ctx)
	})
	if err != nil {
		return report, err
	}

	r.logger.Info("Replay finished",
		zap.String("token", r.token),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected),
	)

	return report, nil
}

func place(ctx context.Context, b *broker.Broker, order Order) (types.OrderResult, error) {
	switch order.Side {
	case types.PurchaseTypeBuy:
		return b.Buy(ctx, order.Security, order.limit(), order.Shares, order.Time)
	case types.PurchaseTypeSell:
		return b.Sell(ctx, order.Security, order.limit(), order.Shares, order.Time)
	default:
		return types.OrderResult{}, errors.Newf(errors.ErrCodeBadParameter, "unknown order side %q", order.Side)
	}
}
