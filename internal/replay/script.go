package replay

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Order is one line of an order script.
type Order struct {
	// RequestID makes the order idempotent. Orders sharing an id are placed once.
	RequestID string             `yaml:"request_id,omitempty"`
	Side      types.PurchaseType `yaml:"side" validate:"required,oneof=BUY SELL"`
	Security  string             `yaml:"security" validate:"required"`
	Shares    float64            `yaml:"shares" validate:"gt=0"`
	// Price is the limit price. A market order leaves it out.
	Price *float64  `yaml:"price,omitempty" validate:"omitempty,gt=0"`
	Time  time.Time `yaml:"time" validate:"required"`
}

func (o Order) limit() optional.Option[float64] {
	if o.Price == nil {
		return optional.None[float64]()
	}

	return optional.Some(*o.Price)
}

// Script is a sequence of orders replayed against one account.
type Script struct {
	Orders []Order `yaml:"orders" validate:"dive"`
}

// LoadScript parses and validates a YAML order script.
func LoadScript(data []byte) (Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return Script{}, errors.Wrap(errors.ErrCodeInvalidConfig, "failed to parse order script", err)
	}

	if err := validator.New().Struct(script); err != nil {
		return Script{}, errors.Wrap(errors.ErrCodeInvalidConfig, "invalid order script", err)
	}

	return script, nil
}
