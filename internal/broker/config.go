package broker

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-broker/internal/broker/commission_fee"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultRiskFreeRate      = 0.03
	defaultAnnualTradingDays = 252
)

type Config struct {
	Name            string                   `yaml:"name" json:"name" validate:"required" jsonschema:"title=Name,description=Account name"`
	Principal       float64                  `yaml:"principal" json:"principal" validate:"gt=0" jsonschema:"title=Principal,description=Starting cash of the account,minimum=0"`
	Commission      float64                  `yaml:"commission" json:"commission" validate:"gte=0,lt=1" jsonschema:"title=Commission,description=Commission rate charged on trade value,minimum=0"`
	CommissionModel commission_fee.Model     `yaml:"commission_model" json:"commission_model" validate:"omitempty,oneof=rate zero" jsonschema:"title=Commission Model,description=How commission is charged"`
	Start           time.Time                `yaml:"start" json:"start" validate:"required" jsonschema:"title=Start,description=First day of the backtest window"`
	End             time.Time                `yaml:"end" json:"end" validate:"required" jsonschema:"title=End,description=Last day of the backtest window"`
	RiskFreeRate    optional.Option[float64] `yaml:"risk_free_rate" json:"risk_free_rate" jsonschema:"title=Risk Free Rate,description=Annual risk free rate used by sharpe and sortino"`
	// AnnualTradingDays is the number of sessions per year used to annualize metrics.
	AnnualTradingDays optional.Option[int]    `yaml:"annual_trading_days" json:"annual_trading_days" jsonschema:"title=Annual Trading Days,description=Sessions per year used to annualize metrics"`
	Baseline          optional.Option[string] `yaml:"baseline" json:"baseline" jsonschema:"title=Baseline,description=Security whose returns are reported next to the account"`
}

// UnmarshalYAML implements custom unmarshaling for Config
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type config struct {
		Name              string               `yaml:"name"`
		Principal         float64              `yaml:"principal"`
		Commission        float64              `yaml:"commission"`
		CommissionModel   commission_fee.Model `yaml:"commission_model"`
		Start             time.Time            `yaml:"start"`
		End               time.Time            `yaml:"end"`
		RiskFreeRate      *float64             `yaml:"risk_free_rate"`
		AnnualTradingDays *int                 `yaml:"annual_trading_days"`
		Baseline          *string              `yaml:"baseline"`
	}

	var raw config
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Name = raw.Name
	c.Principal = raw.Principal
	c.Commission = raw.Commission
	c.Start = raw.Start
	c.End = raw.End

	if raw.CommissionModel != "" {
		c.CommissionModel = raw.CommissionModel
	}

	if raw.RiskFreeRate != nil {
		c.RiskFreeRate = optional.Some(*raw.RiskFreeRate)
	}

	if raw.AnnualTradingDays != nil {
		c.AnnualTradingDays = optional.Some(*raw.AnnualTradingDays)
	}

	if raw.Baseline != nil {
		c.Baseline = optional.Some(*raw.Baseline)
	}

	return nil
}

// Validate checks the config, returning an ErrCodeInvalidConfig error.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, "invalid broker config", err)
	}

	if c.End.Before(c.Start) {
		return errors.Newf(errors.ErrCodeInvalidConfig, "end %s is before start %s",
			c.End.Format(time.DateOnly), c.Start.Format(time.DateOnly))
	}

	if days := c.AnnualTradingDays.TakeOr(defaultAnnualTradingDays); days <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfig, "annual trading days must be positive, got %d", days)
	}

	return nil
}

func (c *Config) riskFreeRate() float64 {
	return c.RiskFreeRate.TakeOr(defaultRiskFreeRate)
}

func (c *Config) annualTradingDays() int {
	return c.AnnualTradingDays.TakeOr(defaultAnnualTradingDays)
}

func (c *Config) commissionFee() commission_fee.CommissionFee {
	model := c.CommissionModel
	if model == "" {
		model = commission_fee.ModelRate
	}

	return commission_fee.GetCommissionFeeHandler(model, c.Commission)
}

// GenerateSchema generates a JSON schema for the Config
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch {
			case t.String() == "optional.Option[float64]":
				return &jsonschema.Schema{Type: "number"}
			case t.String() == "optional.Option[int]":
				return &jsonschema.Schema{Type: "integer"}
			case t.String() == "optional.Option[string]":
				return &jsonschema.Schema{Type: "string"}
			case strings.Contains(t.String(), "commission_fee.Model"):
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllModels,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "broker-config"
	schema.Description = "Configuration schema for a backtest brokerage account"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the Config
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

func TestConfig(start time.Time, end time.Time, principal float64, commission float64) Config {
	return Config{
		Name:              "test",
		Principal:         principal,
		Commission:        commission,
		CommissionModel:   commission_fee.ModelRate,
		Start:             start,
		End:               end,
		RiskFreeRate:      optional.Some(0.0),
		AnnualTradingDays: optional.Some(defaultAnnualTradingDays),
		Baseline:          optional.None[string](),
	}
}

// EmptyConfig returns a Config with default values
func EmptyConfig() Config {
	return Config{
		Name:              "",
		Principal:         0,
		Commission:        0,
		CommissionModel:   commission_fee.ModelRate,
		Start:             time.Time{},
		End:               time.Time{},
		RiskFreeRate:      optional.None[float64](),
		AnnualTradingDays: optional.None[int](),
		Baseline:          optional.None[string](),
	}
}

// LoadConfig reads a YAML config.
func LoadConfig(data []byte) (Config, error) {
	config := EmptyConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, "failed to parse broker config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}
