package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-broker/internal/types"
)

// DataGenerator generates minute-bar sessions for testing.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how sessions are generated.
type GeneratorConfig struct {
	// Symbol is the security code (e.g., "600000.XSHG")
	Symbol string
	// Days are the sessions to generate, one per day
	Days []time.Time
	// MinutesPerSession is the number of minute bars per session
	MinutesPerSession int
	// InitialPrice is the previous close before the first session
	InitialPrice float64
	// Volatility controls price movement per bar (0.002 = 0.2%)
	Volatility float64
	// LimitRate is the daily price limit as a fraction of the previous close
	LimitRate float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
}

// Session is one generated trading day.
type Session struct {
	Day    time.Time
	Limits types.PriceLimits
	Bars   []types.Bar
}

// SessionLoader is the part of an in-memory feed the generator fills.
type SessionLoader interface {
	AddBars(security string, bars ...types.Bar)
	SetPriceLimits(security string, limits types.PriceLimits)
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:            "600000.XSHG",
		MinutesPerSession: 240,
		InitialPrice:      10.0,
		Volatility:        0.002,
		LimitRate:         0.1,
		VolumeBase:        10000,
		VolumeVariance:    0.3,
	}
}

// Generate creates one session per configured day.
// Prices follow a geometric Brownian motion clamped to the daily limits.
func (g *DataGenerator) Generate(config GeneratorConfig) []Session {
	sessions := make([]Session, 0, len(config.Days))
	prevClose := config.InitialPrice

	for _, day := range config.Days {
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		limits := types.PriceLimits{
			Date:      day,
			BuyLimit:  roundToDecimals(prevClose*(1+config.LimitRate), 2),
			SellLimit: roundToDecimals(prevClose*(1-config.LimitRate), 2),
		}

		bars := make([]types.Bar, config.MinutesPerSession)
		price := prevClose

		for i := range bars {
			// Using Box-Muller transform for normal distribution
			u1 := g.rng.Float64()
			u2 := g.rng.Float64()
			z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

			price = price * (1 + config.Volatility*z)
			price = math.Min(math.Max(price, limits.SellLimit), limits.BuyLimit)

			volumeVariation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance
			volume := config.VolumeBase * volumeVariation
			if volume < 0 {
				volume = config.VolumeBase * 0.1
			}

			bars[i] = types.Bar{
				Time:   sessionMinute(day, i),
				Price:  roundToDecimals(price, 2),
				Volume: math.Round(volume),
			}
		}

		if len(bars) > 0 {
			prevClose = bars[len(bars)-1].Price
		}

		sessions = append(sessions, Session{Day: day, Limits: limits, Bars: bars})
	}

	return sessions
}

// Load adds the sessions of symbol to loader.
func Load(loader SessionLoader, symbol string, sessions []Session) {
	for _, session := range sessions {
		loader.AddBars(symbol, session.Bars...)
		loader.SetPriceLimits(symbol, session.Limits)
	}
}

// sessionMinute returns the time of the i-th bar: a morning session from 9:31
// and an afternoon session from 13:01, 120 minutes each.
func sessionMinute(day time.Time, i int) time.Time {
	if i < 120 {
		return day.Add(9*time.Hour + time.Duration(31+i)*time.Minute)
	}

	return day.Add(13*time.Hour + time.Duration(1+i-120)*time.Minute)
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
