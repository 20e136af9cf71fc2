package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/moznion/go-optional"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/argo-broker/internal/broker"
	"github.com/rxtech-lab/argo-broker/internal/calendar"
	"github.com/rxtech-lab/argo-broker/internal/feed"
	"github.com/rxtech-lab/argo-broker/internal/logger"
	"github.com/rxtech-lab/argo-broker/internal/registry"
	"github.com/rxtech-lab/argo-broker/internal/replay"
	"github.com/rxtech-lab/argo-broker/internal/types"
	"github.com/rxtech-lab/argo-broker/internal/version"
	"github.com/rxtech-lab/argo-broker/mocks"
	"github.com/rxtech-lab/argo-broker/pkg/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// replayAction replays an order script against parquet market data and writes
// the report, metrics and bills to the output directory.
func replayAction(ctx context.Context, cmd *cli.Command) error {
	level := zapcore.InfoLevel
	if cmd.Bool("verbose") {
		level = zapcore.DebugLevel
	}

	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	configData, err := os.ReadFile(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	config, err := broker.LoadConfig(configData)
	if err != nil {
		return err
	}

	scriptData, err := os.ReadFile(cmd.String("orders"))
	if err != nil {
		return fmt.Errorf("failed to read order script: %w", err)
	}

	script, err := replay.LoadScript(scriptData)
	if err != nil {
		return err
	}

	source, err := feed.NewDuckDBFeed(feed.DuckDBConfig{
		MarketDataPath:  cmd.String("market-data"),
		PriceLimitsPath: cmd.String("price-limits"),
		DRFactorsPath:   cmd.String("dr-factors"),
		LimitRate:       cmd.Float("limit-rate"),
	}, log)
	if err != nil {
		return err
	}
	defer source.Close()

	cal, err := source.Calendar(ctx)
	if err != nil {
		return err
	}

	metricsRegistry := prometheus.NewRegistry()
	reg := registry.NewRegistry(broker.Deps{
		Calendar:  cal,
		Feed:      feed.NewCachedFeed(source),
		Logger:    log,
		Collector: broker.NewCollector(metricsRegistry),
	}, registry.DefaultRequestTTL)

	stateDir := cmd.String("state")
	if stateDir != "" {
		if err := reg.LoadAll(ctx, stateDir); err != nil {
			return err
		}
	}

	account, err := reg.Create(config.Name, config)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(script.Orders),
		progressbar.OptionSetDescription(fmt.Sprintf("Replaying %s", config.Name)),
		progressbar.OptionShowCount(),
	)
	onProcessOrder := replay.OnProcessOrderCallback(func(current int, total int) error {
		return bar.Set(current)
	})

	report, err := replay.NewRunner(reg, account.Token, log).Run(ctx, script, optional.Some(onProcessOrder))
	if err != nil {
		return err
	}

	_ = bar.Finish()

	output := cmd.String("output")
	if err := os.MkdirAll(output, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeYAML(filepath.Join(output, "report.yaml"), report); err != nil {
		return err
	}

	metrics, err := account.Broker.Metrics(ctx, optional.None[time.Time](), optional.None[time.Time](), optional.None[string]())
	if err != nil {
		return err
	}

	if err := types.WriteMetrics(filepath.Join(output, "metrics.yaml"), metrics); err != nil {
		return err
	}

	bills, err := account.Broker.Bills()
	if err != nil {
		return err
	}

	if err := broker.WriteBills(ctx, bills, filepath.Join(output, "bills"), log); err != nil {
		return err
	}

	if err := prometheus.WriteToTextfile(filepath.Join(output, "orders.prom"), metricsRegistry); err != nil {
		return fmt.Errorf("failed to write order counters: %w", err)
	}

	if stateDir != "" {
		if err := reg.SaveAll(ctx, stateDir); err != nil {
			return err
		}
	}

	log.Info("Replay written",
		zap.String("output", output),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected),
		zap.Float64("total_profit_rate", metrics.TotalProfitRate),
	)

	return nil
}

func writeYAML(path string, value any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	var (
		schema string
		err    error
	)

	switch kind := cmd.String("kind"); kind {
	case "account":
		config := broker.EmptyConfig()
		schema, err = config.GenerateSchemaJSON()
	case "feed":
		schema, err = utils.GetSchemaFromConfig(feed.DuckDBConfig{})
	case "orders":
		schema, err = utils.GetSchemaFromConfig(replay.Script{})
	default:
		return fmt.Errorf("unknown schema kind %q, want account, feed or orders", kind)
	}

	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

// generateAction writes synthetic minute bars and price limits of one security
// as the parquet files read by replay.
func generateAction(_ context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	days := calendar.NewWeekdayCalendar().TradingDays(cmd.Timestamp("start"), cmd.Timestamp("end"))
	if len(days) == 0 {
		return fmt.Errorf("no trading day between %s and %s",
			cmd.Timestamp("start").Format(time.DateOnly), cmd.Timestamp("end").Format(time.DateOnly))
	}

	config := mocks.DefaultConfig()
	config.Symbol = cmd.String("security")
	config.Days = days
	config.InitialPrice = cmd.Float("price")

	sessions := mocks.NewDataGenerator(int64(cmd.Int("seed"))).Generate(config)

	writer, err := feed.NewParquetWriter(log)
	if err != nil {
		return err
	}
	defer writer.Close()

	bar := progressbar.NewOptions(len(sessions),
		progressbar.OptionSetDescription(fmt.Sprintf("Generating %s", config.Symbol)),
		progressbar.OptionShowCount(),
	)

	for _, session := range sessions {
		for _, b := range session.Bars {
			if err := writer.WriteBar(config.Symbol, b); err != nil {
				return err
			}
		}

		if err := writer.WritePriceLimits(config.Symbol, session.Limits); err != nil {
			return err
		}

		_ = bar.Add(1)
	}

	paths, err := writer.Finalize(cmd.String("output"))
	if err != nil {
		return err
	}

	log.Info("Market data generated",
		zap.String("market_data", paths.MarketDataPath),
		zap.String("price_limits", paths.PriceLimitsPath),
		zap.Int("sessions", len(sessions)),
	)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "broker",
		Usage:   "Simulate a brokerage account against historical minute bars",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "replay",
				Usage: "Replay an order script and export metrics and bills",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the account config YAML",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "orders",
						Aliases:  []string{"o"},
						Usage:    "Path to the order script YAML",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "market-data",
						Aliases:  []string{"m"},
						Usage:    "Parquet file of minute bars",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "price-limits",
						Usage: "Parquet file of daily limit prices",
					},
					&cli.StringFlag{
						Name:  "dr-factors",
						Usage: "Parquet file of cumulative ex-rights factors",
					},
					&cli.FloatFlag{
						Name:  "limit-rate",
						Usage: "Daily price limit as a fraction of the previous close, used without a price limits file",
						Value: 0.1,
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Directory for the report, metrics and bills",
						Value: "results",
					},
					&cli.StringFlag{
						Name:  "state",
						Usage: "Directory of saved accounts to load before and save after the replay",
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Log every order",
					},
				},
				Action: replayAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of a config file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Schema to print: account, feed or orders",
						Value: "account",
					},
				},
				Action: schemaAction,
			},
			{
				Name:  "generate",
				Usage: "Generate synthetic minute bars as parquet files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "security",
						Aliases:  []string{"s"},
						Usage:    "Security code",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:     "start",
						Usage:    "First day in `YYYY-MM-DD` format",
						Required: true,
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
					&cli.TimestampFlag{
						Name:     "end",
						Usage:    "Last day in `YYYY-MM-DD` format",
						Required: true,
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
					&cli.FloatFlag{
						Name:  "price",
						Usage: "Close before the first session",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "seed",
						Usage: "Random seed",
						Value: 1,
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Directory for the parquet files",
						Value: "data",
					},
				},
				Action: generateAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
