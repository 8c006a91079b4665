// Package config loads simulator settings from an optional YAML file
// with environment-variable overrides.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full simulator configuration.
type Config struct {
	Symbol       string
	InitialPrice float64

	SimulationDuration time.Duration
	TickInterval       time.Duration

	Drift         float64
	Volatility    float64
	TimeStepYears float64
	HistoryWindow int
	Seed          int64

	MarketMaker MarketMakerConfig
	Taker       TakerConfig

	SnapshotDepth    int
	SnapshotInterval int // ticks between archived snapshots, 0 disables
	ExportDir        string
	ArchiveDir       string

	KafkaBrokers []string
	FillTopic    string
	QuoteTopic   string

	MetricsAddr string
	LogLevel    string
}

type MarketMakerConfig struct {
	OrderSize     int64
	BaseSpreadBPS float64
	MinSpreadBPS  float64
	MaxSpreadBPS  float64
	DynamicSpread bool
	VolMultiplier float64
	VolLookback   int
	SkewBPS       float64
	PositionLimit float64
	MaxLoss       float64
	StopLoss      float64
}

type TakerConfig struct {
	Intensity float64 // probability of taker flow per tick
	MaxSize   int64
}

// Load reads path (optional, YAML) and the environment. Env vars use
// the HFTSIM prefix with underscores, e.g. HFTSIM_SYMBOL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HFTSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbol", "AAPL")
	v.SetDefault("initial_price", 150.0)
	v.SetDefault("simulation_duration", "2m")
	v.SetDefault("tick_interval", "10ms")

	v.SetDefault("drift", 0.05)
	v.SetDefault("volatility", 0.20)
	v.SetDefault("time_step_years", 1.0/252.0)
	v.SetDefault("history_window", 100)
	v.SetDefault("seed", 0)

	v.SetDefault("mm.order_size", 100)
	v.SetDefault("mm.base_spread_bps", 15.0)
	v.SetDefault("mm.min_spread_bps", 5.0)
	v.SetDefault("mm.max_spread_bps", 50.0)
	v.SetDefault("mm.dynamic_spread", true)
	v.SetDefault("mm.vol_multiplier", 2.0)
	v.SetDefault("mm.vol_lookback", 20)
	v.SetDefault("mm.skew_bps", 5.0)
	v.SetDefault("mm.position_limit", 500.0)
	v.SetDefault("mm.max_loss", 10000.0)
	v.SetDefault("mm.stop_loss", 5000.0)

	v.SetDefault("taker.intensity", 0.3)
	v.SetDefault("taker.max_size", 50)

	v.SetDefault("snapshot_depth", 10)
	v.SetDefault("snapshot_interval", 100)
	v.SetDefault("export_dir", "data")
	v.SetDefault("archive_dir", "")

	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("fill_topic", "fills")
	v.SetDefault("quote_topic", "quotes")

	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_level", "info")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Symbol:             v.GetString("symbol"),
		InitialPrice:       v.GetFloat64("initial_price"),
		SimulationDuration: v.GetDuration("simulation_duration"),
		TickInterval:       v.GetDuration("tick_interval"),
		Drift:              v.GetFloat64("drift"),
		Volatility:         v.GetFloat64("volatility"),
		TimeStepYears:      v.GetFloat64("time_step_years"),
		HistoryWindow:      v.GetInt("history_window"),
		Seed:               v.GetInt64("seed"),
		MarketMaker: MarketMakerConfig{
			OrderSize:     v.GetInt64("mm.order_size"),
			BaseSpreadBPS: v.GetFloat64("mm.base_spread_bps"),
			MinSpreadBPS:  v.GetFloat64("mm.min_spread_bps"),
			MaxSpreadBPS:  v.GetFloat64("mm.max_spread_bps"),
			DynamicSpread: v.GetBool("mm.dynamic_spread"),
			VolMultiplier: v.GetFloat64("mm.vol_multiplier"),
			VolLookback:   v.GetInt("mm.vol_lookback"),
			SkewBPS:       v.GetFloat64("mm.skew_bps"),
			PositionLimit: v.GetFloat64("mm.position_limit"),
			MaxLoss:       v.GetFloat64("mm.max_loss"),
			StopLoss:      v.GetFloat64("mm.stop_loss"),
		},
		Taker: TakerConfig{
			Intensity: v.GetFloat64("taker.intensity"),
			MaxSize:   v.GetInt64("taker.max_size"),
		},
		SnapshotDepth:    v.GetInt("snapshot_depth"),
		SnapshotInterval: v.GetInt("snapshot_interval"),
		ExportDir:        v.GetString("export_dir"),
		ArchiveDir:       v.GetString("archive_dir"),
		KafkaBrokers:     v.GetStringSlice("kafka_brokers"),
		FillTopic:        v.GetString("fill_topic"),
		QuoteTopic:       v.GetString("quote_topic"),
		MetricsAddr:      v.GetString("metrics_addr"),
		LogLevel:         v.GetString("log_level"),
	}
}
