package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/internal/logging"
	"github.com/rustyeddy/futbridge/market"
)

// Config is the bridge configuration.
type Config struct {
	Log     LogConfig     `json:"log" yaml:"log"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Orders  OrdersConfig  `json:"orders" yaml:"orders"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Monitor MonitorConfig `json:"monitor" yaml:"monitor"`
	Sim     SimConfig     `json:"sim" yaml:"sim"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// ServerConfig selects the trading system to connect to.
type ServerConfig struct {
	ServersFile string `json:"servers_file" yaml:"servers_file"`
	// Name is "<system>_<gateway>" as listed by the servers file.
	Name       string `json:"name" yaml:"name"`
	User       string `json:"user,omitempty" yaml:"user,omitempty"`
	AppName    string `json:"app_name" yaml:"app_name"`
	AppVersion string `json:"app_version" yaml:"app_version"`
}

// OrdersConfig holds the per-login order defaults and the wait bounds.
type OrdersConfig struct {
	DefaultDuration  string `json:"default_duration" yaml:"default_duration"`
	Wait             string `json:"wait" yaml:"wait"` // e.g. "60s"
	QuoteTimeout     string `json:"quote_timeout" yaml:"quote_timeout"`
	PnlReplayTimeout string `json:"pnl_replay_timeout" yaml:"pnl_replay_timeout"`
	Capacity         int    `json:"capacity" yaml:"capacity"`
}

func (o OrdersConfig) WaitDuration() (time.Duration, error) {
	return parseDuration("orders.wait", o.Wait)
}

func (o OrdersConfig) QuoteTimeoutDuration() (time.Duration, error) {
	return parseDuration("orders.quote_timeout", o.QuoteTimeout)
}

func (o OrdersConfig) PnlReplayTimeoutDuration() (time.Duration, error) {
	return parseDuration("orders.pnl_replay_timeout", o.PnlReplayTimeout)
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrap(err, field)
	}
	return d, nil
}

// JournalConfig enables the SQLite journal when DBPath is set.
type JournalConfig struct {
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

type MonitorConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Interval string `json:"interval,omitempty" yaml:"interval,omitempty"`
}

func (m MonitorConfig) IntervalDuration() (time.Duration, error) {
	return parseDuration("monitor.interval", m.Interval)
}

// SimConfig seeds the simulated gateway.
type SimConfig struct {
	Account     string          `json:"account" yaml:"account"`
	Balance     float64         `json:"balance" yaml:"balance"`
	Seed        int64           `json:"seed" yaml:"seed"`
	Instruments []SimInstrument `json:"instruments" yaml:"instruments"`
}

type SimInstrument struct {
	Symbol     string  `json:"symbol" yaml:"symbol"` // TICKER.EXCHANGE
	Price      float64 `json:"price" yaml:"price"`
	Tick       float64 `json:"tick" yaml:"tick"`
	PointValue float64 `json:"point_value" yaml:"point_value"`
}

// LoadFromFile loads configuration from a file (YAML, or JSON as a fallback).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "parse config (tried YAML and JSON)")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid config")
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML or JSON by extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.WithMessage(err, "log.level")
	}
	if c.Server.AppName == "" {
		return errors.New("server.app_name is required")
	}
	switch gateway.Duration(c.Orders.DefaultDuration) {
	case gateway.DurationDay, gateway.DurationGTC, gateway.DurationFOK, gateway.DurationIOC:
	default:
		return errors.Errorf("orders.default_duration must be one of DAY, GTC, FOK, IOC")
	}
	for _, d := range []func() (time.Duration, error){
		c.Orders.WaitDuration, c.Orders.QuoteTimeoutDuration, c.Orders.PnlReplayTimeoutDuration, c.Monitor.IntervalDuration,
	} {
		v, err := d()
		if err != nil {
			return err
		}
		if v < 0 {
			return errors.New("durations must not be negative")
		}
	}
	if c.Orders.Capacity < 0 {
		return errors.New("orders.capacity must not be negative")
	}
	for _, in := range c.Sim.Instruments {
		if _, err := market.ParseAsset(in.Symbol); err != nil {
			return errors.WithMessage(err, "sim.instruments")
		}
		if in.Price <= 0 || in.Tick <= 0 {
			return errors.Errorf("sim instrument %s: price and tick must be positive", in.Symbol)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			ServersFile: "rithmic.bin",
			Name:        "Rithmic Test_Chicago Area",
			AppName:     "futbridge",
			AppVersion:  "1.0.0",
		},
		Orders: OrdersConfig{
			DefaultDuration:  string(gateway.DurationIOC),
			Wait:             "60s",
			QuoteTimeout:     "10s",
			PnlReplayTimeout: "10s",
		},
		Journal: JournalConfig{DBPath: "./futbridge.sqlite"},
		Metrics: MetricsConfig{Addr: ":9464"},
		Monitor: MonitorConfig{Addr: ":8765", Interval: "1s"},
		Sim: SimConfig{
			Account: "SIM-001",
			Balance: 100000,
			Seed:    1,
			Instruments: []SimInstrument{
				{Symbol: "ESZ6.CME", Price: 4500, Tick: 0.25, PointValue: 50},
				{Symbol: "NQZ6.CME", Price: 15800, Tick: 0.25, PointValue: 20},
				{Symbol: "CLZ6.NYMEX", Price: 78.5, Tick: 0.01, PointValue: 1000},
			},
		},
	}
}
