// Package config provides configuration management for the wheel bot.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	yaml "gopkg.in/yaml.v3"
)

// Defaults applied when optional keys are unset
const (
	// defaultChainExpirations is the number of nearest expirations considered per selection
	defaultChainExpirations = 4
	// defaultChainStrikes is the number of nearest strikes considered per side
	defaultChainStrikes = 15
	// defaultOpenInterestPollInterval is the live open-interest re-poll interval
	defaultOpenInterestPollInterval = "2s"
)

// Config represents the complete application configuration.
type Config struct {
	Environment  EnvironmentConfig       `yaml:"environment"`
	Broker       BrokerConfig            `yaml:"broker"`
	Account      AccountConfig           `yaml:"account"`
	RollWhen     RollWhenConfig          `yaml:"roll_when"`
	Target       TargetConfig            `yaml:"target"`
	OptionChains OptionChainsConfig      `yaml:"option_chains"`
	Symbols      map[string]SymbolConfig `yaml:"symbols"`
	Schedule     ScheduleConfig          `yaml:"schedule"`
	Dashboard    DashboardConfig         `yaml:"dashboard"`
	Journal      JournalConfig           `yaml:"journal"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// BrokerConfig defines gateway API settings.
type BrokerConfig struct {
	APIEndpoint string `yaml:"api_endpoint"`
	APIKey      string `yaml:"api_key"`
	AccountID   string `yaml:"account_id"`
}

// AccountConfig defines account-level safety margins.
type AccountConfig struct {
	// MinimumCushion is the fraction of net liquidation withheld from
	// deployable buying power.
	MinimumCushion float64 `yaml:"minimum_cushion"`
}

// RollWhenConfig defines when an existing short option becomes roll-eligible.
// The two thresholds are independently sufficient.
type RollWhenConfig struct {
	DTE int     `yaml:"dte"` // roll at or below this many days to expiration
	PnL float64 `yaml:"pnl"` // roll at or above this profit fraction
}

// TargetConfig defines what a replacement contract must look like.
type TargetConfig struct {
	DTE                 int     `yaml:"dte"`   // minimum days to expiration for new contracts
	Delta               float64 `yaml:"delta"` // maximum absolute delta
	MinimumOpenInterest int64   `yaml:"minimum_open_interest"`
}

// OptionChainsConfig bounds how much of the chain the selector scans.
type OptionChainsConfig struct {
	Expirations int `yaml:"expirations"` // nearest expirations to consider
	Strikes     int `yaml:"strikes"`     // nearest strikes to consider per side
}

// SymbolConfig holds the per-symbol portfolio target.
type SymbolConfig struct {
	Weight float64 `yaml:"weight"`
}

// ScheduleConfig defines when management cycles run. An empty cron spec
// means run a single cycle and exit, matching the original behavior.
type ScheduleConfig struct {
	Cron                     string `yaml:"cron"`
	OpenInterestPollInterval string `yaml:"open_interest_poll_interval"`
	CycleTimeout             string `yaml:"cycle_timeout"`
}

// DashboardConfig defines the status server settings.
type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// JournalConfig defines where cycle reports are written.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}

	if c.Environment.Mode == "live" {
		if c.Broker.APIKey == "" {
			return fmt.Errorf("broker.api_key is required in live mode")
		}
		if c.Broker.AccountID == "" {
			return fmt.Errorf("broker.account_id is required in live mode")
		}
	}

	if c.Account.MinimumCushion < 0 || c.Account.MinimumCushion >= 1 {
		return fmt.Errorf("account.minimum_cushion must be in [0,1)")
	}

	if c.RollWhen.DTE < 0 {
		return fmt.Errorf("roll_when.dte must be >= 0")
	}
	if c.RollWhen.PnL <= 0 || c.RollWhen.PnL > 1 {
		return fmt.Errorf("roll_when.pnl must be in (0,1]")
	}

	if c.Target.DTE <= 0 {
		return fmt.Errorf("target.dte must be > 0")
	}
	if c.Target.Delta <= 0 || c.Target.Delta > 1 {
		return fmt.Errorf("target.delta must be in (0,1]")
	}
	if c.Target.MinimumOpenInterest < 0 {
		return fmt.Errorf("target.minimum_open_interest must be >= 0")
	}

	if c.OptionChains.Expirations <= 0 {
		return fmt.Errorf("option_chains.expirations must be > 0")
	}
	if c.OptionChains.Strikes <= 0 {
		return fmt.Errorf("option_chains.strikes must be > 0")
	}

	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must contain at least one entry")
	}
	// Weights need not sum to 1; they are used as given, but each must be
	// a positive fraction.
	for symbol, sc := range c.Symbols {
		if symbol == "" {
			return fmt.Errorf("symbols must not contain an empty symbol key")
		}
		if sc.Weight <= 0 || sc.Weight > 1 {
			return fmt.Errorf("symbols.%s.weight must be in (0,1]", symbol)
		}
	}

	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron invalid: %w", err)
		}
	}
	if _, err := c.OpenInterestPollInterval(); err != nil {
		return fmt.Errorf("schedule.open_interest_poll_interval invalid: %w", err)
	}
	if _, err := c.CycleTimeout(); err != nil {
		return fmt.Errorf("schedule.cycle_timeout invalid: %w", err)
	}

	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be a valid TCP port")
	}

	return nil
}

// IsPaperTrading returns true if the bot is configured for paper trading.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// HasSymbol reports whether the symbol is part of the configured portfolio.
func (c *Config) HasSymbol(symbol string) bool {
	_, ok := c.Symbols[symbol]
	return ok
}

// OpenInterestPollInterval returns the interval at which the selector
// re-polls live open interest while waiting for it to populate.
func (c *Config) OpenInterestPollInterval() (time.Duration, error) {
	return time.ParseDuration(c.Schedule.OpenInterestPollInterval)
}

// CycleTimeout returns the overall deadline for one management cycle.
// Zero means no deadline.
func (c *Config) CycleTimeout() (time.Duration, error) {
	if c.Schedule.CycleTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Schedule.CycleTimeout)
}

func (c *Config) applyDefaults() {
	if c.OptionChains.Expirations == 0 {
		c.OptionChains.Expirations = defaultChainExpirations
	}
	if c.OptionChains.Strikes == 0 {
		c.OptionChains.Strikes = defaultChainStrikes
	}
	if c.Schedule.OpenInterestPollInterval == "" {
		c.Schedule.OpenInterestPollInterval = defaultOpenInterestPollInterval
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "journal.json"
	}
}
