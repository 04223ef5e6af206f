package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"confluence-trading-bot/internal/risk"
)

// Config is the single immutable configuration struct, validated at startup.
type Config struct {
	Mode   string `yaml:"mode"`   // DRY_RUN or LIVE
	Broker string `yaml:"broker"` // SIM or BINANCE

	Instruments []string `yaml:"instruments"`
	Timeframe   string   `yaml:"timeframe"`
	BarCount    int      `yaml:"bar_count"`

	SignalCycleSeconds  int `yaml:"signal_cycle_seconds"`
	RiskCycleSeconds    int `yaml:"risk_cycle_seconds"`
	CycleTimeoutSeconds int `yaml:"cycle_timeout_seconds"`

	ConfidenceFloor float64 `yaml:"confidence_floor"`

	Stops struct {
		ATRStopMult       float64 `yaml:"atr_stop_mult"`
		ATRTargetMult     float64 `yaml:"atr_target_mult"`
		StrongStrength    float64 `yaml:"strong_strength"`
		StrongTargetBoost float64 `yaml:"strong_target_boost"`
		MinDistancePct    float64 `yaml:"min_distance_pct"`
		BaseVolume        float64 `yaml:"base_volume"`
		MaxVolume         float64 `yaml:"max_volume"`
	} `yaml:"stops"`

	Risk risk.Config `yaml:"risk"`

	Reconnect struct {
		BackoffSeconds int `yaml:"backoff_seconds"`
		MaxAttempts    int `yaml:"max_attempts"`
	} `yaml:"reconnect"`

	Oracle struct {
		Enabled           bool    `yaml:"enabled"`
		Provider          string  `yaml:"provider"` // CLAUDE or NOOP
		Model             string  `yaml:"model"`
		MaxTokens         int     `yaml:"max_tokens"`
		Temperature       float32 `yaml:"temperature"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		MinConfidencePct  float64 `yaml:"min_confidence_pct"`
		System            string  `yaml:"system"`
	} `yaml:"oracle"`

	Notifier struct {
		Provider string `yaml:"provider"` // TELEGRAM or LOG
	} `yaml:"notifier"`

	News struct {
		Enabled      bool `yaml:"enabled"`
		CacheMinutes int  `yaml:"cache_minutes"`
		MaxHeadlines int  `yaml:"max_headlines"`
	} `yaml:"news"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Broker != "SIM" && c.Broker != "BINANCE" {
		return fmt.Errorf("invalid broker '%s': must be 'SIM' or 'BINANCE'", c.Broker)
	}
	if len(c.Instruments) == 0 {
		return errors.New("instruments cannot be empty")
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence_floor must be within [0,1], got %.2f", c.ConfidenceFloor)
	}
	if c.SignalCycleSeconds <= 0 || c.RiskCycleSeconds <= 0 {
		return errors.New("signal_cycle_seconds and risk_cycle_seconds must be positive")
	}
	if c.Risk.MinStepPips <= 0 {
		return fmt.Errorf("risk.min_step_pips must be positive, got %.2f", c.Risk.MinStepPips)
	}
	for _, m := range []struct {
		name   string
		params risk.ModeParams
	}{
		{"conservative", c.Risk.Conservative},
		{"protective", c.Risk.Protective},
	} {
		if m.params.BreakevenTriggerPips <= 0 || m.params.TrailingTriggerPips <= 0 {
			return fmt.Errorf("risk.%s trigger pips must be positive", m.name)
		}
		if m.params.TrailingDistancePips <= 0 {
			return fmt.Errorf("risk.%s.trailing_distance_pips must be positive", m.name)
		}
	}
	if c.Oracle.Enabled && c.Oracle.Provider != "CLAUDE" && c.Oracle.Provider != "NOOP" {
		return fmt.Errorf("oracle.provider must be 'CLAUDE' or 'NOOP', got '%s'", c.Oracle.Provider)
	}
	return nil
}

// LoadConfig reads, defaults and validates the yaml config at path.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Broker == "" {
		c.Broker = "SIM"
	}
	if c.Timeframe == "" {
		c.Timeframe = "1m"
	}
	if c.BarCount == 0 {
		c.BarCount = 120
	}
	if c.SignalCycleSeconds == 0 {
		c.SignalCycleSeconds = 60
	}
	if c.RiskCycleSeconds == 0 {
		c.RiskCycleSeconds = 35
	}
	if c.CycleTimeoutSeconds == 0 {
		c.CycleTimeoutSeconds = 30
	}
	if c.ConfidenceFloor == 0 {
		c.ConfidenceFloor = 0.3
	}

	def := risk.DefaultConfig()
	if c.Risk.Conservative == (risk.ModeParams{}) {
		c.Risk.Conservative = def.Conservative
	}
	if c.Risk.Protective == (risk.ModeParams{}) {
		c.Risk.Protective = def.Protective
	}
	if c.Risk.MinStepPips == 0 {
		c.Risk.MinStepPips = def.MinStepPips
	}
	if c.Risk.ProtectiveThresholdPips == 0 {
		c.Risk.ProtectiveThresholdPips = def.ProtectiveThresholdPips
	}
	if c.Risk.ProtectiveThresholdUSD == 0 {
		c.Risk.ProtectiveThresholdUSD = def.ProtectiveThresholdUSD
	}
	if c.Risk.DefaultPipSize == 0 {
		c.Risk.DefaultPipSize = def.DefaultPipSize
	}

	if c.Stops.ATRStopMult == 0 {
		c.Stops.ATRStopMult = 1.0
	}
	if c.Stops.ATRTargetMult == 0 {
		c.Stops.ATRTargetMult = 2.0
	}
	if c.Stops.StrongStrength == 0 {
		c.Stops.StrongStrength = 0.8
	}
	if c.Stops.StrongTargetBoost == 0 {
		c.Stops.StrongTargetBoost = 1.5
	}
	if c.Stops.MinDistancePct == 0 {
		c.Stops.MinDistancePct = 0.002
	}
	if c.Stops.BaseVolume == 0 {
		c.Stops.BaseVolume = 0.01
	}
	if c.Stops.MaxVolume == 0 {
		c.Stops.MaxVolume = 0.10
	}

	if c.Reconnect.BackoffSeconds == 0 {
		c.Reconnect.BackoffSeconds = 15
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = 3
	}

	if c.Oracle.TimeoutSeconds == 0 {
		c.Oracle.TimeoutSeconds = 60
	}
	if c.Oracle.MinConfidencePct == 0 {
		c.Oracle.MinConfidencePct = 70
	}
	if c.Oracle.MaxTokens == 0 {
		c.Oracle.MaxTokens = 1024
	}
	if c.Oracle.Provider == "" {
		c.Oracle.Provider = "NOOP"
	}

	if c.Notifier.Provider == "" {
		c.Notifier.Provider = "LOG"
	}
	if c.News.CacheMinutes == 0 {
		c.News.CacheMinutes = 30
	}
	if c.News.MaxHeadlines == 0 {
		c.News.MaxHeadlines = 10
	}
}
