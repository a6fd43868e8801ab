package signal

import (
	"fmt"

	"github.com/newthinker/tally/internal/core"
)

// Config holds the thresholds of the sell/alert/breakout rules.
// Percentages are given in percent, 6.5 meaning 6.5%.
type Config struct {
	DropAlertPct float64 `mapstructure:"drop_alert_pct"`
	EMABelowPct  float64 `mapstructure:"ema_below_pct"`
	RSIThreshold float64 `mapstructure:"rsi_threshold"`
	BreakoutPct  float64 `mapstructure:"breakout_pct"`
	EMAPeriod    int     `mapstructure:"ema_period"`
	RSIPeriod    int     `mapstructure:"rsi_period"`
}

// DefaultConfig returns the standard EMA50 / RSI9 rule set
func DefaultConfig() Config {
	return Config{
		DropAlertPct: 6.5,
		EMABelowPct:  6.5,
		RSIThreshold: 29,
		BreakoutPct:  25,
		EMAPeriod:    50,
		RSIPeriod:    9,
	}
}

// Validate checks the thresholds are usable
func (c Config) Validate() error {
	if c.EMAPeriod < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ema_period must be positive, got %d", c.EMAPeriod))
	}
	if c.RSIPeriod < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("rsi_period must be positive, got %d", c.RSIPeriod))
	}
	if c.RSIThreshold < 0 || c.RSIThreshold > 100 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("rsi_threshold must be between 0 and 100, got %f", c.RSIThreshold))
	}
	if c.EMABelowPct < 0 || c.EMABelowPct >= 100 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ema_below_pct must be in [0, 100), got %f", c.EMABelowPct))
	}
	if c.DropAlertPct < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("drop_alert_pct cannot be negative, got %f", c.DropAlertPct))
	}
	if c.BreakoutPct < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("breakout_pct cannot be negative, got %f", c.BreakoutPct))
	}
	return nil
}
