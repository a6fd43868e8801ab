// Package notifier pushes raised signals to external channels after a
// signal run.
package notifier

import (
	"context"

	"github.com/newthinker/tally/internal/signal"
)

// Config configures one notifier. Fields not used by Type are ignored.
type Config struct {
	Type     string            `mapstructure:"type"` // "webhook" or "telegram"
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
	BotToken string            `mapstructure:"bot_token"`
	ChatID   string            `mapstructure:"chat_id"`
}

// Notifier defines the interface for signal notification
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Send delivers the raised verdicts of one run in a single message
	Send(ctx context.Context, verdicts []signal.Verdict) error
}

// Raised returns the verdicts with at least one rule firing
func Raised(verdicts []signal.Verdict) []signal.Verdict {
	var out []signal.Verdict
	for _, v := range verdicts {
		if v.Sell || v.Alert || v.BreakoutMet {
			out = append(out, v)
		}
	}
	return out
}

// Flags lists the rules a verdict fired, e.g. "SELL, ALERT"
func Flags(v signal.Verdict) []string {
	var flags []string
	if v.Sell {
		flags = append(flags, "SELL")
	}
	if v.Alert {
		flags = append(flags, "ALERT")
	}
	if v.BreakoutMet {
		flags = append(flags, "BREAKOUT")
	}
	return flags
}
