// Package collector holds the price source adapters and the registry that
// orders them by configured priority.
package collector

import "time"

// Config describes one price source. Sources sharing a provider are told
// apart by Name, e.g. the same quote API on two exchanges.
type Config struct {
	Name     string        `mapstructure:"name"`
	Provider string        `mapstructure:"provider"`
	Suffix   string        `mapstructure:"suffix"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}
