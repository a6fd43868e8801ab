package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/tally/internal/collector"
	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/notifier"
	"github.com/newthinker/tally/internal/pricing"
	"github.com/newthinker/tally/internal/signal"
	"github.com/newthinker/tally/internal/storage/archive"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. TALLY_POOL_WORKERS
const EnvPrefix = "TALLY"

type Config struct {
	Horizon   HorizonConfig      `mapstructure:"horizon"`
	Sources   []collector.Config `mapstructure:"sources"`
	Manual    ManualConfig       `mapstructure:"manual"`
	Signal    signal.Config      `mapstructure:"signal"`
	Notifiers []notifier.Config  `mapstructure:"notifiers"`
	Pool      PoolConfig         `mapstructure:"pool"`
	Storage   archive.Config     `mapstructure:"storage"`
	Metrics   MetricsConfig      `mapstructure:"metrics"`
	Log       LogConfig          `mapstructure:"log"`
}

// HorizonConfig bounds the valuation window. Empty or "today" End means
// the current day.
type HorizonConfig struct {
	Start        string `mapstructure:"start"`
	End          string `mapstructure:"end"`
	LookbackDays int    `mapstructure:"lookback_days"`
}

// ManualConfig locates the manual price override files
type ManualConfig struct {
	Path      string `mapstructure:"path"`
	GapPolicy string `mapstructure:"gap_policy"` // "zero" or "unresolved"
}

// PoolConfig sizes the per-instrument worker pool
type PoolConfig struct {
	Workers        int           `mapstructure:"workers"`
	RetryCount     int           `mapstructure:"retry_count"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	SubmitInterval time.Duration `mapstructure:"submit_interval"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if !v.IsSet("sources") {
		cfg.Sources = Defaults().Sources
	}

	return &cfg, nil
}

// setDefaults registers every scalar default so env overrides apply to
// keys the file does not mention.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("horizon.start", d.Horizon.Start)
	v.SetDefault("horizon.end", d.Horizon.End)
	v.SetDefault("horizon.lookback_days", d.Horizon.LookbackDays)
	v.SetDefault("manual.path", d.Manual.Path)
	v.SetDefault("manual.gap_policy", d.Manual.GapPolicy)
	v.SetDefault("signal.drop_alert_pct", d.Signal.DropAlertPct)
	v.SetDefault("signal.ema_below_pct", d.Signal.EMABelowPct)
	v.SetDefault("signal.rsi_threshold", d.Signal.RSIThreshold)
	v.SetDefault("signal.breakout_pct", d.Signal.BreakoutPct)
	v.SetDefault("signal.ema_period", d.Signal.EMAPeriod)
	v.SetDefault("signal.rsi_period", d.Signal.RSIPeriod)
	v.SetDefault("pool.workers", d.Pool.Workers)
	v.SetDefault("pool.retry_count", d.Pool.RetryCount)
	v.SetDefault("pool.retry_backoff", d.Pool.RetryBackoff)
	v.SetDefault("pool.submit_interval", d.Pool.SubmitInterval)
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("log.development", d.Log.Development)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Horizon: HorizonConfig{
			End:          "today",
			LookbackDays: 365,
		},
		Sources: []collector.Config{
			{Name: "nse", Provider: "yahoo", Suffix: ".NS"},
			{Name: "bse", Provider: "yahoo", Suffix: ".BO"},
		},
		Manual: ManualConfig{
			Path:      "manual",
			GapPolicy: pricing.GapZero.String(),
		},
		Signal: signal.DefaultConfig(),
		Pool: PoolConfig{
			Workers:        20,
			RetryCount:     3,
			RetryBackoff:   time.Second,
			SubmitInterval: 200 * time.Millisecond,
		},
		Storage: archive.Config{
			Type: "localfs",
			Path: ".",
		},
	}
}

// Window resolves the horizon against asOf. Start is the zero time when
// unset, meaning "from the first transaction".
func (h HorizonConfig) Window(asOf time.Time) (start, end time.Time, err error) {
	end = core.Normalize(asOf)
	if e := strings.TrimSpace(h.End); e != "" && !strings.EqualFold(e, "today") {
		if end, err = core.ParseDate(e); err != nil {
			return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("horizon.end: %w", err))
		}
	}
	if s := strings.TrimSpace(h.Start); s != "" {
		if start, err = core.ParseDate(s); err != nil {
			return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("horizon.start: %w", err))
		}
		if start.After(end) {
			return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("horizon.start %s is after horizon.end %s", core.FormatDate(start), core.FormatDate(end)))
		}
	}
	return start, end, nil
}

// Retry returns the per-call retry budget for price sources
func (p PoolConfig) Retry() pricing.Retry {
	return pricing.Retry{Attempts: p.RetryCount, Backoff: p.RetryBackoff}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, _, err := c.Horizon.Window(core.Today()); err != nil {
		return err
	}
	if c.Horizon.LookbackDays < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("lookback_days must be positive, got %d", c.Horizon.LookbackDays))
	}

	// Source validation
	if len(c.Sources) == 0 && c.Manual.Path == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("at least one price source or a manual path is required"))
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		switch src.Provider {
		case "", "yahoo":
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("sources[%d]: unknown provider %q", i, src.Provider))
		}
		if src.Name == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("sources[%d]: name required", i))
		}
		if _, dup := seen[src.Name]; dup {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("duplicate source name %q", src.Name))
		}
		seen[src.Name] = struct{}{}
	}
	if _, err := pricing.ParseGapPolicy(c.Manual.GapPolicy); err != nil {
		return err
	}

	if err := c.Signal.Validate(); err != nil {
		return err
	}

	// Notifier validation
	for i, n := range c.Notifiers {
		switch n.Type {
		case "webhook":
			if n.URL == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("notifiers[%d]: url required for webhook", i))
			}
		case "telegram":
			if n.BotToken == "" || n.ChatID == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("notifiers[%d]: bot_token and chat_id required for telegram", i))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("notifiers[%d]: unknown type %q", i, n.Type))
		}
	}

	// Pool validation
	if c.Pool.Workers < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("workers must be positive, got %d", c.Pool.Workers))
	}
	if c.Pool.RetryCount < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("retry_count must be at least 1, got %d", c.Pool.RetryCount))
	}
	if c.Pool.RetryBackoff < 0 || c.Pool.SubmitInterval < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("pool durations cannot be negative"))
	}

	switch c.Storage.Type {
	case "", "localfs":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when storage type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	return nil
}
