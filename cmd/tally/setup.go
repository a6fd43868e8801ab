package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/tally/internal/app"
	"github.com/newthinker/tally/internal/collector"
	"github.com/newthinker/tally/internal/collector/manual"
	"github.com/newthinker/tally/internal/collector/yahoo"
	"github.com/newthinker/tally/internal/config"
	"github.com/newthinker/tally/internal/ledger"
	"github.com/newthinker/tally/internal/logger"
	"github.com/newthinker/tally/internal/metrics"
	"github.com/newthinker/tally/internal/notifier"
	"github.com/newthinker/tally/internal/notifier/telegram"
	"github.com/newthinker/tally/internal/notifier/webhook"
	"github.com/newthinker/tally/internal/pricing"
	"github.com/newthinker/tally/internal/report"
	"github.com/newthinker/tally/internal/storage/archive"
	"go.uber.org/zap"
)

// session bundles everything a run command needs
type session struct {
	cfg       *config.Config
	log       *zap.Logger
	store     archive.Storage
	metrics   *metrics.Registry
	app       *app.App
	reports   *report.Writer
	notifiers *notifier.Registry
}

// loadConfig reads the config file, or defaults when none is given, and
// applies command line overrides.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if asOf != "" {
		cfg.Horizon.End = asOf
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// buildResolver registers the configured sources and ranks them in config
// order, with the manual overrides as fallback.
func buildResolver(cfg *config.Config, store archive.Storage, log *zap.Logger, rec pricing.FetchRecorder) (*pricing.Resolver, error) {
	reg := collector.NewRegistry()
	names := make([]string, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		switch sc.Provider {
		case "", "yahoo":
			src := yahoo.New(sc)
			reg.Register(src)
			names = append(names, src.Name())
		default:
			return nil, fmt.Errorf("unknown provider %q", sc.Provider)
		}
	}
	sources, err := reg.Ranked(names)
	if err != nil {
		return nil, err
	}

	opts := []pricing.Option{
		pricing.WithRetry(cfg.Pool.Retry()),
		pricing.WithLogger(log),
	}
	if rec != nil {
		opts = append(opts, pricing.WithRecorder(rec))
	}
	if cfg.Manual.Path != "" {
		policy, err := pricing.ParseGapPolicy(cfg.Manual.GapPolicy)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			pricing.WithManual(manual.New(store, cfg.Manual.Path)),
			pricing.WithManualGap(policy),
		)
	}
	return pricing.NewResolver(sources, opts...), nil
}

// buildNotifiers creates the configured signal notifiers
func buildNotifiers(cfg *config.Config) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	for _, nc := range cfg.Notifiers {
		var n notifier.Notifier
		var err error
		switch nc.Type {
		case "webhook":
			n, err = webhook.New(nc)
		case "telegram":
			n, err = telegram.New(nc)
		default:
			err = fmt.Errorf("unknown notifier type %q", nc.Type)
		}
		if err != nil {
			return nil, err
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func setup() (*session, error) {
	log := logger.Must(debug)

	cfg, err := loadConfig(log)
	if err != nil {
		return nil, err
	}
	if cfg.Log.Development && !debug {
		log = logger.Must(true)
	}

	store, err := archive.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	reg := metrics.NewRegistry()
	resolver, err := buildResolver(cfg, store, log, reg)
	if err != nil {
		return nil, fmt.Errorf("building price sources: %w", err)
	}
	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		return nil, fmt.Errorf("building notifiers: %w", err)
	}

	return &session{
		cfg:       cfg,
		log:       log,
		store:     store,
		metrics:   reg,
		app:       app.New(cfg, resolver, log, reg),
		reports:   report.NewWriter(store, report.DefaultPrefix),
		notifiers: notifiers,
	}, nil
}

func (rt *session) loadTransactions(ctx context.Context, path string) ([]ledger.Record, error) {
	records, err := ledger.Load(ctx, rt.store, path)
	if len(records) == 0 && err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}
	if err != nil {
		rt.log.Warn("some transaction rows were skipped", zap.Error(err))
	}
	rt.log.Info("transactions loaded", zap.String("path", path), zap.Int("rows", len(records)))
	return records, nil
}

// finish flushes run metrics to the textfile when configured
func (rt *session) finish() {
	if rt.cfg.Metrics.Enabled && rt.cfg.Metrics.Textfile != "" {
		if err := rt.metrics.WriteTextfile(rt.cfg.Metrics.Textfile); err != nil {
			rt.log.Error("failed to write metrics", zap.Error(err))
		}
	}
	_ = rt.log.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
