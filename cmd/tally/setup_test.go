package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/newthinker/tally/internal/collector"
	"github.com/newthinker/tally/internal/config"
	"github.com/newthinker/tally/internal/notifier"
	"github.com/newthinker/tally/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildResolver(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	cfg := config.Defaults()
	r, err := buildResolver(cfg, store, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestBuildResolver_UnknownProvider(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Sources = append(cfg.Sources, collector.Config{Name: "x", Provider: "bloomberg"})
	_, err = buildResolver(cfg, store, zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestBuildResolver_BadGapPolicy(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Manual.GapPolicy = "guess"
	_, err = buildResolver(cfg, store, zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestBuildNotifiers(t *testing.T) {
	cfg := config.Defaults()
	cfg.Notifiers = []notifier.Config{
		{Type: "webhook", URL: "http://hooks.local"},
		{Type: "telegram", BotToken: "t", ChatID: "c"},
	}
	reg, err := buildNotifiers(cfg)
	require.NoError(t, err)
	assert.Len(t, reg.GetAll(), 2)

	cfg.Notifiers = append(cfg.Notifiers, notifier.Config{Type: "webhook", URL: "http://other"})
	_, err = buildNotifiers(cfg)
	assert.Error(t, err, "duplicate notifier names")
}

func TestLoadConfig_AsOfOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("horizon:\n  end: today\n"), 0644))

	cfgFile, asOf = path, "2024-02-01"
	t.Cleanup(func() { cfgFile, asOf = "", "" })

	cfg, err := loadConfig(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", cfg.Horizon.End)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cfgFile, asOf = "", "not-a-date"
	t.Cleanup(func() { cfgFile, asOf = "", "" })

	_, err := loadConfig(zap.NewNop())
	assert.Error(t, err)
}
