// Package archive stores input tables, manual price overrides and run
// reports on a local filesystem or an S3-compatible bucket.
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/newthinker/tally/internal/core"
)

// ErrNotFound is returned by Read when nothing exists at the path
var ErrNotFound = errors.New("object not found")

// Storage defines the interface for file storage backends
type Storage interface {
	// Write stores data at the given path, replacing existing data
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a backend
type Config struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

// Open creates the backend named by cfg.Type
func Open(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "localfs":
		path := cfg.Path
		if path == "" {
			path = "."
		}
		return NewLocalFS(path)
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("s3 bucket required"))
		}
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", cfg.Type))
	}
}
