// Package stage skips pipeline stages whose output directory is already populated.
package stage

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Stage names.
const (
	Download = "download"
	Expand   = "expand"
	Convert  = "convert"
)

// Done reports whether dir exists and has at least one entry.
func Done(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()
	names, err := f.Readdirnames(1)
	return err == nil && len(names) > 0
}

// Force selects stages that run even when their output exists.
type Force struct {
	Download bool
	Expand   bool
	Convert  bool
}

// Cache gates stages on the presence of their output directory.
type Cache struct {
	force  Force
	logger *zap.Logger
}

// NewCache returns a Cache. logger may be nil.
func NewCache(force Force, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{force: force, logger: logger}
}

// Forced reports whether the named stage is forced.
func (c *Cache) Forced(stage string) bool {
	switch stage {
	case Download:
		return c.force.Download
	case Expand:
		return c.force.Expand
	case Convert:
		return c.force.Convert
	default:
		return false
	}
}

// Run calls fn unless dir is already populated and the stage is not forced. Forced expand and
// convert stages clear dir first; a forced download writes into the existing directory.
// It reports whether fn ran.
func (c *Cache) Run(ctx context.Context, stage, subject, dir string, fn func(ctx context.Context) error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	forced := c.Forced(stage)
	if Done(dir) && !forced {
		c.logger.Info("skipping stage, output not empty",
			zap.String("stage", stage), zap.String("subject", subject), zap.String("dir", dir))
		return false, nil
	}
	if forced && stage != Download {
		if err := os.RemoveAll(dir); err != nil {
			return false, fmt.Errorf("clear %s output %s: %w", stage, dir, err)
		}
	}
	c.logger.Debug("running stage", zap.String("stage", stage), zap.String("subject", subject))
	if err := fn(ctx); err != nil {
		return true, fmt.Errorf("%s %s: %w", stage, subject, err)
	}
	return true, nil
}
