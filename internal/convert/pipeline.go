// Package convert mirrors a directory tree of documents into a tree of .txt files.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/lotdocs/internal/models"
	"github.com/hyperjump/lotdocs/internal/stage"
	"go.uber.org/zap"
)

// DefaultExtensions are converted when no allowlist is given.
var DefaultExtensions = []string{".xls", ".xlsx", ".doc", ".docx", ".pdf", ".txt"}

// TextExtractor returns the text of one file.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Pipeline converts every allowed file under a source tree.
type Pipeline struct {
	extractor     TextExtractor
	extensions    map[string]bool
	stopDirOnSkip bool
	logger        *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExtensions sets the allowlist of extensions (with leading dot, case-insensitive).
func WithExtensions(exts []string) Option {
	return func(p *Pipeline) {
		p.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			p.extensions[strings.ToLower(ext)] = true
		}
	}
}

// WithStopDirOnSkip makes the first ignored or failed file end processing of the remaining files
// in its directory. Subdirectories are still visited.
func WithStopDirOnSkip(stop bool) Option {
	return func(p *Pipeline) { p.stopDirOnSkip = stop }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline returns a Pipeline using x for extraction.
func NewPipeline(x TextExtractor, opts ...Option) *Pipeline {
	p := &Pipeline{extractor: x, logger: zap.NewNop()}
	WithExtensions(DefaultExtensions)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run converts src into dst. When dst already has content and force is false nothing is done and the
// result is marked Skipped. A forced run clears dst first.
func (p *Pipeline) Run(ctx context.Context, src, dst string, force bool) (*models.ConversionResult, error) {
	if stage.Done(dst) && !force {
		p.logger.Info("skipping conversion, destination not empty", zap.String("src", src), zap.String("dst", dst))
		return &models.ConversionResult{Skipped: true}, nil
	}
	if force {
		if err := os.RemoveAll(dst); err != nil {
			return nil, fmt.Errorf("clear %s: %w", dst, err)
		}
	}
	return p.Walk(ctx, src, dst)
}

// Walk converts every allowed file under src to dst/<rel>.txt, visiting entries in lexical order.
// Extraction failures are recorded as problems; cancellation aborts the walk and is returned.
func (p *Pipeline) Walk(ctx context.Context, src, dst string) (*models.ConversionResult, error) {
	p.logger.Info("converting to text", zap.String("src", src), zap.String("dst", dst))
	res := &models.ConversionResult{}
	stopped := make(map[string]bool)

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		dir := filepath.Dir(path)
		if stopped[dir] {
			return nil
		}

		if !p.extensions[strings.ToLower(filepath.Ext(path))] {
			res.Ignored = append(res.Ignored, path)
			if p.stopDirOnSkip {
				stopped[dir] = true
			}
			return nil
		}

		text, err := p.extractor.Extract(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Debug("conversion failed", zap.String("path", path), zap.Error(err))
			res.Problem = append(res.Problem, path)
			if p.stopDirOnSkip {
				stopped[dir] = true
			}
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel+".txt")
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(out), err)
		}
		if err := os.WriteFile(out, []byte(text), 0644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		res.Converted = append(res.Converted, path)
		return nil
	})
	if err != nil {
		return res, err
	}

	if len(res.Problem) > 0 {
		p.logger.Warn("problems converting to text", zap.Strings("problem", res.Problem))
	}
	p.logger.Info("conversion finished",
		zap.Int("converted", len(res.Converted)),
		zap.Int("ignored", len(res.Ignored)),
		zap.Int("problem", len(res.Problem)))
	return res, nil
}
