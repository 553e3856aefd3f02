// Package office converts legacy office documents with a headless LibreOffice.
package office

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hyperjump/lotdocs/internal/ocr"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when no converter program is configured or found.
var ErrUnavailable = errors.New("office converter unavailable")

// Converter converts src into the target format (a file extension without the dot, e.g. "docx"),
// writing the result into outDir. It returns the path of the converted file.
type Converter interface {
	Convert(ctx context.Context, src, outDir, format string) (string, error)
}

// Soffice converts documents by running `soffice --headless --convert-to`.
type Soffice struct {
	bin    string
	runner ocr.Runner
	logger *zap.Logger
}

// Option configures Soffice.
type Option func(*Soffice)

// WithRunner replaces the command runner.
func WithRunner(r ocr.Runner) Option {
	return func(s *Soffice) { s.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Soffice) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSoffice returns a converter that runs bin (default "soffice").
func NewSoffice(bin string, opts ...Option) *Soffice {
	if bin == "" {
		bin = "soffice"
	}
	s := &Soffice{bin: bin, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = ocr.ExecRunner{Logger: s.logger}
	}
	return s
}

// Convert implements Converter.
func (s *Soffice) Convert(ctx context.Context, src, outDir, format string) (string, error) {
	_, errb, err := s.runner.Run(ctx, s.bin, "--headless", "--convert-to", format, "--outdir", outDir, src)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, s.bin, err)
		}
		return "", fmt.Errorf("convert %s to %s: %w: %s", filepath.Base(src), format, err, strings.TrimSpace(string(errb)))
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(outDir, base+"."+format)
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("convert %s to %s: no output produced", filepath.Base(src), format)
	}
	s.logger.Debug("converted office document", zap.String("src", src), zap.String("out", out))
	return out, nil
}
