// Package ocr recognizes text in scanned PDFs with pdftoppm and tesseract.
package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// ErrEngine is returned when tesseract fails on a page.
var ErrEngine = errors.New("ocr engine error")

// Config holds external tool and recognition settings.
type Config struct {
	Pdftoppm    string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Language    string // default "rus"
	TessdataDir string
	DPI         int // default 300
	MaxPages    int // 0 = no limit
}

// Engine runs the rasterize, orient, recognize sequence for one PDF at a time.
type Engine struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an Engine with defaults filled in.
func NewEngine(cfg Config, opts ...Option) *Engine {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "rus"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	e := &Engine{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = ExecRunner{Logger: e.logger}
	}
	return e
}

// RecognizePDF returns the text of every page of the PDF at path, pages separated by a blank line.
// Page images live in a temporary directory removed before returning.
func (e *Engine) RecognizePDF(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "lotdocs-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", zap.String("path", tmpDir), zap.Error(err))
		}
	}()

	pages, err := e.Rasterize(ctx, path, tmpDir)
	if err != nil {
		return "", err
	}
	e.logger.Info("recognizing pdf", zap.String("path", path), zap.Int("pages", len(pages)))

	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		degrees, err := e.DetectOrientation(ctx, page)
		if err != nil {
			return "", err
		}
		if degrees != 0 {
			if err := Rotate(page, degrees); err != nil {
				return "", fmt.Errorf("rotate %s: %w", filepath.Base(page), err)
			}
		}
		text, err := e.RecognizeImage(ctx, page)
		if err != nil {
			return "", err
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\n\n"), nil
}

// Rasterize renders the PDF's pages as PNG files in dir and returns them in page order.
func (e *Engine) Rasterize(ctx context.Context, pdfPath, dir string) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 300 -png <in.pdf> <dir/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", pdfPath, prefix)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("pdftoppm %s: %w: %s", filepath.Base(pdfPath), err, strings.TrimSpace(string(errb)))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sortPages(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images for %s", filepath.Base(pdfPath))
	}
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	return matches, nil
}

// DetectOrientation runs tesseract's orientation detection on an image and returns the page rotation
// in degrees.
func (e *Engine) DetectOrientation(ctx context.Context, img string) (int, error) {
	args := append([]string{img, "stdout", "-l", "osd", "--psm", "0"}, e.tessdataArgs()...)
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: osd %s: %v: %s", ErrEngine, filepath.Base(img), err, strings.TrimSpace(string(errb)))
	}
	degrees, ok := ParseOrientation(out)
	if !ok {
		return 0, fmt.Errorf("%w: osd %s: no orientation in output", ErrEngine, filepath.Base(img))
	}
	return degrees, nil
}

// RecognizeImage runs text recognition on one image in the configured language.
func (e *Engine) RecognizeImage(ctx context.Context, img string) (string, error) {
	args := append([]string{img, "stdout", "-l", e.cfg.Language}, e.tessdataArgs()...)
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: recognize %s: %v: %s", ErrEngine, filepath.Base(img), err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}

func (e *Engine) tessdataArgs() []string {
	if e.cfg.TessdataDir == "" {
		return nil
	}
	return []string{"--tessdata-dir", e.cfg.TessdataDir}
}

// ParseOrientation reads the "Orientation in degrees" value from tesseract OSD output.
func ParseOrientation(out []byte) (int, bool) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, found := strings.Cut(sc.Text(), ":")
		if !found || strings.TrimSpace(key) != "Orientation in degrees" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Rotate rotates the image file at path counter-clockwise by degrees and overwrites it.
// The canvas grows as needed so nothing is cropped.
func Rotate(path string, degrees int) error {
	src, err := imaging.Open(path)
	if err != nil {
		return err
	}
	var dst image.Image
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return nil
	case 90:
		dst = imaging.Rotate90(src)
	case 180:
		dst = imaging.Rotate180(src)
	case 270:
		dst = imaging.Rotate270(src)
	default:
		dst = imaging.Rotate(src, float64(degrees), color.White)
	}
	return imaging.Save(dst, path)
}

// sortPages orders pdftoppm output (page-1.png, page-2.png, ..., page-10.png) by page number.
func sortPages(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		n, err := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
