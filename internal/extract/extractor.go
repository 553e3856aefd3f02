// Package extract converts document files to normalized plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/lotdocs/internal/ocr"
	"github.com/hyperjump/lotdocs/internal/office"
	"go.uber.org/zap"
)

// ErrExtraction matches every *ExtractionError.
var ErrExtraction = errors.New("extraction failed")

// Format is the closed set of document kinds the extractor dispatches on.
type Format int

const (
	FormatOther Format = iota
	FormatPDF
	FormatDOC
	FormatDOCX
	FormatSpreadsheet
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOC:
		return "doc"
	case FormatDOCX:
		return "docx"
	case FormatSpreadsheet:
		return "spreadsheet"
	default:
		return "other"
	}
}

// DetectFormat classifies path by its extension (case-insensitive).
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".doc":
		return FormatDOC
	case ".docx":
		return FormatDOCX
	case ".xls", ".xlsx":
		return FormatSpreadsheet
	default:
		return FormatOther
	}
}

// ExtractionError reports a failed extraction of one file.
type ExtractionError struct {
	Path   string
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrExtraction) true for any ExtractionError.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// Recognizer returns the text of a scanned PDF.
type Recognizer interface {
	RecognizePDF(ctx context.Context, path string) (string, error)
}

// Extractor extracts plain text from document files.
type Extractor struct {
	ocr       Recognizer
	converter office.Converter
	logger    *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOCR enables OCR for PDFs. Without it PDFs are read from their text layer.
func WithOCR(r Recognizer) Option {
	return func(e *Extractor) { e.ocr = r }
}

// WithOfficeConverter sets the converter used for legacy DOC and XLS files.
func WithOfficeConverter(c office.Converter) Option {
	return func(e *Extractor) { e.converter = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and returns its text with line endings normalized by FixLineEndings.
// Failures are returned as *ExtractionError, except context cancellation which is returned as is.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	format := DetectFormat(path)

	var text string
	var err error
	switch format {
	case FormatPDF:
		text, err = e.extractPDF(ctx, path)
	case FormatDOC:
		text, err = e.viaOffice(ctx, path, "docx")
	case FormatDOCX, FormatSpreadsheet:
		text, err = e.extractGeneric(ctx, path)
	default:
		text, err = e.extractGeneric(ctx, path)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &ExtractionError{Path: path, Format: format, Err: err}
	}
	return FixLineEndings(text), nil
}

// extractPDF prefers OCR and falls back to the text layer when the OCR engine fails.
func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	if e.ocr == nil {
		return extractPDFFile(path)
	}
	text, err := e.ocr.RecognizePDF(ctx, path)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, ocr.ErrEngine) {
		return "", err
	}
	e.logger.Warn("ocr failed, using pdf text layer", zap.String("path", path), zap.Error(err))
	return extractPDFFile(path)
}

// viaOffice converts path to format in a temporary directory and extracts the converted file.
func (e *Extractor) viaOffice(ctx context.Context, path, format string) (string, error) {
	if e.converter == nil {
		return "", fmt.Errorf("%w: no converter configured for %s", office.ErrUnavailable, filepath.Ext(path))
	}
	tmpDir, err := os.MkdirTemp("", "lotdocs-office-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	converted, err := e.converter.Convert(ctx, path, tmpDir, format)
	if err != nil {
		return "", err
	}
	return e.extractGeneric(ctx, converted)
}

// FixLineEndings converts CRLF to LF and collapses runs of newlines into one.
func FixLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(text))
	prevNewline := false
	for _, r := range text {
		if r == '\n' {
			if prevNewline {
				continue
			}
			prevNewline = true
		} else {
			prevNewline = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
