// Package orchestrator runs the per-lot download, expand and convert stages for a portal query
// and assembles the query's output directory.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/lotdocs/internal/indexer"
	"github.com/hyperjump/lotdocs/internal/models"
	"github.com/hyperjump/lotdocs/internal/stage"
	"github.com/hyperjump/lotdocs/internal/storage"
	"github.com/hyperjump/lotdocs/pkg/utils"
	cp "github.com/otiai10/copy"
	"go.uber.org/zap"
)

// ErrClearOutput is returned when the previous query directory cannot be removed.
var ErrClearOutput = errors.New("cannot clear query output directory")

// Link modes for the query directory.
const (
	LinkCopy    = "copy"
	LinkSymlink = "symlink"
)

// DefaultNameMaxLen is the number of runes of a lot name kept in directory names.
const DefaultNameMaxLen = 50

// Portal lists lots and their attachments.
type Portal interface {
	ListLots(ctx context.Context, queryURL string) ([]string, error)
	LotName(ctx context.Context, lotURL string) (string, error)
	DownloadLinks(ctx context.Context, lotURL string) ([]string, error)
}

// Downloader saves a URL into a directory and returns the written path.
type Downloader interface {
	Download(ctx context.Context, rawURL, dir string) (string, error)
}

// Expander unpacks archives under root in place.
type Expander interface {
	Expand(ctx context.Context, root string) ([]string, error)
}

// Converter mirrors src into a tree of text files under dst.
type Converter interface {
	Walk(ctx context.Context, src, dst string) (*models.ConversionResult, error)
}

// LotIndexer indexes a lot's text tree.
type LotIndexer interface {
	IndexLot(ctx context.Context, lot *models.Lot, textDir string) (indexer.Stats, error)
}

// Orchestrator processes the lots of a query strictly one after another.
type Orchestrator struct {
	workdir    string
	portal     Portal
	downloader Downloader
	cache      storage.Cache
	stages     *stage.Cache
	expander   Expander
	converter  Converter

	ledger     storage.Ledger
	indexer    LotIndexer
	linkMode   string
	nameMaxLen int
	logger     *zap.Logger
	removeAll  func(string) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLedger records every stage outcome in l.
func WithLedger(l storage.Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithIndexer indexes every lot's text tree after the query directory is built.
func WithIndexer(idx LotIndexer) Option {
	return func(o *Orchestrator) { o.indexer = idx }
}

// WithLinkMode selects LinkCopy or LinkSymlink for the query directory.
func WithLinkMode(mode string) Option {
	return func(o *Orchestrator) {
		if mode != "" {
			o.linkMode = mode
		}
	}
}

// WithNameMaxLen sets how many runes of the lot name go into directory names.
func WithNameMaxLen(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.nameMaxLen = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns an Orchestrator working under workdir.
func New(workdir string, p Portal, d Downloader, cache storage.Cache, stages *stage.Cache,
	x Expander, c Converter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		workdir:    workdir,
		portal:     p,
		downloader: d,
		cache:      cache,
		stages:     stages,
		expander:   x,
		converter:  c,
		linkMode:   LinkCopy,
		nameMaxLen: DefaultNameMaxLen,
		logger:     zap.NewNop(),
		removeAll:  os.RemoveAll,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessQuery resolves the lots of queryURL, runs every stage for each lot and builds
// <workdir>/query. A failing lot is logged and skipped; cancellation stops the batch at once.
// It returns the path of the query directory.
func (o *Orchestrator) ProcessQuery(ctx context.Context, queryURL string) (string, error) {
	if err := os.MkdirAll(o.workdir, 0755); err != nil {
		return "", fmt.Errorf("create workdir: %w", err)
	}
	lotURLs, err := o.resolveLots(ctx, queryURL)
	if err != nil {
		return "", err
	}
	o.logger.Info("lots found for query", zap.String("query", queryURL), zap.Int("count", len(lotURLs)))

	runID := uuid.NewString()
	lots := make([]*models.Lot, 0, len(lotURLs))
	for _, u := range lotURLs {
		lot := models.NewLot(u)
		lots = append(lots, lot)
		if err := o.processLot(ctx, runID, lot); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			o.logger.Warn("problem processing lot", zap.String("lot_id", lot.ID), zap.String("url", u))
			o.logger.Debug("lot failure detail", zap.String("lot_id", lot.ID), zap.Error(err))
		}
	}

	out, err := o.aggregate(ctx, queryURL, lots)
	if err != nil {
		return "", err
	}
	if o.indexer != nil {
		if err := o.indexLots(ctx, lots); err != nil {
			return "", err
		}
	}
	return out, nil
}

func (o *Orchestrator) resolveLots(ctx context.Context, queryURL string) ([]string, error) {
	lots, ok, err := o.cache.QueryLots(queryURL)
	if err != nil {
		return nil, fmt.Errorf("read query cache: %w", err)
	}
	if ok {
		o.logger.Info("query found in cache, portal not queried", zap.String("query", queryURL))
		return lots, nil
	}
	o.logger.Info("querying portal", zap.String("query", queryURL))
	lots, err = o.portal.ListLots(ctx, queryURL)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	if err := o.cache.SetQueryLots(queryURL, lots); err != nil {
		return nil, fmt.Errorf("write query cache: %w", err)
	}
	return lots, nil
}

// lotName returns the cached name of the lot, fetching and caching it on a miss.
func (o *Orchestrator) lotName(ctx context.Context, lotURL string) (string, error) {
	name, ok, err := o.cache.LotName(lotURL)
	if err != nil {
		return "", fmt.Errorf("read name cache: %w", err)
	}
	if ok {
		return name, nil
	}
	name, err = o.portal.LotName(ctx, lotURL)
	if err != nil {
		return "", err
	}
	if err := o.cache.SetLotName(lotURL, name); err != nil {
		return "", fmt.Errorf("write name cache: %w", err)
	}
	return name, nil
}

func (o *Orchestrator) processLot(ctx context.Context, runID string, lot *models.Lot) error {
	name, err := o.lotName(ctx, lot.URL)
	if err != nil {
		return fmt.Errorf("lot name: %w", err)
	}
	lot.Name = name
	dirs := lot.Dirs(o.workdir)

	err = o.runStage(ctx, runID, lot, stage.Download, dirs.Archive, func(ctx context.Context) (string, error) {
		return o.download(ctx, lot, dirs.Archive)
	})
	if err != nil {
		return err
	}

	err = o.runStage(ctx, runID, lot, stage.Expand, dirs.Expanded, func(ctx context.Context) (string, error) {
		if err := cp.Copy(dirs.Archive, dirs.Expanded); err != nil {
			return "", fmt.Errorf("copy archives: %w", err)
		}
		created, err := o.expander.Expand(ctx, dirs.Expanded)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("folders=%d", len(created)), nil
	})
	if err != nil {
		return err
	}

	return o.runStage(ctx, runID, lot, stage.Convert, dirs.Text, func(ctx context.Context) (string, error) {
		res, err := o.converter.Walk(ctx, dirs.Expanded, dirs.Text)
		if err != nil {
			return "", err
		}
		if len(res.Problem) > 0 {
			o.logger.Warn("some files could not be converted",
				zap.String("lot_id", lot.ID), zap.Strings("problem", res.Problem))
		}
		return fmt.Sprintf("converted=%d ignored=%d problem=%d",
			len(res.Converted), len(res.Ignored), len(res.Problem)), nil
	})
}

func (o *Orchestrator) download(ctx context.Context, lot *models.Lot, dir string) (string, error) {
	links, err := o.portal.DownloadLinks(ctx, lot.URL)
	if err != nil {
		return "", err
	}
	for _, link := range links {
		o.logger.Info("downloading", zap.String("lot_id", lot.ID), zap.String("url", link))
		if _, err := o.downloader.Download(ctx, link, dir); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("files=%d", len(links)), nil
}

// runStage runs fn through the stage cache and records the outcome in the ledger.
func (o *Orchestrator) runStage(ctx context.Context, runID string, lot *models.Lot, name, dir string,
	fn func(ctx context.Context) (string, error)) error {
	var detail string
	ran, err := o.stages.Run(ctx, name, lot.ID, dir, func(ctx context.Context) error {
		var err error
		detail, err = fn(ctx)
		return err
	})
	status := models.StatusDone
	switch {
	case err != nil:
		status = models.StatusFailed
		detail = err.Error()
	case !ran:
		status = models.StatusSkipped
	}
	o.record(ctx, &models.StageRecord{
		RunID:     runID,
		LotID:     lot.ID,
		Stage:     name,
		Status:    status,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return err
}

func (o *Orchestrator) record(ctx context.Context, rec *models.StageRecord) {
	if o.ledger == nil {
		return
	}
	// Outcomes of interrupted stages are still written.
	if err := o.ledger.RecordStage(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn("failed to record stage", zap.String("lot_id", rec.LotID), zap.Error(err))
	}
}

// aggregate rebuilds <workdir>/query from the stage directories of lots.
func (o *Orchestrator) aggregate(ctx context.Context, queryURL string, lots []*models.Lot) (string, error) {
	queryDir := filepath.Join(o.workdir, models.QuerySubdir)
	o.logger.Info("building query directory", zap.String("query", queryURL), zap.String("dir", queryDir))
	if err := o.removeAll(queryDir); err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrClearOutput, queryDir, err)
	}
	for _, lot := range lots {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		suffix := lot.ID
		if s := filenameSuffix(o.displayName(lot), o.nameMaxLen); s != "" {
			suffix = lot.ID + " " + s
		}
		src := lot.Dirs(o.workdir).All()
		dst := models.Dirs(queryDir, suffix).All()
		for i, target := range src {
			if info, err := os.Stat(target); err != nil || !info.IsDir() {
				continue
			}
			// Best effort: a lot missing from the view is visible and logged.
			_ = o.linkDir(target, dst[i])
		}
	}
	return queryDir, nil
}

// displayName returns the lot's name, falling back to the name cache. Empty means unknown.
func (o *Orchestrator) displayName(lot *models.Lot) string {
	if lot.Name != "" {
		return lot.Name
	}
	name, ok, err := o.cache.LotName(lot.URL)
	if err != nil || !ok {
		return ""
	}
	lot.Name = name
	return name
}

// linkDir copies or symlinks target to link and reports whether it succeeded.
func (o *Orchestrator) linkDir(target, link string) bool {
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		o.logger.Warn("failed to create query subdirectory", zap.String("dir", link), zap.Error(err))
		return false
	}
	var err error
	switch o.linkMode {
	case LinkSymlink:
		var abs string
		abs, err = filepath.Abs(target)
		if err == nil {
			err = os.Symlink(abs, link)
		}
	default:
		err = cp.Copy(target, link)
	}
	if err != nil {
		o.logger.Warn("failed to link lot directory",
			zap.String("target", target), zap.String("link", link), zap.Error(err))
		return false
	}
	return true
}

func (o *Orchestrator) indexLots(ctx context.Context, lots []*models.Lot) error {
	for _, lot := range lots {
		textDir := lot.Dirs(o.workdir).Text
		if !stage.Done(textDir) {
			continue
		}
		_ = o.displayName(lot) // fills lot.Name from the name cache
		stats, err := o.indexer.IndexLot(ctx, lot, textDir)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			o.logger.Warn("failed to index lot", zap.String("lot_id", lot.ID), zap.Error(err))
			continue
		}
		o.logger.Info("lot indexed", zap.String("lot_id", lot.ID),
			zap.Int("indexed", stats.Indexed), zap.Int("unchanged", stats.Unchanged), zap.Int("removed", stats.Removed))
	}
	return nil
}

var (
	invalidNameChars = strings.NewReplacer(
		"<", "", ">", "", ":", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "",
		"\r", "", "\n", "")
	spaceRun = regexp.MustCompile(`\s+`)
)

// FilenameSuffix turns a lot name into a directory-name-safe suffix: characters invalid in
// file names and newlines are dropped, whitespace runs collapse to one space, at most
// DefaultNameMaxLen runes are kept and the result is trimmed.
func FilenameSuffix(name string) string {
	return filenameSuffix(name, DefaultNameMaxLen)
}

func filenameSuffix(name string, maxLen int) string {
	name = invalidNameChars.Replace(name)
	name = spaceRun.ReplaceAllString(name, " ")
	return strings.TrimSpace(utils.TruncateRunes(name, maxLen))
}
