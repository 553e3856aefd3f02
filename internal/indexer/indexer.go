// Package indexer indexes the text tree of a lot into the keyword index.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/lotdocs/internal/fileid"
	"github.com/hyperjump/lotdocs/internal/keyword"
	"github.com/hyperjump/lotdocs/internal/models"
	"go.uber.org/zap"
)

// Stats counts what one IndexLot call did.
type Stats struct {
	Indexed   int
	Unchanged int
	Removed   int
}

// Indexer indexes converted text files into a keyword index.
type Indexer struct {
	index  keyword.KeywordIndex
	logger *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// NewIndexer creates an indexer writing to index.
func NewIndexer(index keyword.KeywordIndex, opts ...IndexerOption) *Indexer {
	idx := &Indexer{index: index, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexLot brings the index in line with the .txt files under textDir.
// Files whose modification time and size match the indexed stamp are skipped,
// and documents of the lot whose file is gone are removed.
func (idx *Indexer) IndexLot(ctx context.Context, lot *models.Lot, textDir string) (Stats, error) {
	var stats Stats
	existing, err := idx.index.Stamps(ctx, lot.ID)
	if err != nil {
		return stats, fmt.Errorf("load indexed stamps: %w", err)
	}

	seen := make(map[string]struct{})
	var docs []*models.TextDocument
	if _, statErr := os.Stat(textDir); os.IsNotExist(statErr) {
		textDir = ""
	}
	err = walkText(textDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".txt") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(textDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		id := fileid.DocID(lot.ID, rel)
		seen[id] = struct{}{}
		stamp := fileStamp(info)
		if existing[id] == stamp {
			stats.Unchanged++
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, &models.TextDocument{
			ID:      id,
			LotID:   lot.ID,
			LotName: lot.Name,
			Path:    rel,
			Content: Preprocess(string(content)),
			Stamp:   stamp,
		})
		idx.logger.Debug("indexer queued file", zap.String("lot_id", lot.ID), zap.String("path", rel))
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, ctxErr
		}
		return stats, fmt.Errorf("walk %s: %w", textDir, err)
	}

	var deletes []string
	for id := range existing {
		if _, ok := seen[id]; !ok {
			deletes = append(deletes, id)
		}
	}
	if err := idx.index.Apply(ctx, docs, deletes); err != nil {
		return stats, err
	}
	stats.Indexed = len(docs)
	stats.Removed = len(deletes)
	idx.logger.Debug("indexer lot indexed",
		zap.String("lot_id", lot.ID),
		zap.Int("indexed", stats.Indexed),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("removed", stats.Removed))
	return stats, nil
}

// walkText walks root like filepath.WalkDir. An empty root visits nothing.
func walkText(root string, fn fs.WalkDirFunc) error {
	if root == "" {
		return nil
	}
	return filepath.WalkDir(root, fn)
}

// IndexTree indexes every lot directory directly under textRoot (<workdir>/txt). Directory
// names are lot IDs; names maps lot IDs to display names. Stats are summed over all lots.
// A lot that fails is logged and skipped; cancellation stops the walk.
func (idx *Indexer) IndexTree(ctx context.Context, textRoot string, names map[string]string) (Stats, error) {
	var total Stats
	entries, err := os.ReadDir(textRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return total, nil
		}
		return total, fmt.Errorf("read %s: %w", textRoot, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		lot := &models.Lot{ID: e.Name(), Name: names[e.Name()]}
		stats, err := idx.IndexLot(ctx, lot, filepath.Join(textRoot, e.Name()))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return total, ctxErr
			}
			idx.logger.Warn("failed to index lot", zap.String("lot_id", lot.ID), zap.Error(err))
			continue
		}
		total.Indexed += stats.Indexed
		total.Unchanged += stats.Unchanged
		total.Removed += stats.Removed
	}
	return total, nil
}

func fileStamp(info os.FileInfo) string {
	return fmt.Sprintf("%d:%d", info.ModTime().UnixNano(), info.Size())
}
