// Package storage persists the query and lot-name caches and the stage run ledger.
package storage

import (
	"context"

	"github.com/hyperjump/lotdocs/internal/models"
)

// Ledger records stage outcomes per lot.
type Ledger interface {
	RecordStage(ctx context.Context, rec *models.StageRecord) error
	// LatestStages returns the most recent record for every (lot, stage) pair, ordered by lot and stage.
	LatestStages(ctx context.Context) ([]*models.StageRecord, error)
	// RunRecords returns all records of one run in insertion order.
	RunRecords(ctx context.Context, runID string) ([]*models.StageRecord, error)
	Close() error
}

// Cache maps query URLs to lot URLs and lot URLs to display names.
type Cache interface {
	QueryLots(queryURL string) ([]string, bool, error)
	SetQueryLots(queryURL string, lotURLs []string) error
	LotName(lotURL string) (string, bool, error)
	SetLotName(lotURL, name string) error
}
