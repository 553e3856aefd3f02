package models

import (
	"errors"
	"fmt"
)

// Query is a saved search on the tender portal and the lot URLs it resolved to.
type Query struct {
	URL     string   `json:"url"`
	LotURLs []string `json:"lot_urls"`
}

// Lots returns a Lot for each resolved URL, in order.
func (q *Query) Lots() []*Lot {
	lots := make([]*Lot, 0, len(q.LotURLs))
	for _, u := range q.LotURLs {
		lots = append(lots, NewLot(u))
	}
	return lots
}

// ErrInvalidQuery is returned by Validate for a query that cannot be run.
var ErrInvalidQuery = errors.New("invalid query")

// SearchQuery is a keyword search over converted text.
type SearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	LotID string `json:"lot_id,omitempty"`
	Fuzzy bool   `json:"fuzzy,omitempty"`
}

// Validate ensures the search query is non-empty and normalizes the limit.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}
