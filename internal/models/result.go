package models

import "time"

// ConversionResult partitions the files seen by one conversion run.
// Converted, Ignored and Problem are disjoint.
type ConversionResult struct {
	Converted []string `json:"converted"`
	Ignored   []string `json:"ignored"`
	Problem   []string `json:"problem"`
	// Skipped is set when the destination was already populated and the run did nothing.
	Skipped bool `json:"skipped,omitempty"`
}

// Total returns the number of files recorded in any category.
func (r *ConversionResult) Total() int {
	return len(r.Converted) + len(r.Ignored) + len(r.Problem)
}

// Stage status values recorded in the run ledger.
const (
	StatusDone    = "done"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// StageRecord is one stage outcome for one lot in one run.
type StageRecord struct {
	RunID     string    `json:"run_id"`
	LotID     string    `json:"lot_id"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult is a single keyword hit.
type SearchResult struct {
	Document *TextDocument `json:"document"`
	Score    float64       `json:"score"`
	Rank     int           `json:"rank"`
	// Fragments are highlighted excerpts of the matching content.
	Fragments []string `json:"fragments,omitempty"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
	// AutoFuzzy is set when an exact search found nothing and the results come from a fuzzy retry.
	AutoFuzzy bool `json:"auto_fuzzy,omitempty"`
}
