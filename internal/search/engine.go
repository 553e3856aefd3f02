// Package search runs keyword queries against the text index and shapes the response.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/lotdocs/internal/config"
	"github.com/hyperjump/lotdocs/internal/keyword"
	"github.com/hyperjump/lotdocs/internal/models"
	"github.com/hyperjump/lotdocs/pkg/utils"
)

// maxFragmentRunes bounds each returned fragment.
const maxFragmentRunes = 300

// Engine runs keyword search over indexed lot documents.
type Engine struct {
	keywordIndex keyword.KeywordIndex
	config       *config.SearchConfig
	highlight    string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHighlight sets the fragment style (keyword.HighlightANSI, keyword.HighlightHTML or none).
func WithHighlight(style string) EngineOption {
	return func(e *Engine) { e.highlight = style }
}

// NewEngine creates a search engine over keywordIndex.
func NewEngine(keywordIndex keyword.KeywordIndex, cfg *config.SearchConfig, opts ...EngineOption) *Engine {
	e := &Engine{keywordIndex: keywordIndex, config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs the query and returns ranked results with scores normalized to [0,1].
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if query.Limit <= 0 && e.config != nil {
		query.Limit = e.config.DefaultLimit
	}
	if err := ProcessQuery(query); err != nil {
		return nil, err
	}

	opts := &keyword.SearchOptions{
		Limit:     query.Limit,
		LotID:     query.LotID,
		Highlight: e.highlight,
	}
	if e.config != nil {
		opts.LotNameBoost = e.config.LotNameBoost
		opts.PhraseBoost = e.config.PhraseBoost
		opts.FuzzyEnabled = e.config.Fuzzy
		opts.Fuzziness = e.config.Fuzziness
	}
	if query.Fuzzy {
		opts.FuzzyEnabled = true
	}
	hits, err := e.keywordIndex.Search(ctx, query.Query, opts)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	scores := NormalizeScores(hits)
	response := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(hits)),
		Total:   len(hits),
		Query:   query.Query,
	}
	for i, hit := range hits {
		fragments := make([]string, 0, len(hit.Fragments))
		for _, f := range hit.Fragments {
			fragments = append(fragments, utils.TruncateRunes(f, maxFragmentRunes))
		}
		response.Results = append(response.Results, &models.SearchResult{
			Document: &models.TextDocument{
				ID:      hit.ID,
				LotID:   hit.LotID,
				LotName: hit.LotName,
				Path:    hit.Path,
			},
			Score:     scores[i],
			Rank:      i + 1,
			Fragments: fragments,
		})
	}
	response.QueryTime = time.Since(startTime).Milliseconds()
	return response, nil
}

// NormalizeScores divides each hit's score by the best score in the set.
func NormalizeScores(hits []*keyword.KeywordResult) []float64 {
	out := make([]float64, len(hits))
	maxScore := 0.0
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore == 0 {
		return out
	}
	for i, h := range hits {
		out[i] = h.Score / maxScore
	}
	return out
}
