// Package keyword provides full-text indexing and search over converted lot documents.
package keyword

import (
	"context"

	"github.com/hyperjump/lotdocs/internal/models"
)

// Highlight styles for result fragments.
const (
	HighlightNone = ""
	HighlightANSI = "ansi"
	HighlightHTML = "html"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// Limit caps the number of results. Defaults to 10.
	Limit int
	// LotID restricts results to one lot when set.
	LotID string
	// LotNameBoost multiplies the score contribution of matches in the lot name.
	// Values <= 0 leave the lot name out of the query.
	LotNameBoost float64
	// PhraseBoost adds a phrase clause for multi-term queries when > 1.
	PhraseBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
	// Highlight selects the fragment style; HighlightNone disables fragments.
	Highlight string
}

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	Index(ctx context.Context, doc *models.TextDocument) error
	// Apply indexes docs and deletes ids in a single batch.
	Apply(ctx context.Context, docs []*models.TextDocument, deletes []string) error
	Search(ctx context.Context, query string, opts *SearchOptions) ([]*KeywordResult, error)
	// Stamps returns document ID -> stamp for every document of a lot.
	Stamps(ctx context.Context, lotID string) (map[string]string, error)
	Delete(ctx context.Context, id string) error
	// DocCount returns the total number of documents in the index.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit with its stored fields.
type KeywordResult struct {
	ID        string
	Score     float64
	LotID     string
	LotName   string
	Path      string
	Fragments []string
}
