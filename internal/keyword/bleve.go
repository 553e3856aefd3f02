package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/ru"
	"github.com/blevesearch/bleve/v2/mapping"
	_ "github.com/blevesearch/bleve/v2/search/highlight/highlighter/ansi"
	_ "github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/lotdocs/internal/models"
)

const defaultLimit = 10

// indexedDoc is the shape stored in Bleve. The document ID is the Bleve key.
type indexedDoc struct {
	LotID   string `json:"lot_id"`
	LotName string `json:"lot_name"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Stamp   string `json:"stamp"`
}

var storedFields = []string{"lot_id", "lot_name", "path"}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reopened so that unchanged files are not re-indexed across runs.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Documents are mostly Russian: the ru analyzer stems, so "поставка" matches "поставки".
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = ru.AnalyzerName
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("lot_name", textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("lot_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("path", keywordFieldMapping)
	stampMapping := bleve.NewKeywordFieldMapping()
	stampMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("stamp", stampMapping)

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// Index indexes a document by its ID, replacing any previous version.
func (b *BleveIndex) Index(ctx context.Context, doc *models.TextDocument) error {
	return b.index.Index(doc.ID, toIndexed(doc))
}

// Apply indexes docs and deletes ids in one Bleve batch.
func (b *BleveIndex) Apply(ctx context.Context, docs []*models.TextDocument, deletes []string) error {
	if len(docs) == 0 && len(deletes) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, toIndexed(doc)); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.Path, err)
		}
	}
	for _, id := range deletes {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

func toIndexed(doc *models.TextDocument) *indexedDoc {
	return &indexedDoc{
		LotID:   doc.LotID,
		LotName: doc.LotName,
		Path:    doc.Path,
		Content: doc.Content,
		Stamp:   doc.Stamp,
	}
}

// Search runs a match query over content, optionally boosted by lot name and phrase matches,
// and returns up to opts.Limit results with their stored fields.
func (b *BleveIndex) Search(ctx context.Context, query string, opts *SearchOptions) ([]*KeywordResult, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	req := bleve.NewSearchRequestOptions(b.buildQuery(query, opts), limit, 0, false)
	req.Fields = storedFields
	if opts.Highlight != HighlightNone {
		req.Highlight = bleve.NewHighlightWithStyle(opts.Highlight)
		req.Highlight.AddField("content")
	}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{
			ID:        hit.ID,
			Score:     hit.Score,
			LotID:     stringField(hit.Fields, "lot_id"),
			LotName:   stringField(hit.Fields, "lot_name"),
			Path:      stringField(hit.Fields, "path"),
			Fragments: hit.Fragments["content"],
		}
	}
	return out, nil
}

// buildQuery combines a content match with the optional lot name and phrase clauses,
// then restricts the result to one lot when requested.
func (b *BleveIndex) buildQuery(query string, opts *SearchOptions) blevequery.Query {
	fuzziness := 0
	if opts.FuzzyEnabled {
		fuzziness = 2
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	clauses := []blevequery.Query{matchQuery(query, "content", fuzziness)}
	if opts.LotNameBoost > 0 {
		nq := matchQuery(query, "lot_name", fuzziness)
		nq.SetBoost(opts.LotNameBoost)
		clauses = append(clauses, nq)
	}
	if opts.PhraseBoost > 1.0 && len(strings.Fields(query)) > 1 {
		pq := bleve.NewMatchPhraseQuery(query)
		pq.SetField("content")
		pq.SetBoost(opts.PhraseBoost)
		clauses = append(clauses, pq)
	}

	var q blevequery.Query = clauses[0]
	if len(clauses) > 1 {
		q = bleve.NewDisjunctionQuery(clauses...)
	}
	if opts.LotID != "" {
		lq := bleve.NewTermQuery(opts.LotID)
		lq.SetField("lot_id")
		q = bleve.NewConjunctionQuery(q, lq)
	}
	return q
}

func matchQuery(query, field string, fuzziness int) *blevequery.MatchQuery {
	mq := bleve.NewMatchQuery(query)
	mq.SetField(field)
	if fuzziness > 0 {
		mq.SetFuzziness(fuzziness)
	}
	return mq
}

// Stamps returns the stamp of every indexed document of lotID, keyed by document ID.
func (b *BleveIndex) Stamps(ctx context.Context, lotID string) (map[string]string, error) {
	stamps := make(map[string]string)
	total, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get doc count: %w", err)
	}
	if total == 0 {
		return stamps, nil
	}
	lq := bleve.NewTermQuery(lotID)
	lq.SetField("lot_id")
	req := bleve.NewSearchRequestOptions(lq, int(total), 0, false)
	req.Fields = []string{"stamp"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve lot lookup failed: %w", err)
	}
	for _, hit := range results.Hits {
		stamps[hit.ID] = stringField(hit.Fields, "stamp")
	}
	return stamps, nil
}

func stringField(fields map[string]interface{}, name string) string {
	if s, ok := fields[name].(string); ok {
		return s
	}
	return ""
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
