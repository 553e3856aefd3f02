package search

import (
	"strings"

	"github.com/hyperjump/lotdocs/internal/models"
)

// ProcessQuery collapses whitespace in the query text, then validates it and applies defaults.
func ProcessQuery(query *models.SearchQuery) error {
	query.Query = strings.Join(strings.Fields(query.Query), " ")
	query.LotID = strings.TrimSpace(query.LotID)
	return query.Validate()
}
