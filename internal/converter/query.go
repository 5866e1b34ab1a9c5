package converter

import "github.com/platformbuilds/dashbridge/internal/models"

const QueryLanguage = "kuery"

// BuildQuery returns the search-source query for a panel's targets. No
// translation happens here: the query text stays empty unless an Enricher
// supplies one.
func BuildQuery(_ []models.Target) models.KQLQuery {
	return models.KQLQuery{Query: "", Language: QueryLanguage}
}
