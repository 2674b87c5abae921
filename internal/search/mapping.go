package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for book documents.
// Title and author get English stemming with term vectors for
// highlighting; genre and tags use the keyword analyzer so filters and
// facets match exactly; ratings and dates are numeric for range queries
// and sorting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	addText := func(field, analyzer string, store, vectors bool) {
		m := bleve.NewTextFieldMapping()
		m.Analyzer = analyzer
		m.Store = store
		m.IncludeTermVectors = vectors
		docMapping.AddFieldMappingsAt(field, m)
	}
	addNumeric := func(field string) {
		m := bleve.NewNumericFieldMapping()
		m.Store = true
		docMapping.AddFieldMappingsAt(field, m)
	}

	// Full-text fields. The description is searchable but not stored
	// since it can be large.
	addText("name", en.AnalyzerName, true, true)
	addText("author", en.AnalyzerName, true, true)
	addText("description", en.AnalyzerName, false, false)

	// Exact-match fields. The keyword analyzer keeps compound tag slugs
	// such as "slow-burn" intact.
	addText("id", keyword.Name, false, false)
	addText("genre", keyword.Name, true, false)
	addText("tags", keyword.Name, true, true)

	// Numeric fields for range filters and recency sorting.
	addNumeric("avg_rating")
	addNumeric("rating_count")
	addNumeric("publish_year")
	addNumeric("created_at")
	addNumeric("updated_at")

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
