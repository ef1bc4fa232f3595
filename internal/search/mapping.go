package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for catalog documents.
//
// Names and descriptions use English stemming so "bottles" finds "bottle".
// Store names use the simple analyzer: they are proper nouns.
// Type and ids are keywords for exact filtering; cost and popularity are
// numeric for range filters and sorting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true

	// Keyword copy of the name for alphabetical sorting.
	sortNameMapping := bleve.NewTextFieldMapping()
	sortNameMapping.Name = "name_sort"
	sortNameMapping.Analyzer = keyword.Name
	sortNameMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("name", nameFieldMapping, sortNameMapping)

	descFieldMapping := bleve.NewTextFieldMapping()
	descFieldMapping.Analyzer = en.AnalyzerName
	descFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("description", descFieldMapping)

	storeNameFieldMapping := bleve.NewTextFieldMapping()
	storeNameFieldMapping.Analyzer = simple.Name
	storeNameFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("store_name", storeNameFieldMapping)

	for _, field := range []string{"type", "id", "store_id"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = field != "id"
		docMapping.AddFieldMappingsAt(field, fm)
	}

	stockFieldMapping := bleve.NewBooleanFieldMapping()
	stockFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("in_stock", stockFieldMapping)

	costFieldMapping := bleve.NewNumericFieldMapping()
	costFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("cost", costFieldMapping)

	popularityFieldMapping := bleve.NewNumericFieldMapping()
	popularityFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("popularity", popularityFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
