package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for item documents.
//
// Titles, creators and abstracts use English stemming. Scope, key and item
// type are keywords so filters are exact. Year is numeric for range queries.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = en.AnalyzerName
	titleField.Store = true
	titleField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("title", titleField)

	creatorsField := bleve.NewTextFieldMapping()
	creatorsField.Analyzer = simple.Name
	creatorsField.Store = true
	creatorsField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("creators", creatorsField)

	// Abstracts are large; searchable but not stored.
	abstractField := bleve.NewTextFieldMapping()
	abstractField.Analyzer = en.AnalyzerName
	abstractField.Store = false
	docMapping.AddFieldMappingsAt("abstract", abstractField)

	publicationField := bleve.NewTextFieldMapping()
	publicationField.Analyzer = simple.Name
	publicationField.Store = true
	docMapping.AddFieldMappingsAt("publication", publicationField)

	for _, name := range []string{"scope", "key", "item_type"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	tagsField := bleve.NewTextFieldMapping()
	tagsField.Analyzer = keyword.Name
	tagsField.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsField)

	yearField := bleve.NewNumericFieldMapping()
	yearField.Store = true
	docMapping.AddFieldMappingsAt("year", yearField)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
