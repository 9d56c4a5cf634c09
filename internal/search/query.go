package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/zotairo/zotairo-server/internal/domain"
)

// SearchParams configures a search query.
type SearchParams struct {
	Scope    domain.Scope
	Query    string
	ItemType string // exact itemType filter (optional)
	MinYear  int
	MaxYear  int
	Limit    int
	Offset   int
}

// SearchResult holds one page of hits.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit is one matching item.
type SearchHit struct {
	Key        string            `json:"key"`
	Title      string            `json:"title"`
	Creators   string            `json:"creators,omitempty"`
	ItemType   string            `json:"itemType"`
	Year       int               `json:"year,omitempty"`
	Score      float64           `json:"score"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Search runs a scoped query over titles, creators, abstracts and tags.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), limit, max(params.Offset, 0), false)
	req.SortBy([]string{"-_score", "title"})
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("title")
	req.Highlight.AddField("creators")
	req.Fields = []string{"key", "title", "creators", "item_type", "year"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		h := SearchHit{Score: hit.Score}
		if v, ok := hit.Fields["key"].(string); ok {
			h.Key = v
		}
		if v, ok := hit.Fields["title"].(string); ok {
			h.Title = v
		}
		if v, ok := hit.Fields["creators"].(string); ok {
			h.Creators = v
		}
		if v, ok := hit.Fields["item_type"].(string); ok {
			h.ItemType = v
		}
		if v, ok := hit.Fields["year"].(float64); ok {
			h.Year = int(v)
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string, len(hit.Fragments))
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}
	return result, nil
}

// buildSearchQuery ANDs the scope filter with an OR over the text fields.
func buildSearchQuery(params SearchParams) query.Query {
	scopeQuery := bleve.NewTermQuery(scopeKey(params.Scope))
	scopeQuery.SetField("scope")
	queries := []query.Query{scopeQuery}

	if q := strings.TrimSpace(params.Query); q != "" {
		title := bleve.NewMatchQuery(q)
		title.SetField("title")
		title.SetBoost(3.0)

		creators := bleve.NewMatchQuery(q)
		creators.SetField("creators")
		creators.SetBoost(2.0)

		abstract := bleve.NewMatchQuery(q)
		abstract.SetField("abstract")

		tag := bleve.NewTermQuery(q)
		tag.SetField("tags")
		tag.SetBoost(1.5)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		text := []query.Query{title, creators, abstract, tag, fuzzy}
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	if params.ItemType != "" {
		tq := bleve.NewTermQuery(params.ItemType)
		tq.SetField("item_type")
		queries = append(queries, tq)
	}

	if params.MinYear > 0 || params.MaxYear > 0 {
		lo := float64(params.MinYear)
		hi := float64(params.MaxYear)
		if params.MaxYear == 0 {
			hi = 3000
		}
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		rq.SetField("year")
		queries = append(queries, rq)
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}
