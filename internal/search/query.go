package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Sort orders for catalog searches.
const (
	SortRelevance  = "relevance"
	SortPopularity = "popularity"
	SortPriceLow   = "price-low"
	SortPriceHigh  = "price-high"
	SortName       = "name"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query       string
	Types       []DocType // empty = all
	StoreID     string
	InStockOnly bool
	Limit       int
	Offset      int
	SortBy      string
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:  50,
		SortBy: SortRelevance,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID         string            `json:"id"`
	Type       DocType           `json:"type"`
	Score      float64           `json:"score"`
	Name       string            `json:"name"`
	StoreName  string            `json:"store_name,omitempty"`
	Cost       int               `json:"cost,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search executes a catalog query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(req, params.SortBy)

	if params.Query != "" {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("name")
	}
	req.Fields = []string{"type", "name", "store_name", "cost"}

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
		h := SearchHit{ID: hit.ID, Score: hit.Score}
		if t, ok := hit.Fields["type"].(string); ok {
			h.Type = DocType(t)
		}
		if n, ok := hit.Fields["name"].(string); ok {
			h.Name = n
		}
		if sn, ok := hit.Fields["store_name"].(string); ok {
			h.StoreName = sn
		}
		if c, ok := hit.Fields["cost"].(float64); ok {
			h.Cost = int(c)
		}
		for field, fragments := range hit.Fragments {
			if len(fragments) == 0 {
				continue
			}
			if h.Highlights == nil {
				h.Highlights = make(map[string]string)
			}
			h.Highlights[field] = fragments[0]
		}
		result.Hits = append(result.Hits, h)
	}
	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		storeMatch := bleve.NewMatchQuery(q)
		storeMatch.SetField("store_name")
		storeMatch.SetBoost(1.5)

		descMatch := bleve.NewMatchQuery(q)
		descMatch.SetField("description")

		// Typo tolerance on names.
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("name")
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{nameMatch, storeMatch, descMatch, fuzzy}

		// Search as you type.
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("name")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(params.Types) > 0 {
		typeQueries := make([]query.Query, len(params.Types))
		for i, t := range params.Types {
			tq := bleve.NewTermQuery(string(t))
			tq.SetField("type")
			typeQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(typeQueries...))
	}

	if params.StoreID != "" {
		sq := bleve.NewTermQuery(params.StoreID)
		sq.SetField("store_id")
		queries = append(queries, sq)
	}

	if params.InStockOnly {
		bq := bleve.NewBoolFieldQuery(true)
		bq.SetField("in_stock")
		queries = append(queries, bq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// addSorting configures sort order; ties fall back to the name.
func addSorting(req *bleve.SearchRequest, sortBy string) {
	switch sortBy {
	case SortPopularity:
		req.SortBy([]string{"-popularity", "name_sort"})
	case SortPriceLow:
		req.SortBy([]string{"cost", "name_sort"})
	case SortPriceHigh:
		req.SortBy([]string{"-cost", "name_sort"})
	case SortName:
		req.SortBy([]string{"name_sort"})
	default:
		req.SortBy([]string{"-_score", "name_sort"})
	}
}
