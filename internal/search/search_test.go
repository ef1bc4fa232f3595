package search

import (
	"testing"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	index, err := NewSearchIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func seedCatalog(t *testing.T, index *SearchIndex) {
	t.Helper()
	canteen := domain.Store{ID: "sto-1", Name: "Green Canteen"}
	press := domain.Store{ID: "sto-2", Name: "Campus Press"}
	products := []domain.Product{
		{ID: "prd-1", StoreID: "sto-1", StoreName: canteen.Name, Name: "Steel Water Bottle", Description: "Reusable bottle", EcoPointsCost: 300, OrderCount: 12, Stock: 5},
		{ID: "prd-2", StoreID: "sto-1", StoreName: canteen.Name, Name: "Bamboo Cutlery Set", Description: "Fork, spoon and straw", EcoPointsCost: 150, OrderCount: 30, Stock: 0},
		{ID: "prd-3", StoreID: "sto-2", StoreName: press.Name, Name: "Recycled Notebook", Description: "A5 notebook made from recycled paper", EcoPointsCost: 80, OrderCount: 4, Stock: 20},
	}

	docs := []*SearchDocument{StoreToSearchDocument(canteen), StoreToSearchDocument(press)}
	for _, p := range products {
		docs = append(docs, ProductToSearchDocument(p))
	}
	require.NoError(t, index.IndexDocuments(docs))
}

func ids(res *SearchResult) []string {
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.ID)
	}
	return out
}

func TestNewSearchIndex_Empty(t *testing.T) {
	index := setupTestIndex(t)
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewSearchIndex_Reopen(t *testing.T) {
	dir := t.TempDir()
	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	seedCatalog(t, index)
	require.NoError(t, index.Close())

	reopened, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
}

func TestNewSearchIndex_RecreatesOnMappingChange(t *testing.T) {
	dir := t.TempDir()
	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	seedCatalog(t, index)
	require.NoError(t, index.index.SetInternal(versionKey, []byte("catalog-0")))
	require.NoError(t, index.Close())

	reopened, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
	got, err := reopened.index.GetInternal(versionKey)
	require.NoError(t, err)
	assert.Equal(t, mappingVersion, string(got))
}

func TestSearch_MatchesNameAndStemming(t *testing.T) {
	index := setupTestIndex(t)
	seedCatalog(t, index)

	res, err := index.Search(t.Context(), SearchParams{Query: "bottles", Types: []DocType{DocTypeProduct}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "prd-1", res.Hits[0].ID)
	assert.Equal(t, 300, res.Hits[0].Cost)
	assert.Equal(t, "Green Canteen", res.Hits[0].StoreName)
}

func TestSearch_MatchesStoreName(t *testing.T) {
	index := setupTestIndex(t)
	seedCatalog(t, index)

	res, err := index.Search(t.Context(), SearchParams{Query: "canteen", Types: []DocType{DocTypeProduct}, SortBy: SortName})
	require.NoError(t, err)
	assert.Equal(t, []string{"prd-2", "prd-1"}, ids(res))
}

func TestSearch_FiltersAndSorts(t *testing.T) {
	index := setupTestIndex(t)
	seedCatalog(t, index)

	products := []DocType{DocTypeProduct}

	res, err := index.Search(t.Context(), SearchParams{Types: products, SortBy: SortPriceLow})
	require.NoError(t, err)
	assert.Equal(t, []string{"prd-3", "prd-2", "prd-1"}, ids(res))

	res, err = index.Search(t.Context(), SearchParams{Types: products, SortBy: SortPopularity})
	require.NoError(t, err)
	assert.Equal(t, []string{"prd-2", "prd-1", "prd-3"}, ids(res))

	res, err = index.Search(t.Context(), SearchParams{Types: products, StoreID: "sto-1", InStockOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"prd-1"}, ids(res))
}

func TestSearch_FuzzyTypo(t *testing.T) {
	index := setupTestIndex(t)
	seedCatalog(t, index)

	res, err := index.Search(t.Context(), SearchParams{Query: "notebok"})
	require.NoError(t, err)
	assert.Contains(t, ids(res), "prd-3")
}

func TestRebuild_ClearsDocuments(t *testing.T) {
	index, err := NewSearchIndex(Options{})
	require.NoError(t, err)
	defer index.Close()
	seedCatalog(t, index)

	require.NoError(t, index.Rebuild())
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteDocuments(t *testing.T) {
	index := setupTestIndex(t)
	seedCatalog(t, index)

	require.NoError(t, index.DeleteDocuments([]string{"prd-1", "sto-2"}))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}
