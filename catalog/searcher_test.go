package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureOffers() []Offer {
	return []Offer{
		{
			ID: "1", SKU: "SKU-1", Name: "Кеды Alpha", Vendor: "Gucci",
			Available: true, Price: 45000, Color: "Белый", Gender: "Мужской",
			Categories: []string{"Кеды", "Обувь"}, Material: "Кожа",
			Description: "кожаные кеды alpha",
		},
		{
			ID: "2", SKU: "SKU-2", Name: "Кеды Beta", Vendor: "Off-White",
			Available: true, Price: 90000, Color: "Чёрный", Gender: "Мужской",
			Categories: []string{"Кеды", "Обувь"}, HasDiscount: true,
		},
		{
			ID: "3", SKU: "SKU-3", Name: "Платье Gamma", Vendor: "Dsquared2",
			Available: true, Price: 120000, Color: "Красный", Gender: "Женский",
			Categories: []string{"Платья"},
		},
		{
			ID: "4", SKU: "SKU-4", Name: "Кеды Delta", Vendor: "Gucci",
			Available: false, Price: 50000, Color: "Белый", Gender: "Мужской",
			Categories: []string{"Кеды"},
		},
	}
}

func TestSearcherExcludesUnavailable(t *testing.T) {
	s := NewInMemorySearcher(fixtureOffers()...)

	results, err := s.Search(context.Background(), StructuredQuery{
		Categories: []string{"Кеды"},
		Colors:     []string{"Белый"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "SKU-1", results[0].Offer.SKU)
}

func TestSearcherPriceRangeIsInclusive(t *testing.T) {
	s := NewInMemorySearcher(fixtureOffers()...)

	results, err := s.Search(context.Background(), StructuredQuery{
		MinPrice: 45000,
		MaxPrice: 90000,
	}, 0)
	require.NoError(t, err)
	skus := resultSKUs(results)
	assert.ElementsMatch(t, []string{"SKU-1", "SKU-2"}, skus)
}

func TestSearcherBlockedBrands(t *testing.T) {
	s := NewInMemorySearcher(fixtureOffers()...)

	results, err := s.Search(context.Background(), StructuredQuery{
		Categories:    []string{"Кеды"},
		BlockedBrands: []string{"Off-White"},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"SKU-1"}, resultSKUs(results))
}

func TestSearcherColorsMatchAnyWithinField(t *testing.T) {
	s := NewInMemorySearcher(fixtureOffers()...)

	results, err := s.Search(context.Background(), StructuredQuery{
		Colors: []string{"Белый", "Чёрный"},
	}, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"SKU-1", "SKU-2"}, resultSKUs(results))
}

func TestSearcherDiscountAndGender(t *testing.T) {
	s := NewInMemorySearcher(fixtureOffers()...)

	results, err := s.Search(context.Background(), StructuredQuery{
		Gender:      "Мужской",
		HasDiscount: true,
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"SKU-2"}, resultSKUs(results))
}

func TestSearcherTextRelevanceOrdersResults(t *testing.T) {
	s := NewInMemorySearcher(fixtureOffers()...)

	results, err := s.Search(context.Background(), StructuredQuery{
		Categories: []string{"Кеды"},
		QueryText:  "кожаные кеды",
	}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "SKU-1", results[0].Offer.SKU)
	assert.Greater(t, results[0].Score, results[len(results)-1].Score)
}

func TestQueryRelaxDropsFiltersInOrder(t *testing.T) {
	q := StructuredQuery{
		Brands:     []string{"Gucci"},
		Categories: []string{"Кеды"},
		Colors:     []string{"Белый"},
	}

	require.True(t, q.Relax())
	assert.Empty(t, q.Categories)
	assert.NotEmpty(t, q.Colors)

	require.True(t, q.Relax())
	assert.Empty(t, q.Colors)
	assert.NotEmpty(t, q.Brands)

	require.True(t, q.Relax())
	assert.Empty(t, q.Brands)

	assert.False(t, q.Relax())
}

func resultSKUs(results []ScoredOffer) []string {
	skus := make([]string, len(results))
	for i, r := range results {
		skus[i] = r.Offer.SKU
	}
	return skus
}
