package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Searcher executes a structured query against the catalog and returns
// scored offers, best first.
type Searcher interface {
	Search(ctx context.Context, query StructuredQuery, limit int) ([]ScoredOffer, error)
}

// InMemorySearcher filters an in-memory offer set. Suitable for tests,
// examples and small feeds; swap in a vector-index-backed Searcher for
// production catalogs.
type InMemorySearcher struct {
	mu     sync.RWMutex
	offers []Offer
}

var _ Searcher = (*InMemorySearcher)(nil)

// NewInMemorySearcher creates a searcher over the given offers.
func NewInMemorySearcher(offers ...Offer) *InMemorySearcher {
	return &InMemorySearcher{offers: offers}
}

// Add appends offers to the searchable set.
func (s *InMemorySearcher) Add(offers ...Offer) {
	s.mu.Lock()
	s.offers = append(s.offers, offers...)
	s.mu.Unlock()
}

// Search implements Searcher. Unavailable offers are always excluded; the
// price range is inclusive; brand, color and material lists match any value
// within the field; blocked brands exclude; categories match when any query
// category appears in the offer's category set; gender matches exactly.
// Free-text relevance is token overlap against the offer text.
func (s *InMemorySearcher) Search(ctx context.Context, query StructuredQuery, limit int) ([]ScoredOffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []ScoredOffer
	for _, offer := range s.offers {
		if !matches(offer, query) {
			continue
		}
		results = append(results, ScoredOffer{Offer: offer, Score: relevance(offer, query.QueryText)})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// BySKU returns the offer with the given SKU or vendor SKU, regardless of
// availability. The second return reports whether it was found.
func (s *InMemorySearcher) BySKU(ctx context.Context, sku string) (Offer, bool, error) {
	if err := ctx.Err(); err != nil {
		return Offer{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, offer := range s.offers {
		if strings.EqualFold(offer.SKU, sku) || strings.EqualFold(offer.VendorSKU, sku) {
			return offer, true, nil
		}
	}
	return Offer{}, false, nil
}

func matches(offer Offer, q StructuredQuery) bool {
	if !offer.Available {
		return false
	}
	if q.MinPrice > 0 && float64(offer.Price) < q.MinPrice {
		return false
	}
	if q.MaxPrice > 0 && float64(offer.Price) > q.MaxPrice {
		return false
	}
	if len(q.Brands) > 0 && !anyFoldContains(offer.Vendor, q.Brands) {
		return false
	}
	for _, blocked := range q.BlockedBrands {
		if strings.EqualFold(offer.Vendor, blocked) {
			return false
		}
	}
	if len(q.Colors) > 0 && !anyFoldContains(offer.Color, q.Colors) {
		return false
	}
	if len(q.Materials) > 0 && !anyFoldContains(offer.Material, q.Materials) {
		return false
	}
	if len(q.Categories) > 0 && !anyCategoryMatch(offer.Categories, q.Categories) {
		return false
	}
	if q.Gender != "" && offer.Gender != q.Gender {
		return false
	}
	if q.HasDiscount && !offer.HasDiscount {
		return false
	}
	return true
}

func anyFoldContains(value string, wanted []string) bool {
	lower := strings.ToLower(value)
	for _, w := range wanted {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func anyCategoryMatch(have, wanted []string) bool {
	for _, w := range wanted {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

// relevance is a token overlap score in [0,1]; an empty text query ranks all
// matches equally.
func relevance(offer Offer, queryText string) float64 {
	if queryText == "" {
		return 1.0
	}
	terms := strings.Fields(strings.ToLower(queryText))
	if len(terms) == 0 {
		return 1.0
	}
	text := strings.ToLower(offer.Text())
	hits := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
