// Package catalog provides the product catalog domain: structured queries,
// offers, a filtered searcher and the search child workflow (query extraction,
// relaxation retries and LLM relevance validation).
package catalog

import (
	"fmt"
	"strings"
)

// Offer is a product offer from the catalog feed.
type Offer struct {
	ID        string `json:"id"`
	SKU       string `json:"sku"`
	VendorSKU string `json:"vendor_sku,omitempty"`

	Name      string `json:"name"`
	Available bool   `json:"available"`
	Price     int    `json:"price,omitempty"`
	OldPrice  int    `json:"old_price,omitempty"`
	Vendor    string `json:"vendor,omitempty"`

	Picture     string `json:"picture,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`

	Color         string   `json:"color,omitempty"`
	DesignCountry string   `json:"design_country,omitempty"`
	Gender        string   `json:"gender,omitempty"`
	Season        string   `json:"season,omitempty"`
	Material      string   `json:"material,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	HasDiscount   bool     `json:"has_discount,omitempty"`
}

// Text renders the offer for relevance scoring prompts.
func (o Offer) Text() string {
	var lines []string
	for _, s := range []string{o.Name, o.Vendor, o.Description, o.DesignCountry} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

// MarkdownCard renders the offer as a compact markdown card for chat clients.
func (o Offer) MarkdownCard() string {
	var b strings.Builder
	title := o.Name
	if o.Vendor != "" {
		title = o.Vendor + " " + o.Name
	}
	if o.URL != "" {
		fmt.Fprintf(&b, "**[%s](%s)**", title, o.URL)
	} else {
		fmt.Fprintf(&b, "**%s**", title)
	}
	if o.Price > 0 {
		fmt.Fprintf(&b, "\n%d ₽", o.Price)
		if o.OldPrice > o.Price {
			fmt.Fprintf(&b, " ~~%d ₽~~", o.OldPrice)
		}
	}
	if o.Picture != "" {
		fmt.Fprintf(&b, "\n![%s](%s)", o.Name, o.Picture)
	}
	return b.String()
}

// ScoredOffer pairs an offer with its retrieval score.
type ScoredOffer struct {
	Offer Offer   `json:"offer"`
	Score float64 `json:"score"`
}

// SearchResult is the terminal result of the search child workflow: offers
// the relevance validation accepted (sorted by score, best first) and the
// ones it filtered out.
type SearchResult struct {
	Validated []Offer `json:"validated_offers"`
	Rejected  []Offer `json:"not_validated_offers"`
}
