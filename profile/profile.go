// Package profile stores customer profiles and merges their style
// preferences into catalog queries and planning prompts.
package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/trendwise/stylist/catalog"
)

// ErrNotFound is returned when no customer matches the given token.
var ErrNotFound = errors.New("profile: customer not found")

// Customer is a shopper profile.
type Customer struct {
	ID               int64    `json:"id"`
	Token            string   `json:"token"`
	Name             string   `json:"name"`
	Age              int      `json:"age,omitempty"`
	Gender           string   `json:"gender,omitempty"`
	Description      string   `json:"description,omitempty"`
	StylePreferences string   `json:"style_preferences,omitempty"`
	LikedBrands      []string `json:"liked_brands,omitempty"`
	DislikedBrands   []string `json:"disliked_brands,omitempty"`
}

// Store resolves customers by their API token.
type Store interface {
	Lookup(ctx context.Context, token string) (*Customer, error)
}

// ApplyTo merges the profile into a structured query: preferred gender fills
// a missing gender filter and disliked brands extend the blocked list. The
// customer's own filters never override explicit request filters.
func (c *Customer) ApplyTo(q *catalog.StructuredQuery) {
	if q.Gender == "" && c.Gender != "" {
		q.Gender = c.Gender
	}
	for _, brand := range c.DislikedBrands {
		if !containsFold(q.BlockedBrands, brand) {
			q.BlockedBrands = append(q.BlockedBrands, brand)
		}
	}
}

// PromptDescription renders the profile for planning prompts.
func (c *Customer) PromptDescription() string {
	var parts []string
	if c.Name != "" {
		parts = append(parts, "Customer: "+c.Name)
	}
	if c.Gender != "" {
		parts = append(parts, "Gender: "+c.Gender)
	}
	if c.Description != "" {
		parts = append(parts, c.Description)
	}
	if c.StylePreferences != "" {
		parts = append(parts, "Style preferences: "+c.StylePreferences)
	}
	if len(c.LikedBrands) > 0 {
		parts = append(parts, "Liked brands: "+strings.Join(c.LikedBrands, ", "))
	}
	if len(c.DislikedBrands) > 0 {
		parts = append(parts, "Disliked brands: "+strings.Join(c.DislikedBrands, ", "))
	}
	return strings.Join(parts, "\n")
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
