package catalog

import (
	"strconv"
	"strings"
)

// StructuredQuery is the filter set extracted from a shopping request. All
// fields are optional; empty fields do not constrain the search.
type StructuredQuery struct {
	Brands        []string `json:"brands,omitempty" description:"List of brand names (e.g. \"Gucci\", \"Dsquared2\")."`
	BlockedBrands []string `json:"blocked_brands,omitempty" description:"List of brand names to exclude."`
	Categories    []string `json:"categories,omitempty" description:"List of product categories in Russian, plural (e.g. \"Платья\", \"Кеды\")."`
	Colors        []string `json:"colors,omitempty" description:"List of colors (e.g. \"Чёрный\", \"Белый\")."`
	Gender        string   `json:"gender,omitempty" description:"Gender category (\"Мужской\", \"Женский\", \"Детский\")."`
	MinPrice      float64  `json:"min_price,omitempty" description:"Minimum price filter."`
	MaxPrice      float64  `json:"max_price,omitempty" description:"Maximum price filter."`
	Materials     []string `json:"materials,omitempty" description:"List of materials (e.g. \"Хлопок\", \"Кашемир\")."`
	QueryText     string   `json:"query_text,omitempty" description:"Free-form text query covering details not captured by other fields."`
	HasDiscount   bool     `json:"has_discount,omitempty" description:"Whether the product has a discount."`
}

// IsEmpty reports whether no field constrains the search.
func (q StructuredQuery) IsEmpty() bool {
	return len(q.Brands) == 0 && len(q.BlockedBrands) == 0 && len(q.Categories) == 0 &&
		len(q.Colors) == 0 && q.Gender == "" && q.MinPrice == 0 && q.MaxPrice == 0 &&
		len(q.Materials) == 0 && q.QueryText == "" && !q.HasDiscount
}

// ShortDescription creates a short text description of the query including
// only set fields, for progress messages.
func (q StructuredQuery) ShortDescription() string {
	var parts []string
	add := func(label string, values []string) {
		if len(values) > 0 {
			parts = append(parts, label+": "+strings.Join(values, ", "))
		}
	}
	add("бренды", q.Brands)
	if len(q.BlockedBrands) > 0 {
		parts = append(parts, "исключая бренды: "+strings.Join(q.BlockedBrands, ", "))
	}
	add("категории", q.Categories)
	add("цвета", q.Colors)
	if q.Gender != "" {
		parts = append(parts, "пол: "+q.Gender)
	}
	if q.MinPrice > 0 {
		parts = append(parts, "цена от "+trimFloat(q.MinPrice))
	}
	if q.MaxPrice > 0 {
		parts = append(parts, "цена до "+trimFloat(q.MaxPrice))
	}
	add("материалы", q.Materials)
	if q.QueryText != "" {
		parts = append(parts, "поиск: "+q.QueryText)
	}
	if q.HasDiscount {
		parts = append(parts, "со скидкой")
	}
	return strings.Join(parts, "; ")
}

// Relax drops the most restrictive remaining filter and reports whether
// anything was dropped. Rounds widen the search when a query returns nothing:
// categories first, then colors, then brands.
func (q *StructuredQuery) Relax() bool {
	switch {
	case len(q.Categories) > 0:
		q.Categories = nil
	case len(q.Colors) > 0:
		q.Colors = nil
	case len(q.Brands) > 0:
		q.Brands = nil
	default:
		return false
	}
	return true
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
