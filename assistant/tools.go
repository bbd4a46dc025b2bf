package assistant

import (
	"context"
	"fmt"

	"github.com/trendwise/stylist/catalog"
	"github.com/trendwise/stylist/tool"
)

// SKUStore resolves a single catalog item by SKU or vendor SKU. The
// in-memory catalog searcher implements it.
type SKUStore interface {
	BySKU(ctx context.Context, sku string) (catalog.Offer, bool, error)
}

var skuParams = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"sku": map[string]any{
			"type":        "string",
			"description": "SKU or vendor article number of the item",
		},
	},
	"required": []string{"sku"},
}

// LookupSKUTool builds the lookup_sku tool over the given store. Lookups
// never require approval.
func LookupSKUTool(store SKUStore) tool.Tool {
	return tool.NewFunctionTool(
		"lookup_sku",
		"Look up a catalog item by its SKU or vendor article number and return its details.",
		skuParams,
		func(ctx context.Context, args map[string]any) (any, error) {
			sku, _ := args["sku"].(string)
			offer, found, err := store.BySKU(ctx, sku)
			if err != nil {
				return nil, err
			}
			if !found {
				return fmt.Sprintf("No item with SKU %q was found in the catalog.", sku), nil
			}
			if !offer.Available {
				return fmt.Sprintf("%s\n\nThis item is currently out of stock.", offer.Text()), nil
			}
			return offer.Text(), nil
		},
	)
}

// ReserveItemTool builds the reserve_item tool over the given store. It is
// approval gated: the invocation suspends until the customer confirms.
func ReserveItemTool(store SKUStore) tool.Tool {
	return tool.NewFunctionTool(
		"reserve_item",
		"Reserve a catalog item for the customer for 24 hours. Requires customer confirmation.",
		skuParams,
		func(ctx context.Context, args map[string]any) (any, error) {
			sku, _ := args["sku"].(string)
			offer, found, err := store.BySKU(ctx, sku)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, tool.NewToolError("reserve_item", fmt.Sprintf("no item with SKU %q", sku), tool.CodeExecution)
			}
			if !offer.Available {
				return nil, tool.NewToolError("reserve_item", fmt.Sprintf("item %q is out of stock", sku), tool.CodeExecution)
			}
			return fmt.Sprintf("Reserved %s (SKU %s) for 24 hours.", offer.Name, offer.SKU), nil
		},
		tool.WithApproval(),
	)
}

// DefaultRegistry builds the registry of built-in catalog tools.
func DefaultRegistry(store SKUStore) (*tool.Registry, error) {
	return tool.NewRegistry(LookupSKUTool(store), ReserveItemTool(store))
}
