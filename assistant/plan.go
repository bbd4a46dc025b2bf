package assistant

import "github.com/trendwise/stylist/catalog"

// Plan is the structured output of the planning step. The model either
// answers right away or flags the branches that must run; the flagged
// branches define the join barrier for this turn.
type Plan struct {
	RequestSummary  string `json:"request_summary" description:"Short summary of the customer request in the request language"`
	RightAwayAnswer string `json:"right_away_answer,omitempty" description:"Answer the request right away if nothing else is needed. Leave empty when catalog, trends or SKU lookup should run."`

	CatalogSearchRequired bool                     `json:"catalog_search_required" description:"Whether a catalog search is required"`
	SearchQuery           *catalog.StructuredQuery `json:"search_query,omitempty" description:"Structured query for the catalog search"`

	TrendsSearchRequired bool   `json:"trends_search_required" description:"Whether a fashion trends search is required"`
	TrendsQuery          string `json:"trends_query,omitempty" description:"Query for the fashion trends search"`

	SKULookupRequired bool   `json:"sku_lookup_required" description:"Whether the customer asks about a specific item by SKU or article number"`
	SKUQuery          string `json:"sku_query,omitempty" description:"The customer question about the specific item, including the SKU"`
}

// BranchKinds returns the result-event kinds of every flagged branch. An
// empty slice means the plan answers right away.
func (p Plan) BranchKinds() []string {
	var kinds []string
	if p.CatalogSearchRequired {
		kinds = append(kinds, KindCatalogResult)
	}
	if p.TrendsSearchRequired {
		kinds = append(kinds, KindTrendsResult)
	}
	if p.SKULookupRequired {
		kinds = append(kinds, KindSKUResult)
	}
	return kinds
}

const planPrompt = `You are a helpful shopping assistant that helps the customer find the best offer for their request. Please answer in the request language.
You will be given a customer request and you will need to create a short summary of it.
You will also need to determine if a catalog search, a fashion trends search or a SKU lookup is required.

If a catalog search is required, create a structured query for it from the customer request and the conversation context.
If a fashion trends search is required, create a query for it from the customer request and the conversation context.
If the customer asks about a specific item by SKU or article number, flag the SKU lookup and pass the question through.
If you can answer the customer request right away (the customer just wants to chat), please do so, but remember, you are a friendly shopping assistant, not a chatbot.`

const finalizePrompt = `You are a helpful shopping assistant that helps the customer find the best offer for their request.
Please create a short and concise answer to the customer request in the request language.`

const skuSystemPrompt = `You are a shopping assistant answering a customer question about a specific catalog item.
Use the available tools to look the item up and, only when the customer explicitly asks to hold or reserve it, to reserve it.
Answer in the request language with the item details you found.`
