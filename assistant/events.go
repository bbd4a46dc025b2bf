package assistant

import (
	"github.com/trendwise/stylist/catalog"
)

// Event kinds produced by the main workflow. Request/result pairs route the
// fan-out branches; the remaining kinds are observability events written to
// the run stream for the wire consumer.
const (
	KindPlanResult     = "assistant.plan_result"
	KindCatalogRequest = "assistant.catalog_request"
	KindCatalogResult  = "assistant.catalog_result"
	KindTrendsRequest  = "assistant.trends_request"
	KindTrendsResult   = "assistant.trends_result"
	KindSKURequest     = "assistant.sku_request"
	KindSKUResult      = "assistant.sku_result"
	KindApproval       = "assistant.approval"
	KindToolCall       = "assistant.tool_call"
	KindToolResult     = "assistant.tool_result"
	KindAgentRun       = "assistant.agent_run"
	KindTextDelta      = "assistant.text_delta"
)

// Agent names used in AgentRunEvent, mapped to the labels chat clients show.
const (
	AgentMain    = "main"
	AgentCatalog = "query_catalog_tool"
	AgentTrends  = "fetch_fashion_trends"
	AgentSKU     = "sku_lookup_tool"
)

var agentDisplayNames = map[string]string{
	AgentMain:    "Ассистент",
	AgentCatalog: "Поиск в каталоге",
	AgentTrends:  "Эксперт по стилю",
	AgentSKU:     "Поиск по артикулу",
}

// AgentDisplayName maps an internal agent name onto the label chat clients
// show. Unknown names pass through unchanged.
func AgentDisplayName(agent string) string {
	if name, ok := agentDisplayNames[agent]; ok {
		return name
	}
	return agent
}

// PlanResultEvent carries the structured plan into the join barrier so the
// finalize step always has the request summary alongside the branch results.
type PlanResultEvent struct {
	Plan Plan
}

// Kind implements workflow.Event.
func (PlanResultEvent) Kind() string { return KindPlanResult }

// CatalogRequestEvent triggers the catalog branch. Query carries the
// structured filters merged with the customer profile; InputText keeps the
// raw request so the child can extract filters itself when Query is empty.
type CatalogRequestEvent struct {
	Query     catalog.StructuredQuery
	InputText string
}

// Kind implements workflow.Event.
func (CatalogRequestEvent) Kind() string { return KindCatalogRequest }

// CatalogResultEvent completes the catalog branch.
type CatalogResultEvent struct {
	Result catalog.SearchResult
}

// Kind implements workflow.Event.
func (CatalogResultEvent) Kind() string { return KindCatalogResult }

// TrendsRequestEvent triggers the fashion-trends branch.
type TrendsRequestEvent struct {
	Query string
}

// Kind implements workflow.Event.
func (TrendsRequestEvent) Kind() string { return KindTrendsRequest }

// TrendsResultEvent completes the fashion-trends branch.
type TrendsResultEvent struct {
	Text string
}

// Kind implements workflow.Event.
func (TrendsResultEvent) Kind() string { return KindTrendsResult }

// SKURequestEvent triggers the SKU lookup branch, a tool-calling loop over
// the registered catalog tools.
type SKURequestEvent struct {
	Query string
}

// Kind implements workflow.Event.
func (SKURequestEvent) Kind() string { return KindSKURequest }

// SKUResultEvent completes the SKU lookup branch.
type SKUResultEvent struct {
	Text string
}

// Kind implements workflow.Event.
func (SKUResultEvent) Kind() string { return KindSKUResult }

// ApprovalEvent is injected from outside the run (RunHandle.Send) to resolve
// a tool invocation suspended on the approval gate.
type ApprovalEvent struct {
	InvocationID string
	Approved     bool
	Reason       string
}

// Kind implements workflow.Event.
func (ApprovalEvent) Kind() string { return KindApproval }

// ToolCallEvent announces a tool invocation on the stream before it runs or
// suspends for approval.
type ToolCallEvent struct {
	InvocationID  string
	Name          string
	Args          map[string]any
	NeedsApproval bool
}

// Kind implements workflow.Event.
func (ToolCallEvent) Kind() string { return KindToolCall }

// ToolResultEvent reports the outcome of a tool invocation on the stream.
type ToolResultEvent struct {
	InvocationID string
	Name         string
	Text         string
	Failed       bool
}

// Kind implements workflow.Event.
func (ToolResultEvent) Kind() string { return KindToolResult }

// AgentRunEvent is a human-readable progress note attributed to one of the
// workflow's agents.
type AgentRunEvent struct {
	Agent   string
	Message string
}

// Kind implements workflow.Event.
func (AgentRunEvent) Kind() string { return KindAgentRun }

// DisplayName returns the client-facing label for the emitting agent.
func (e AgentRunEvent) DisplayName() string {
	return AgentDisplayName(e.Agent)
}

// TextDeltaEvent carries one chunk of the streamed answer text.
type TextDeltaEvent struct {
	Delta string
}

// Kind implements workflow.Event.
func (TextDeltaEvent) Kind() string { return KindTextDelta }
