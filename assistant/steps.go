package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/trendwise/stylist/catalog"
	"github.com/trendwise/stylist/model"
	"github.com/trendwise/stylist/profile"
	"github.com/trendwise/stylist/tool"
	"github.com/trendwise/stylist/workflow"
)

// plan derives the structured plan from the customer request, installs the
// join barrier for the flagged branches and fans out the branch requests.
// The barrier must exist before any branch event is enqueued, so a fast
// branch cannot complete against a missing expected set.
func (a *Assistant) plan(rc *workflow.RunContext, ev workflow.Event) ([]workflow.Event, error) {
	start := ev.(workflow.StartEvent)
	userMsg := start.GetString("user_msg", "")
	if userMsg == "" {
		return nil, fmt.Errorf("assistant: start event carries no user message")
	}

	rc.Set("start_time", time.Now())
	rc.Set("user_msg", userMsg)

	if err := rc.WriteToStream(AgentRunEvent{Agent: AgentMain, Message: "Обрабатываем ваш запрос..."}); err != nil {
		return nil, err
	}

	system := planPrompt
	customer, _ := start.Get("customer", nil).(*profile.Customer)
	if customer != nil {
		system += "\n\n" + customer.PromptDescription()
	}

	msgs := []model.Message{model.System(system)}
	if history, ok := start.Get("history", nil).([]model.Message); ok {
		msgs = append(msgs, history...)
	}
	msgs = append(msgs, model.User(userMsg))

	var plan Plan
	if err := a.model.StructuredChat(rc.Context(), msgs, &plan); err != nil {
		return nil, fmt.Errorf("plan request: %w", err)
	}
	rc.Logger().Info("request planned",
		"summary", plan.RequestSummary,
		"catalog", plan.CatalogSearchRequired,
		"trends", plan.TrendsSearchRequired,
		"sku", plan.SKULookupRequired)

	if plan.RightAwayAnswer != "" {
		if err := rc.WriteToStream(TextDeltaEvent{Delta: plan.RightAwayAnswer}); err != nil {
			return nil, err
		}
		return []workflow.Event{workflow.StopEvent{Result: Reply{Text: plan.RightAwayAnswer}}}, nil
	}

	expected := append([]string{KindPlanResult}, plan.BranchKinds()...)
	if err := rc.MakeBarrier(expected...); err != nil {
		return nil, err
	}

	outs := []workflow.Event{PlanResultEvent{Plan: plan}}
	if plan.CatalogSearchRequired {
		var query catalog.StructuredQuery
		if plan.SearchQuery != nil {
			query = *plan.SearchQuery
		}
		if customer != nil {
			customer.ApplyTo(&query)
		}
		outs = append(outs, CatalogRequestEvent{Query: query, InputText: userMsg})
	}
	if plan.TrendsSearchRequired {
		outs = append(outs, TrendsRequestEvent{Query: plan.TrendsQuery})
	}
	if plan.SKULookupRequired {
		query := plan.SKUQuery
		if query == "" {
			query = userMsg
		}
		outs = append(outs, SKURequestEvent{Query: query})
	}
	return outs, nil
}

// catalogBranch runs the catalog search child workflow, relaying its stream
// onto the parent run.
func (a *Assistant) catalogBranch(rc *workflow.RunContext, ev workflow.Event) ([]workflow.Event, error) {
	req := ev.(CatalogRequestEvent)

	if err := rc.WriteToStream(AgentRunEvent{Agent: AgentCatalog, Message: "Начинаем поиск."}); err != nil {
		return nil, err
	}

	child, err := a.search.Workflow()
	if err != nil {
		return nil, err
	}

	values := map[string]any{"input_query": req.InputText}
	if !req.Query.IsEmpty() {
		values["structured_query"] = req.Query
	}

	res, err := workflow.RunChild(rc, child, workflow.StartEvent{Values: values})
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	result, _ := res.(catalog.SearchResult)

	if err := rc.WriteToStream(AgentRunEvent{Agent: AgentCatalog, Message: "Завершаем поиск."}); err != nil {
		return nil, err
	}
	return []workflow.Event{CatalogResultEvent{Result: result}}, nil
}

// trendsBranch fetches fashion-trend notes from the configured provider.
func (a *Assistant) trendsBranch(rc *workflow.RunContext, ev workflow.Event) ([]workflow.Event, error) {
	req := ev.(TrendsRequestEvent)

	if err := rc.WriteToStream(AgentRunEvent{Agent: AgentTrends, Message: "Начинаем поиск информации о модных трендах."}); err != nil {
		return nil, err
	}

	text, err := a.trends.Fetch(rc.Context(), req.Query)
	if err != nil {
		return nil, fmt.Errorf("fetch trends: %w", err)
	}

	if err := rc.WriteToStream(AgentRunEvent{Agent: AgentTrends, Message: "Завершаем поиск."}); err != nil {
		return nil, err
	}
	return []workflow.Event{TrendsResultEvent{Text: text}}, nil
}

// skuBranch answers an item-specific question through a bounded tool-calling
// loop. Approval-gated tools suspend the branch until an ApprovalEvent is
// injected; everything else goes straight through the worker pool. Tool
// failures come back as result text so the conversation continues.
func (a *Assistant) skuBranch(rc *workflow.RunContext, ev workflow.Event) ([]workflow.Event, error) {
	req := ev.(SKURequestEvent)
	ctx := rc.Context()

	if err := rc.WriteToStream(AgentRunEvent{Agent: AgentSKU, Message: "Ищем информацию о товаре."}); err != nil {
		return nil, err
	}

	msgs := []model.Message{model.System(skuSystemPrompt), model.User(req.Query)}
	defs := a.definitions()

	var lastReply string
	for round := 0; round < a.opts.MaxToolRounds; round++ {
		reply, calls, err := a.model.ChatWithTools(ctx, msgs, defs)
		if err != nil {
			return nil, fmt.Errorf("sku lookup: %w", err)
		}
		if len(calls) == 0 {
			return []workflow.Event{SKUResultEvent{Text: reply.Content}}, nil
		}
		lastReply = reply.Content
		msgs = append(msgs, model.Message{Role: model.RoleAssistant, Content: reply.Content, ToolCalls: calls})

		for _, call := range calls {
			res, err := a.runToolCall(rc, call)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, model.ToolResult(call.ID, res.Text))
		}
	}

	if lastReply == "" {
		lastReply = "Не удалось завершить поиск информации о товаре."
	}
	return []workflow.Event{SKUResultEvent{Text: lastReply}}, nil
}

// runToolCall executes one model-requested tool call: announce it on the
// stream, suspend on the gate when the tool requires approval, then submit
// to the pool and report the outcome. The pool refuses to execute rejected
// invocations and returns their synthesized result instead.
func (a *Assistant) runToolCall(rc *workflow.RunContext, call model.ToolCall) (tool.Result, error) {
	args, err := call.ArgsMap()
	if err != nil {
		args = map[string]any{}
	}
	inv := tool.NewInvocation(call.Name, args)

	needsApproval := false
	if t, ok := a.registry.Lookup(call.Name); ok {
		needsApproval = t.RequiresApproval()
	}

	if err := rc.WriteToStream(ToolCallEvent{
		InvocationID:  inv.ID,
		Name:          call.Name,
		Args:          args,
		NeedsApproval: needsApproval,
	}); err != nil {
		return tool.Result{}, err
	}

	if needsApproval {
		if _, err := a.gate.Await(rc.Context(), inv); err != nil {
			return tool.Result{}, err
		}
	}

	res := a.pool.Submit(rc.Context(), inv)
	if err := rc.WriteToStream(ToolResultEvent{
		InvocationID: inv.ID,
		Name:         call.Name,
		Text:         res.Text,
		Failed:       res.Failed,
	}); err != nil {
		return tool.Result{}, err
	}
	return res, nil
}

// routeApproval forwards externally injected approval verdicts to the gate.
// Unknown invocation ids are logged and ignored.
func (a *Assistant) routeApproval(rc *workflow.RunContext, ev workflow.Event) ([]workflow.Event, error) {
	appr := ev.(ApprovalEvent)
	if !a.gate.Resolve(appr.InvocationID, appr.Approved, appr.Reason) {
		rc.Logger().Warn("approval for unknown invocation ignored", "invocation_id", appr.InvocationID)
	}
	return nil, nil
}

// finalize composes the answer from the collected branch results and streams
// it token by token.
func (a *Assistant) finalize(rc *workflow.RunContext, ev workflow.Event) ([]workflow.Event, error) {
	collected := ev.(workflow.CollectedEvent)

	if err := rc.WriteToStream(AgentRunEvent{Agent: AgentMain, Message: "Подводим итоги."}); err != nil {
		return nil, err
	}

	planEv, ok := collected.ByKind(KindPlanResult).(PlanResultEvent)
	if !ok {
		return nil, fmt.Errorf("assistant: collected events carry no plan result")
	}

	var contextParts []string
	var offers []catalog.Offer

	if cev, ok := collected.ByKind(KindCatalogResult).(CatalogResultEvent); ok {
		offers = cev.Result.Validated
		texts := make([]string, 0, len(offers))
		for _, offer := range offers {
			texts = append(texts, offer.Text())
		}
		contextParts = append(contextParts,
			fmt.Sprintf("We have executed a catalog search and found the following offers:\n%s\nPlease offer the customer a short summary.", strings.Join(texts, "\n\n")))
	}
	if tev, ok := collected.ByKind(KindTrendsResult).(TrendsResultEvent); ok {
		contextParts = append(contextParts,
			fmt.Sprintf("We have executed a fashion trends search and found the following information: %s", tev.Text))
	}
	if sev, ok := collected.ByKind(KindSKUResult).(SKUResultEvent); ok {
		contextParts = append(contextParts,
			fmt.Sprintf("We have looked the item up: %s", sev.Text))
	}

	system := finalizePrompt
	if len(contextParts) > 0 {
		system += "\n\n" + strings.Join(contextParts, "\n\n")
	}
	msgs := []model.Message{
		model.System(system),
		model.User(planEv.Plan.RequestSummary),
	}

	chunks, errs := a.model.ChatStream(rc.Context(), msgs)
	var answer strings.Builder
	for chunk := range chunks {
		answer.WriteString(chunk)
		if err := rc.WriteToStream(TextDeltaEvent{Delta: chunk}); err != nil {
			return nil, err
		}
	}
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("finalize answer: %w", err)
	}

	startTime, _ := rc.Get("start_time", time.Now()).(time.Time)
	elapsed := time.Since(startTime)
	if err := rc.WriteToStream(AgentRunEvent{
		Agent:   AgentMain,
		Message: fmt.Sprintf("Завершаем работу. Запрос выполнен за %.2f секунд.", elapsed.Seconds()),
	}); err != nil {
		return nil, err
	}

	return []workflow.Event{workflow.StopEvent{Result: Reply{Text: answer.String(), Offers: offers}}}, nil
}
