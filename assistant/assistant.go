// Package assistant implements the main conversational workflow: a planning
// step fans out to catalog, fashion-trends and SKU-lookup branches, a join
// barrier collects their results and a finalize step streams the answer.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trendwise/stylist/catalog"
	"github.com/trendwise/stylist/logging"
	"github.com/trendwise/stylist/model"
	"github.com/trendwise/stylist/profile"
	"github.com/trendwise/stylist/session"
	"github.com/trendwise/stylist/tool"
	"github.com/trendwise/stylist/trends"
	"github.com/trendwise/stylist/workflow"
)

// DefaultTimeout bounds one conversational turn end to end, suspended
// approvals included.
const DefaultTimeout = 90 * time.Second

// Reply is the terminal result of one turn.
type Reply struct {
	Text   string
	Offers []catalog.Offer
}

// Options configures an Assistant.
type Options struct {
	// Trends answers fashion-trends queries. Defaults to a static echo
	// provider; wire trends.NewClient for live lookups.
	Trends trends.Provider

	// Profiles resolves customer tokens to style profiles. Nil disables
	// personalization.
	Profiles profile.Store

	// Sessions stores conversation history. Defaults to the in-memory store.
	Sessions session.Store

	// Registry holds the tools available to the SKU branch. Defaults to the
	// built-in catalog tools when the searcher supports SKU lookup.
	Registry *tool.Registry

	// ToolWorkers bounds concurrent tool executions.
	ToolWorkers int

	// MaxToolRounds bounds the tool-calling loop of the SKU branch.
	MaxToolRounds int

	// Timeout is the per-run watchdog deadline.
	Timeout time.Duration

	// Logger receives structured logs. Defaults to no-op.
	Logger logging.Logger
}

// Assistant wires the model, the catalog search child workflow, the trends
// provider and the tool infrastructure into one runnable workflow per turn.
type Assistant struct {
	model    model.Model
	search   *catalog.Search
	trends   trends.Provider
	profiles profile.Store
	sessions session.Store
	registry *tool.Registry
	pool     *tool.WorkerPool
	gate     *tool.ApprovalGate
	logger   logging.Logger
	opts     Options
}

// New creates an Assistant over the given model and catalog searcher.
func New(m model.Model, searcher catalog.Searcher, optFns ...func(o *Options)) (*Assistant, error) {
	opts := Options{
		Trends:        &trends.Static{},
		ToolWorkers:   tool.DefaultWorkers,
		MaxToolRounds: 4,
		Timeout:       DefaultTimeout,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}

	registry := opts.Registry
	if registry == nil {
		store, ok := searcher.(SKUStore)
		if !ok {
			return nil, fmt.Errorf("assistant: searcher does not support SKU lookup, provide a tool registry")
		}
		var err error
		registry, err = DefaultRegistry(store)
		if err != nil {
			return nil, err
		}
	}

	a := &Assistant{
		model:    m,
		trends:   opts.Trends,
		profiles: opts.Profiles,
		sessions: opts.Sessions,
		registry: registry,
		gate:     tool.NewApprovalGate(opts.Logger),
		logger:   opts.Logger,
		opts:     opts,
	}
	a.pool = tool.NewWorkerPool(registry, func(o *tool.PoolOptions) {
		o.Workers = opts.ToolWorkers
		o.Logger = opts.Logger
	})
	a.search = catalog.NewSearch(m, searcher, func(o *catalog.SearchOptions) {
		o.Logger = opts.Logger
	})
	return a, nil
}

// Gate exposes the approval gate, e.g. for resolving approvals out of band.
func (a *Assistant) Gate() *tool.ApprovalGate { return a.gate }

// Workflow assembles the step graph for one turn.
func (a *Assistant) Workflow() (*workflow.Workflow, error) {
	wf := workflow.New(func(o *workflow.Options) {
		o.Timeout = a.opts.Timeout
		o.Logger = a.logger
	})

	steps := []workflow.Step{
		{Name: "plan", Inputs: []string{workflow.KindStart}, Handle: a.plan},
		{Name: "catalog_branch", Inputs: []string{KindCatalogRequest}, Handle: a.catalogBranch},
		{Name: "trends_branch", Inputs: []string{KindTrendsRequest}, Handle: a.trendsBranch},
		{Name: "sku_branch", Inputs: []string{KindSKURequest}, Handle: a.skuBranch},
		{Name: "route_approval", Inputs: []string{KindApproval}, Workers: 4, Handle: a.routeApproval},
		{Name: "finalize", Inputs: []string{workflow.KindCollected}, Handle: a.finalize},
	}
	for _, st := range steps {
		if err := wf.AddStep(st); err != nil {
			return nil, err
		}
	}
	return wf, nil
}

// Ask starts one conversational turn for the given session. The returned
// handle streams observability events and resolves to a Reply. Empty input
// is rejected before anything is scheduled.
func (a *Assistant) Ask(ctx context.Context, sess *session.Session, text string) (*workflow.RunHandle, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &tool.ValidationError{Field: "message", Message: "must not be empty"}
	}

	var customer *profile.Customer
	if a.profiles != nil && sess.CustomerToken != "" {
		found, err := a.profiles.Lookup(ctx, sess.CustomerToken)
		switch {
		case errors.Is(err, profile.ErrNotFound):
			a.logger.Warn("unknown customer token, continuing without profile", "session_id", sess.ID)
		case err != nil:
			return nil, fmt.Errorf("assistant: lookup customer: %w", err)
		default:
			customer = found
		}
	}

	wf, err := a.Workflow()
	if err != nil {
		return nil, err
	}

	history := make([]model.Message, len(sess.History))
	copy(history, sess.History)

	return wf.Run(ctx, workflow.StartEvent{Values: map[string]any{
		"user_msg":   text,
		"history":    history,
		"customer":   customer,
		"session_id": sess.ID,
	}})
}

// Session loads the session with the given id, creating it when absent.
func (a *Assistant) Session(ctx context.Context, id, customerToken string) (*session.Session, error) {
	sess, err := a.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		sess, err = a.sessions.Create(ctx, id)
		if err != nil {
			return nil, err
		}
		if customerToken != "" {
			sess.CustomerToken = customerToken
			if err := a.sessions.Save(ctx, sess); err != nil {
				return nil, err
			}
		}
		return sess, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// RecordTurn appends the exchanged messages to the session history and
// persists it.
func (a *Assistant) RecordTurn(ctx context.Context, sess *session.Session, userText string, reply Reply) error {
	sess.AppendHistory(model.User(userText), model.Assistant(reply.Text))
	return a.sessions.Save(ctx, sess)
}

// definitions converts the registered tools into model tool declarations.
func (a *Assistant) definitions() []model.ToolDefinition {
	tools := a.registry.All()
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
