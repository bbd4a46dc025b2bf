package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trendwise/stylist/internal/util"
	"github.com/trendwise/stylist/logging"
	"github.com/trendwise/stylist/model"
	"github.com/trendwise/stylist/workflow"
)

// Event kinds emitted by the search child workflow.
const (
	KindQueryReady     = "catalog.query_ready"
	KindQueryResults   = "catalog.query_results"
	KindValidated      = "catalog.validated"
	KindOffersFound    = "catalog.offers_found"
	KindOffersFiltered = "catalog.offers_filtered"
)

// QueryReadyEvent carries the structured query into the search step.
type QueryReadyEvent struct {
	Query StructuredQuery
}

func (QueryReadyEvent) Kind() string { return KindQueryReady }

// QueryResultsEvent carries retrieved candidates into validation.
type QueryResultsEvent struct {
	Offers []ScoredOffer
	// RelaxRounds counts how many filters were dropped to find results.
	RelaxRounds int
}

func (QueryResultsEvent) Kind() string { return KindQueryResults }

// ValidatedEvent carries the validation verdicts into the terminal step.
type ValidatedEvent struct {
	Validated []Offer
	Rejected  []Offer
}

func (ValidatedEvent) Kind() string { return KindValidated }

// OffersFoundEvent is streamed as soon as candidates are retrieved, before
// validation, so clients can render results early.
type OffersFoundEvent struct {
	Offers []Offer
}

func (OffersFoundEvent) Kind() string { return KindOffersFound }

// OffersFilteredEvent is streamed after validation with the accepted offers
// and a short description of the query they answer.
type OffersFilteredEvent struct {
	Offers      []Offer
	Description string
}

func (OffersFilteredEvent) Kind() string { return KindOffersFiltered }

// SearchOptions configures the search child workflow.
type SearchOptions struct {
	// QueryLimit bounds how many candidates one catalog query returns.
	QueryLimit int

	// ValidationLimit bounds how many top candidates get LLM-scored.
	ValidationLimit int

	// ScoreThreshold is the minimum relevance score (0-100) to keep an offer.
	ScoreThreshold int

	// MaxRelaxRounds bounds how many filters a zero-result query may drop.
	MaxRelaxRounds int

	// Timeout bounds the whole child run.
	Timeout time.Duration

	Logger logging.Logger
}

const (
	defaultQueryLimit      = 20
	defaultValidationLimit = 3
	defaultScoreThreshold  = 50
	defaultMaxRelaxRounds  = 3
)

const scorePromptTemplate = "User searched for product with query '{{.Query}}', please score the offer '{{.Offer}}' on how well it matches the query. The score must be an integer between 0 and 100. Return only the score."

const extractQueryPrompt = "From user input create a structured query for the catalog search."

// Search bundles the collaborators of the search child workflow.
type Search struct {
	model    model.Model
	searcher Searcher
	opts     SearchOptions
}

// NewSearch wires the search child workflow collaborators.
func NewSearch(m model.Model, searcher Searcher, optFns ...func(o *SearchOptions)) *Search {
	opts := SearchOptions{
		QueryLimit:      defaultQueryLimit,
		ValidationLimit: defaultValidationLimit,
		ScoreThreshold:  defaultScoreThreshold,
		MaxRelaxRounds:  defaultMaxRelaxRounds,
		Timeout:         30 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Search{model: m, searcher: searcher, opts: opts}
}

// Workflow builds the child workflow: extract -> query (with relaxation) ->
// validate -> results.
func (s *Search) Workflow() (*workflow.Workflow, error) {
	wf := workflow.New(func(o *workflow.Options) {
		o.Timeout = s.opts.Timeout
		o.Logger = s.opts.Logger
	})

	steps := []workflow.Step{
		{Name: "extract_query", Inputs: []string{workflow.KindStart}, Handle: s.extractQuery},
		{Name: "query_catalog", Inputs: []string{KindQueryReady}, Handle: s.queryCatalog},
		{Name: "validate_results", Inputs: []string{KindQueryResults}, Handle: s.validateResults},
		{Name: "return_results", Inputs: []string{KindValidated}, Handle: s.returnResults},
	}
	for _, st := range steps {
		if err := wf.AddStep(st); err != nil {
			return nil, err
		}
	}
	return wf, nil
}

// extractQuery uses the provided structured query or derives one from the
// free-text input. No query at all stops the child immediately.
func (s *Search) extractQuery(rc *workflow.RunContext, ev workflow.Event) ([]workflow.Event, error) {
	start := ev.(workflow.StartEvent)
	inputQuery := start.GetString("input_query", "")

	var query StructuredQuery
	if provided, ok := start.Get("structured_query", nil).(StructuredQuery); ok {
		query = provided
	} else if inputQuery != "" {
		if err := s.model.StructuredChat(rc.Context(), []model.Message{
			model.System(extractQueryPrompt),
			model.User(inputQuery),
		}, &query); err != nil {
			return nil, fmt.Errorf("extract structured query: %w", err)
		}
	}

	if query.IsEmpty() && inputQuery == "" {
		return []workflow.Event{workflow.StopEvent{Result: SearchResult{}}}, nil
	}

	rc.Set("input_query", inputQuery)
	rc.Set("structured_query", query)
	return []workflow.Event{QueryReadyEvent{Query: query}}, nil
}

// queryCatalog runs the filtered search, dropping filters round by round when
// nothing matches, and streams found candidates before validation.
func (s *Search) queryCatalog(rc *workflow.RunContext, ev workflow.Event) ([]workflow.Event, error) {
	query := ev.(QueryReadyEvent).Query

	results, err := s.searcher.Search(rc.Context(), query, s.opts.QueryLimit)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}

	rounds := 0
	for len(results) == 0 && rounds < s.opts.MaxRelaxRounds {
		if !query.Relax() {
			break
		}
		rounds++
		rc.Logger().Info("relaxing catalog query", "round", rounds, "query", query.ShortDescription())
		results, err = s.searcher.Search(rc.Context(), query, s.opts.QueryLimit)
		if err != nil {
			return nil, fmt.Errorf("query catalog (relax round %d): %w", rounds, err)
		}
	}

	// Reverse order so chat clients render the best candidates last, on top.
	found := make([]Offer, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		found = append(found, results[i].Offer)
	}
	if err := rc.WriteToStream(OffersFoundEvent{Offers: found}); err != nil {
		return nil, err
	}

	top := results
	if len(top) > s.opts.ValidationLimit {
		top = top[:s.opts.ValidationLimit]
	}
	return []workflow.Event{QueryResultsEvent{Offers: top, RelaxRounds: rounds}}, nil
}

// validateResults scores each candidate with the model and splits them at the
// threshold, accepted offers sorted best first.
func (s *Search) validateResults(rc *workflow.RunContext, ev workflow.Event) ([]workflow.Event, error) {
	results := ev.(QueryResultsEvent)

	queryText, _ := rc.Get("input_query", "").(string)
	if queryText == "" {
		if q, ok := rc.Get("structured_query", StructuredQuery{}).(StructuredQuery); ok {
			queryText = q.ShortDescription()
		}
	}

	scores := make([]int, len(results.Offers))
	var wg sync.WaitGroup
	for i, cand := range results.Offers {
		wg.Add(1)
		go func(idx int, offer Offer) {
			defer wg.Done()
			scores[idx] = s.scoreOffer(rc.Context(), rc.Logger(), queryText, offer)
		}(i, cand.Offer)
	}
	wg.Wait()

	type scored struct {
		offer Offer
		score int
	}
	var accepted []scored
	var rejected []Offer
	for i, cand := range results.Offers {
		if scores[i] >= s.opts.ScoreThreshold {
			accepted = append(accepted, scored{offer: cand.Offer, score: scores[i]})
		} else {
			rejected = append(rejected, cand.Offer)
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].score > accepted[j].score })

	validated := make([]Offer, len(accepted))
	for i, a := range accepted {
		validated[i] = a.offer
	}

	if err := rc.WriteToStream(OffersFilteredEvent{
		Offers:      validated,
		Description: queryText,
	}); err != nil {
		return nil, err
	}

	return []workflow.Event{ValidatedEvent{Validated: validated, Rejected: rejected}}, nil
}

func (s *Search) returnResults(rc *workflow.RunContext, ev workflow.Event) ([]workflow.Event, error) {
	verdict := ev.(ValidatedEvent)
	return []workflow.Event{workflow.StopEvent{Result: SearchResult{
		Validated: verdict.Validated,
		Rejected:  verdict.Rejected,
	}}}, nil
}

// scoreOffer asks the model for a 0-100 relevance score. Unparseable replies
// score zero rather than failing the branch.
func (s *Search) scoreOffer(ctx context.Context, logger logging.Logger, queryText string, offer Offer) int {
	prompt, err := util.RenderTemplate(scorePromptTemplate, map[string]any{
		"Query": queryText,
		"Offer": offer.Text(),
	})
	if err != nil {
		logger.Warn("rendering score prompt failed", "offer", offer.SKU, "error", err.Error())
		return 0
	}
	reply, err := s.model.Chat(ctx, []model.Message{model.User(prompt)})
	if err != nil {
		logger.Warn("offer scoring failed", "offer", offer.SKU, "error", err.Error())
		return 0
	}
	score, err := parseScore(reply.Content)
	if err != nil {
		logger.Warn("unparseable offer score", "offer", offer.SKU, "reply", reply.Content)
		return 0
	}
	return score
}

func parseScore(raw string) (int, error) {
	text := strings.TrimSpace(raw)
	start := strings.IndexFunc(text, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return 0, fmt.Errorf("no digits in %q", raw)
	}
	end := start
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	score, err := strconv.Atoi(text[start:end])
	if err != nil {
		return 0, err
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}
