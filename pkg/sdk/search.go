package cwfsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/query"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/rewrite"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/trace"
	searchuc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/search"
)

// SearchOption narrows a single search.
type SearchOption func(*searchuc.Request)

// Types restricts results to the given entity types.
func Types(types ...string) SearchOption {
	return func(r *searchuc.Request) {
		r.EntityTypes = append(r.EntityTypes, types...)
	}
}

// Limit caps the number of results (1 to 100, default 10).
func Limit(n int) SearchOption {
	return func(r *searchuc.Request) {
		r.Limit = &n
	}
}

// Debug attaches the decision trace and built query to the response.
func Debug() SearchOption {
	return func(r *searchuc.Request) {
		r.Debug = true
	}
}

// Search runs a constrained semantic search over orgID's catalog.
func (c *Client) Search(ctx context.Context, orgID, q string, opts ...SearchOption) (resp *Response, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	out, err := c.searchSvc.Search(ctx, newRequest(orgID, q, opts))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	c.obs.observeResults(len(out.Results))
	r := responseFromUsecase(out)
	return &r, nil
}

// SearchConversational runs Search and adds the interpreted intent and a
// suggested follow-up question.
func (c *Client) SearchConversational(
	ctx context.Context, orgID, q string, opts ...SearchOption,
) (resp *ConversationalResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_conversational", start, err) }()

	out, err := c.searchSvc.SearchConversational(ctx, newRequest(orgID, q, opts))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	c.obs.observeResults(len(out.Results))
	return &ConversationalResponse{
		Response: responseFromUsecase(out.Response),
		Intent:   string(out.Intent),
		FollowUp: out.FollowUp,
	}, nil
}

// ParseQuery extracts the semantic text, price bounds and negated terms from
// a natural-language query. It makes no external calls.
func ParseQuery(q string) QueryComponents {
	out := rewrite.Rewrite(q)
	return componentsFromDomain(out.Components, out.Notes)
}

func newRequest(orgID, q string, opts []SearchOption) searchuc.Request {
	req := searchuc.Request{Query: q, OrgID: orgID}
	for _, o := range opts {
		o(&req)
	}
	return req
}

func componentsFromDomain(c query.Components, notes []string) QueryComponents {
	return QueryComponents{
		SemanticQuery: c.SemanticQuery(),
		PriceMin:      c.PriceMin(),
		PriceMax:      c.PriceMax(),
		NegatedTerms:  c.NegatedTerms(),
		Notes:         notes,
	}
}

func responseFromUsecase(out *searchuc.Response) Response {
	results := make([]Result, len(out.Results))
	for i := range out.Results {
		r := &out.Results[i]
		e := r.Candidate.Entity()
		results[i] = Result{
			ID:              e.ID,
			EntityType:      string(e.Type),
			Name:            e.Name,
			Description:     e.Description,
			Category:        e.Category,
			Price:           e.Price,
			StockLevel:      e.StockLevel,
			HarvestedAt:     e.HarvestedAt,
			ExpiresAt:       e.ExpiresAt,
			Similarity:      r.Candidate.Similarity(),
			Distance:        r.Candidate.Distance(),
			Relevance:       r.Relevance,
			SellingPoints:   r.SellingPoints,
			StockStatus:     r.StockPhrase,
			FreshnessStatus: r.FreshnessPhrase,
			Complements:     r.Complements,
		}
	}

	resp := Response{
		OriginalQuery: out.Original,
		Query:         componentsFromDomain(out.Components, out.Notes),
		Results:       results,
	}
	if out.Trace != nil {
		resp.Debug = &DebugInfo{
			TraceID:    out.Trace.ID(),
			BuiltQuery: out.BuiltQuery,
			Params:     out.Params,
			Dimensions: out.Dimensions,
			Elapsed:    out.Elapsed,
			Events:     eventsFromTrace(out.Trace.Events()),
		}
	}
	return resp
}

func eventsFromTrace(events []trace.Event) []TraceEvent {
	out := make([]TraceEvent, len(events))
	for i, e := range events {
		out[i] = TraceEvent{
			Kind:        string(e.Kind),
			State:       string(e.State),
			DurationMS:  e.DurationMS,
			Term:        e.Term,
			CandidateID: e.CandidateID,
			Similarity:  e.Similarity,
			Strategy:    e.Strategy,
			Decision:    e.Decision,
			Message:     e.Message,
		}
	}
	return out
}
