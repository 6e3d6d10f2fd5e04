package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/catalog"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/present"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/query"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/rewrite"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/scope"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/trace"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/logger"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/metrics"
)

// Pipeline defaults.
const (
	DefaultEmbedTimeout   = 5 * time.Second
	DefaultStoreTimeout   = 2 * time.Second
	DefaultMaxQueryLength = 500
)

// Config tunes the search pipeline.
type Config struct {
	EmbedTimeout   time.Duration
	StoreTimeout   time.Duration
	MaxQueryLength int // in runes
	KnownTypes     []catalog.EntityType
}

// Request is a search request. OrgID comes from the authenticated caller.
type Request struct {
	Query       string
	OrgID       string
	EntityTypes []string
	Limit       *int
	Debug       bool
}

// Response is the outcome of one pipeline run.
type Response struct {
	Original   string
	Components query.Components
	Results    []present.Result
	Notes      []string

	// Set for debug requests only.
	Trace      *trace.Trace
	BuiltQuery string
	Params     map[string]string
	Dimensions int
	Elapsed    time.Duration
}

// ConversationalResponse adds dialogue hints for a conversational caller.
type ConversationalResponse struct {
	*Response
	Intent   present.Intent
	FollowUp string
}

// Service runs the constrained semantic search pipeline.
type Service struct {
	cfg       Config
	embed     Embedder
	catalog   Catalog
	negator   Negator
	formatter *present.Formatter
	now       func() time.Time
}

// New creates a search service.
func New(cfg Config, embed Embedder, cat Catalog, negator Negator, formatter *present.Formatter) *Service {
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = DefaultMaxQueryLength
	}
	if len(cfg.KnownTypes) == 0 {
		cfg.KnownTypes = catalog.DefaultTypes()
	}
	return &Service{
		cfg:       cfg,
		embed:     embed,
		catalog:   cat,
		negator:   negator,
		formatter: formatter,
		now:       time.Now,
	}
}

// run carries per-request pipeline state.
type run struct {
	s     *Service
	tr    *trace.Trace
	start time.Time
	last  time.Time
}

// enter records the transition into state st and the time spent getting there.
func (r *run) enter(st trace.State) {
	now := r.s.now()
	d := now.Sub(r.last)
	r.last = now
	r.tr.Stage(st, d)
	if st != trace.StateReceived {
		metrics.SearchStageDuration.WithLabelValues(strings.ToLower(string(st))).Observe(d.Seconds())
	}
}

// Search rewrites, embeds, queries, negation-filters and formats.
// Validation happens before any collaborator is called.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	now := s.now()
	r := &run{s: s, start: now, last: now}
	if req.Debug {
		r.tr = trace.NewWithClock(s.now)
	}
	r.enter(trace.StateReceived)

	sc, err := s.validate(req)
	if err != nil {
		return nil, r.fail(ctx, trace.StateReceived, err)
	}

	out := rewrite.Rewrite(req.Query)
	comps := out.Components
	if comps.SemanticQuery() == "" {
		return nil, r.fail(ctx, trace.StateRewritten, domain.Validationf("query has no searchable text"))
	}
	r.tr.Components(comps)
	for _, note := range out.Notes {
		r.tr.BoundDropped(note)
	}
	r.enter(trace.StateRewritten)

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	emb, err := s.embed.Embed(embedCtx, comps.SemanticQuery())
	cancel()
	if err != nil {
		err = stageError(ctx, embedCtx, domain.StageEmbedding, domain.ErrEmbeddingUnavailable, err)
		return nil, r.fail(ctx, trace.StateEmbedded, fmt.Errorf("vectorize query: %w", err))
	}
	r.enter(trace.StateEmbedded)

	q, err := s.catalog.Build(comps, sc, emb.Embedding)
	if err != nil {
		return nil, r.fail(ctx, trace.StateQueried, fmt.Errorf("build query: %w", err))
	}
	r.tr.Filters(q.Text(), q.Params())

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	cs, err := s.catalog.Execute(storeCtx, q)
	cancel()
	if err != nil {
		err = stageError(ctx, storeCtx, domain.StageStore, domain.ErrStoreUnavailable, err)
		return nil, r.fail(ctx, trace.StateQueried, fmt.Errorf("execute query: %w", err))
	}
	r.enter(trace.StateQueried)

	if comps.HasNegations() {
		cs, err = s.negator.Filter(ctx, cs, comps.NegatedTerms(), r.tr)
		if err != nil {
			return nil, r.fail(ctx, trace.StateNegationFiltered, err)
		}
	}
	r.enter(trace.StateNegationFiltered)

	results := s.formatter.Format(cs, comps, sc)
	r.enter(trace.StateFormatted)
	r.enter(trace.StateReturned)

	elapsed := s.now().Sub(r.start)
	metrics.SearchRequestsTotal.WithLabelValues("ok", "").Inc()
	metrics.SearchResultsCount.Observe(float64(len(results)))
	logger.FromContext(ctx).Debug("Search completed",
		zap.String("trace_id", r.tr.ID()),
		zap.Int("count", len(results)),
		zap.Int("negated_terms", len(comps.NegatedTerms())),
		zap.Duration("elapsed", elapsed),
	)

	resp := &Response{
		Original:   req.Query,
		Components: comps,
		Results:    results,
		Notes:      out.Notes,
	}
	if req.Debug {
		resp.Trace = r.tr
		resp.BuiltQuery = q.Text()
		resp.Params = q.Params()
		resp.Dimensions = len(emb.Embedding)
		resp.Elapsed = elapsed
	}
	return resp, nil
}

// SearchConversational runs Search and derives the interpreted intent and a
// follow-up question from the query and result count.
func (s *Service) SearchConversational(ctx context.Context, req Request) (*ConversationalResponse, error) {
	resp, err := s.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	intent, followUp := s.formatter.Interpret(resp.Components, len(resp.Results))
	return &ConversationalResponse{Response: resp, Intent: intent, FollowUp: followUp}, nil
}

func (s *Service) validate(req Request) (scope.Scope, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return scope.Scope{}, domain.Validationf("query is required")
	}
	if utf8.RuneCountInString(q) > s.cfg.MaxQueryLength {
		return scope.Scope{}, domain.Validationf("query exceeds %d characters", s.cfg.MaxQueryLength)
	}
	return scope.New(req.OrgID, req.EntityTypes, req.Limit, s.cfg.KnownTypes)
}

// fail records the failure in the trace, metrics and log, and returns err.
// An untyped failure after the caller went away counts as canceled, not internal.
func (r *run) fail(ctx context.Context, st trace.State, err error) error {
	code := domain.Code(err)
	outcome := "error"
	canceled := code == domain.CodeInternal && ctx.Err() != nil && errors.Is(err, ctx.Err())
	if canceled {
		outcome = "canceled"
	}
	r.enter(trace.StateError)
	r.tr.Error(st, code)
	metrics.SearchRequestsTotal.WithLabelValues(outcome, code).Inc()

	fields := []zap.Field{
		zap.String("trace_id", r.tr.ID()),
		zap.String("stage", strings.ToLower(string(st))),
		zap.String("code", code),
		zap.Error(err),
	}
	l := logger.FromContext(ctx)
	switch {
	case canceled:
		l.Debug("Search canceled by caller", fields...)
	case code == domain.CodeValidation:
		l.Debug("Search rejected", fields...)
	case code == domain.CodeEmbeddingUnavailable, code == domain.CodeStoreUnavailable:
		l.Warn("Search dependency unavailable", fields...)
	default:
		l.Error("Search failed", fields...)
	}
	return err
}

// stageError types a collaborator failure. A stage deadline becomes a
// TimeoutError; caller cancellation and untyped failures wrap the stage sentinel.
func stageError(parent, stageCtx context.Context, stage string, sentinel, err error) error {
	switch {
	case parent.Err() != nil:
		return fmt.Errorf("%w: %w", sentinel, parent.Err())
	case errors.Is(stageCtx.Err(), context.DeadlineExceeded):
		return domain.NewTimeout(stage)
	case domain.Code(err) == domain.CodeInternal:
		return fmt.Errorf("%w: %w", sentinel, err)
	default:
		return err
	}
}
