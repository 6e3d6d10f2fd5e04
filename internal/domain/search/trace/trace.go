// Package trace records why a search returned what it did. A Trace is only
// allocated for debug requests; every method is a no-op on a nil *Trace.
package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/query"
)

// State is a pipeline state.
type State string

// Pipeline states in transition order.
const (
	StateReceived         State = "RECEIVED"
	StateRewritten        State = "REWRITTEN"
	StateEmbedded         State = "EMBEDDED"
	StateQueried          State = "QUERIED"
	StateNegationFiltered State = "NEGATION_FILTERED"
	StateFormatted        State = "FORMATTED"
	StateReturned         State = "RETURNED"
	StateError            State = "ERROR"
)

// Kind classifies a trace event.
type Kind string

// Event kinds.
const (
	KindComponents       Kind = "components"
	KindBoundDropped     Kind = "bound_dropped"
	KindFilters          Kind = "filters"
	KindNegationCheck    Kind = "negation_check"
	KindNegationFallback Kind = "negation_fallback"
	KindNegationEmptied  Kind = "negation_emptied"
	KindStage            Kind = "stage"
	KindError            Kind = "error"
)

// Decision values for negation checks.
const (
	DecisionKept     = "kept"
	DecisionExcluded = "excluded"
)

// Event is a single trace entry. Only fields relevant to Kind are set.
type Event struct {
	Kind        Kind              `json:"kind"`
	OffsetMS    float64           `json:"offset_ms"`
	State       State             `json:"state,omitempty"`
	DurationMS  float64           `json:"duration_ms,omitempty"`
	Components  *query.Components `json:"components,omitempty"`
	Query       string            `json:"query,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Term        string            `json:"term,omitempty"`
	CandidateID string            `json:"candidate_id,omitempty"`
	Similarity  *float64          `json:"similarity,omitempty"`
	Strategy    string            `json:"strategy,omitempty"`
	Decision    string            `json:"decision,omitempty"`
	Count       int               `json:"count,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// Trace is an ordered, concurrency-safe event log for one request.
type Trace struct {
	id    string
	start time.Time
	now   func() time.Time

	mu     sync.Mutex
	events []Event
}

// New starts a trace with a fresh random ID.
func New() *Trace {
	return NewWithClock(time.Now)
}

// NewWithClock starts a trace using the given clock.
func NewWithClock(now func() time.Time) *Trace {
	return &Trace{id: uuid.NewString(), start: now(), now: now}
}

// ID returns the trace identifier, empty for a nil trace.
func (t *Trace) ID() string {
	if t == nil {
		return ""
	}
	return t.id
}

// Enabled reports whether events are being recorded.
func (t *Trace) Enabled() bool { return t != nil }

// Events returns a copy of the recorded events.
func (t *Trace) Events() []Event {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Components records the rewriter output.
func (t *Trace) Components(c query.Components) {
	t.add(Event{Kind: KindComponents, Components: &c})
}

// BoundDropped records a price bound the rewriter discarded.
func (t *Trace) BoundDropped(note string) {
	t.add(Event{Kind: KindBoundDropped, Message: note})
}

// Filters records the built store query with its bound parameters.
func (t *Trace) Filters(q string, params map[string]string) {
	t.add(Event{Kind: KindFilters, Query: q, Params: params})
}

// Stage records entering a pipeline state after spending d in the previous one.
func (t *Trace) Stage(s State, d time.Duration) {
	t.add(Event{Kind: KindStage, State: s, DurationMS: ms(d)})
}

// NegationCheck records one term-versus-candidate comparison.
func (t *Trace) NegationCheck(term, candidateID string, similarity float64, strategy string, excluded bool) {
	decision := DecisionKept
	if excluded {
		decision = DecisionExcluded
	}
	sim := similarity
	t.add(Event{
		Kind:        KindNegationCheck,
		Term:        term,
		CandidateID: candidateID,
		Similarity:  &sim,
		Strategy:    strategy,
		Decision:    decision,
	})
}

// NegationFallback records a term checked lexically because embedding it failed.
func (t *Trace) NegationFallback(term string, err error) {
	e := Event{Kind: KindNegationFallback, Term: term, Strategy: "lexical"}
	if err != nil {
		e.Message = err.Error()
	}
	t.add(e)
}

// NegationEmptied records that exclusion removed every candidate.
func (t *Trace) NegationEmptied(before int) {
	t.add(Event{Kind: KindNegationEmptied, Count: before})
}

// Error records the failing state and the error code returned to the caller.
func (t *Trace) Error(s State, code string) {
	t.add(Event{Kind: KindError, State: s, Message: code})
}

func (t *Trace) add(e Event) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e.OffsetMS = ms(t.now().Sub(t.start))
	t.events = append(t.events, e)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
