package cwfsearch

import (
	"time"
)

// QueryComponents is the structured reading of a natural-language query.
type QueryComponents struct {
	SemanticQuery string
	PriceMin      *float64
	PriceMax      *float64
	NegatedTerms  []string
	Notes         []string // adjustments made while parsing, e.g. dropped bounds
}

// Result is a single presented search hit.
type Result struct {
	ID              string
	EntityType      string
	Name            string
	Description     string
	Category        string
	Price           *float64
	StockLevel      *int
	HarvestedAt     *time.Time
	ExpiresAt       *time.Time
	Similarity      float64
	Distance        float64
	Relevance       string
	SellingPoints   []string
	StockStatus     string
	FreshnessStatus string
	Complements     []string
}

// Response is the outcome of a search.
type Response struct {
	OriginalQuery string
	Query         QueryComponents
	Results       []Result
	Debug         *DebugInfo // set when the Debug option was given
}

// ConversationalResponse adds the interpreted intent and a follow-up question.
type ConversationalResponse struct {
	Response
	Intent   string
	FollowUp string
}

// DebugInfo explains how a search produced its results.
type DebugInfo struct {
	TraceID    string
	BuiltQuery string
	Params     map[string]string // query vector redacted
	Dimensions int
	Elapsed    time.Duration
	Events     []TraceEvent
}

// TraceEvent is one decision recorded during a debug search.
type TraceEvent struct {
	Kind        string
	State       string
	DurationMS  float64
	Term        string
	CandidateID string
	Similarity  *float64
	Strategy    string
	Decision    string
	Message     string
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component -> "ok"/"error"/"missing"
}
