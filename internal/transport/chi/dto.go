package chi

import (
	"time"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/present"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/trace"
	searchuc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/search"
)

// SearchRequest is the body of POST /v1/search and /v1/search/conversational.
type SearchRequest struct {
	Query       string   `json:"query"`
	EntityTypes []string `json:"entity_types,omitempty"`
	Limit       *int     `json:"limit,omitempty"`
	Debug       bool     `json:"debug,omitempty"`
}

// SearchResponse is a successful search.
type SearchResponse struct {
	Results   []ResultItem `json:"results"`
	QueryInfo QueryInfo    `json:"query_info"`
	Count     int          `json:"count"`
	Debug     *DebugInfo   `json:"debug,omitempty"`
}

// ConversationalResponse adds dialogue hints to SearchResponse.
type ConversationalResponse struct {
	SearchResponse
	InterpretedIntent string `json:"interpreted_intent"`
	SuggestedFollowUp string `json:"suggested_follow_up"`
}

// QueryInfo echoes how the query was understood.
type QueryInfo struct {
	OriginalQuery  string         `json:"original_query"`
	SemanticQuery  string         `json:"semantic_query"`
	FiltersApplied FiltersApplied `json:"filters_applied"`
}

// FiltersApplied lists the constraints extracted from the query.
type FiltersApplied struct {
	PriceMin     *float64 `json:"price_min"`
	PriceMax     *float64 `json:"price_max"`
	NegatedTerms []string `json:"negated_terms"`
}

// ResultItem is a single presented hit.
type ResultItem struct {
	ID              string     `json:"id"`
	EntityType      string     `json:"entity_type"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Category        string     `json:"category,omitempty"`
	Price           *float64   `json:"price,omitempty"`
	StockLevel      *int       `json:"stock_level,omitempty"`
	HarvestedAt     *time.Time `json:"harvested_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Similarity      float64    `json:"similarity"`
	Distance        float64    `json:"distance"`
	Relevance       string     `json:"relevance"`
	SellingPoints   []string   `json:"selling_points"`
	StockStatus     string     `json:"stock_status,omitempty"`
	FreshnessStatus string     `json:"freshness_status,omitempty"`
	Complements     []string   `json:"complements"`
}

// DebugInfo is returned when the request set debug=true.
type DebugInfo struct {
	TraceID             string        `json:"trace_id"`
	ProcessingTimeMS    float64       `json:"processing_time_ms"`
	EmbeddingDimensions int           `json:"embedding_dimensions"`
	BuiltQuery          BuiltQuery    `json:"built_query"`
	Notes               []string      `json:"notes,omitempty"`
	Trace               []trace.Event `json:"trace"`
}

// BuiltQuery is the store query with its bound parameters; the vector is redacted.
type BuiltQuery struct {
	Query  string            `json:"query"`
	Params map[string]string `json:"params"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (req SearchRequest) toUsecase(org string) searchuc.Request {
	return searchuc.Request{
		Query:       req.Query,
		OrgID:       org,
		EntityTypes: req.EntityTypes,
		Limit:       req.Limit,
		Debug:       req.Debug,
	}
}

func searchResponseFromUsecase(resp *searchuc.Response) SearchResponse {
	items := make([]ResultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = resultToItem(&resp.Results[i])
	}

	comps := resp.Components
	out := SearchResponse{
		Results: items,
		QueryInfo: QueryInfo{
			OriginalQuery: resp.Original,
			SemanticQuery: comps.SemanticQuery(),
			FiltersApplied: FiltersApplied{
				PriceMin:     comps.PriceMin(),
				PriceMax:     comps.PriceMax(),
				NegatedTerms: comps.NegatedTerms(),
			},
		},
		Count: len(items),
	}

	if resp.Trace != nil {
		out.Debug = &DebugInfo{
			TraceID:             resp.Trace.ID(),
			ProcessingTimeMS:    float64(resp.Elapsed.Microseconds()) / 1000,
			EmbeddingDimensions: resp.Dimensions,
			BuiltQuery:          BuiltQuery{Query: resp.BuiltQuery, Params: resp.Params},
			Notes:               resp.Notes,
			Trace:               resp.Trace.Events(),
		}
	}
	return out
}

func resultToItem(r *present.Result) ResultItem {
	e := r.Candidate.Entity()
	return ResultItem{
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
		SellingPoints:   nonNil(r.SellingPoints),
		StockStatus:     r.StockPhrase,
		FreshnessStatus: r.FreshnessPhrase,
		Complements:     nonNil(r.Complements),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
