// Package catalog builds and runs tenant-scoped KNN queries over the catalog
// vector index.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/db"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/candidate"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/filter"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/query"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/scope"
)

// Indexed field names.
const (
	FieldOrgID      = "org_id"
	FieldActive     = "active"
	FieldEntityType = "entity_type"
	FieldPrice      = "price"
	FieldVector     = "vector"
)

// store is the consumer interface for catalog search (ISP).
type store interface {
	SearchKNN(ctx context.Context, cmd *db.KNNCommand) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config describes the catalog index layout.
type Config struct {
	IndexName  string
	KeyPrefix  string
	Dimensions int
	Algorithm  db.VectorAlgorithm
	HNSW       HNSWConfig
}

// Query is a built, fully parameterized catalog search.
type Query struct {
	cmd   *db.KNNCommand
	dims  int
	limit int
}

// Text returns the FT.SEARCH query string with $placeholders.
func (q Query) Text() string {
	if q.cmd == nil {
		return ""
	}
	return q.cmd.Query
}

// Params returns the bound parameters with the query vector redacted.
func (q Query) Params() map[string]string {
	if q.cmd == nil {
		return nil
	}
	return q.cmd.RedactedParams()
}

// Dimensions is the length of the query vector.
func (q Query) Dimensions() int { return q.dims }

// Limit is the maximum number of candidates Execute returns.
func (q Query) Limit() int { return q.limit }

// Repo implements usecase/search.Catalog.
type Repo struct {
	store store
	cfg   Config
}

// New creates a catalog repository.
func New(s store, cfg Config) *Repo {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "catalog:"
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "catalog:idx"
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = db.VectorHNSW
	}
	return &Repo{store: s, cfg: cfg}
}

// Build combines the rewritten components, the caller scope and the query
// vector into a parameterized KNN query. Tenant and active clauses are
// always present; the price clause only when a bound was requested.
func (r *Repo) Build(comps query.Components, sc scope.Scope, vector []float32) (Query, error) {
	if sc.OrgID() == "" {
		return Query{}, domain.Validationf("organization is required")
	}

	must := make([]filter.Condition, 0, 3)
	org, err := filter.NewMatch(FieldOrgID, sc.OrgID())
	if err != nil {
		return Query{}, fmt.Errorf("org clause: %w", err)
	}
	active, err := filter.NewMatch(FieldActive, "true")
	if err != nil {
		return Query{}, fmt.Errorf("active clause: %w", err)
	}
	must = append(must, org, active)

	if comps.HasPriceBounds() {
		rng, err := filter.NewRangeFilter(comps.PriceMin(), comps.PriceMax())
		if err != nil {
			return Query{}, domain.Validationf("price bounds: %v", err)
		}
		price, err := filter.NewRange(FieldPrice, rng)
		if err != nil {
			return Query{}, fmt.Errorf("price clause: %w", err)
		}
		must = append(must, price)
	}

	types := sc.EntityTypes()
	anyOf := make([]filter.Condition, 0, len(types))
	for _, t := range types {
		c, err := filter.NewMatch(FieldEntityType, string(t))
		if err != nil {
			return Query{}, fmt.Errorf("entity type clause: %w", err)
		}
		anyOf = append(anyOf, c)
	}

	expr, err := filter.NewExpression(must, anyOf)
	if err != nil {
		return Query{}, domain.Validationf("%v", err)
	}

	cmd, err := db.BuildKNNCommand(&db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		VectorField:  FieldVector,
		Filters:      expr,
		Vector:       vector,
		K:            sc.Limit(),
		ReturnFields: returnFields,
	})
	if err != nil {
		return Query{}, fmt.Errorf("build knn: %w", err)
	}

	return Query{cmd: cmd, dims: len(vector), limit: sc.Limit()}, nil
}

// Execute runs q and returns candidates ascending by distance, at most
// q.Limit() of them. Store failures are mapped onto the domain taxonomy.
func (r *Repo) Execute(ctx context.Context, q Query) ([]candidate.Candidate, error) {
	if q.cmd == nil {
		return nil, domain.Validationf("query is not built")
	}
	if r.cfg.Dimensions > 0 && q.dims != r.cfg.Dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, q.dims, r.cfg.Dimensions)
	}

	sr, err := r.store.SearchKNN(ctx, q.cmd)
	if err != nil {
		return nil, classify(err)
	}

	cs := parseCandidates(sr, r.cfg.KeyPrefix)
	candidate.SortByDistance(cs)
	if len(cs) > q.limit {
		cs = cs[:q.limit]
	}
	return cs, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("search catalog: %w", err)
	case errors.Is(err, db.ErrVectorSize):
		return fmt.Errorf("%w: %w", domain.ErrDimensionMismatch, err)
	case errors.Is(err, db.ErrIndexNotFound), errors.Is(err, db.ErrUnknownCommand):
		return fmt.Errorf("%w: %w", domain.ErrUnsupportedOperator, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
}
