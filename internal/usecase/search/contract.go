package search

import (
	"context"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/candidate"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/query"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/scope"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/trace"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/repository/catalog"
)

// Catalog builds and runs tenant-scoped vector queries.
type Catalog interface {
	Build(comps query.Components, sc scope.Scope, vector []float32) (catalog.Query, error)
	Execute(ctx context.Context, q catalog.Query) ([]candidate.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Negator removes candidates matching negated terms.
type Negator interface {
	Filter(ctx context.Context, cs []candidate.Candidate, terms []string, tr *trace.Trace) ([]candidate.Candidate, error)
}
