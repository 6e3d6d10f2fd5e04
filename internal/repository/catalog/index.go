package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/db"
)

// IndexName returns the configured catalog index name.
func (r *Repo) IndexName() string { return r.cfg.IndexName }

// IndexDefinition returns the FT schema of the catalog index.
func (r *Repo) IndexDefinition() (*db.IndexDefinition, error) {
	return db.NewIndex(r.cfg.IndexName).
		Prefix(r.cfg.KeyPrefix).
		Tag(FieldOrgID).
		Tag(FieldActive).
		Tag(FieldEntityType).
		Numeric(FieldPrice).
		Vector(FieldVector, r.cfg.Dimensions, r.cfg.Algorithm, db.DistanceCosine, r.cfg.HNSW.M, r.cfg.HNSW.EFConstruct).
		Build()
}

// EnsureIndex creates the catalog index unless it already exists. It reports
// whether a new index was created.
func (r *Repo) EnsureIndex(ctx context.Context) (bool, error) {
	def, err := r.IndexDefinition()
	if err != nil {
		return false, fmt.Errorf("index definition: %w", err)
	}

	exists, err := r.store.IndexExists(ctx, def.Name)
	if err != nil {
		return false, classify(err)
	}
	if exists {
		return false, nil
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, classify(err)
	}
	return true, nil
}

// DropIndex removes the catalog index. Indexed hashes are kept. A missing
// index is reported as db.ErrIndexNotFound.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.cfg.IndexName); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop %s: %w", r.cfg.IndexName, err)
		}
		return classify(err)
	}
	return nil
}

// IndexReady reports whether the catalog index exists.
func (r *Repo) IndexReady(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.cfg.IndexName)
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}
