package cwfsearch

import (
	"context"
	"fmt"
	"time"
)

// indexManager is the internal interface for catalog index lifecycle.
type indexManager interface {
	EnsureIndex(ctx context.Context) (bool, error)
	DropIndex(ctx context.Context) error
	IndexReady(ctx context.Context) (bool, error)
}

// EnsureIndex creates the catalog vector index if it does not exist.
// Reports whether it was created.
func (c *Client) EnsureIndex(ctx context.Context) (created bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ensure_index", start, err) }()

	created, err = c.index.EnsureIndex(ctx)
	if err != nil {
		return false, fmt.Errorf("ensure index: %w", err)
	}
	return created, nil
}

// DropIndex removes the catalog index. Indexed hashes are kept.
func (c *Client) DropIndex(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("drop_index", start, err) }()

	if err = c.index.DropIndex(ctx); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	return nil
}

// IndexReady reports whether the catalog index exists.
func (c *Client) IndexReady(ctx context.Context) (ready bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index_ready", start, err) }()

	ready, err = c.index.IndexReady(ctx)
	if err != nil {
		return false, fmt.Errorf("index ready: %w", err)
	}
	return ready, nil
}
