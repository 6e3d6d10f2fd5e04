// Package candidate holds catalog entities returned by vector retrieval.
package candidate

import (
	"sort"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/catalog"
)

// Candidate is an entity paired with its cosine distance to the query vector.
type Candidate struct {
	entity   catalog.Entity
	distance float64
}

// New creates a candidate.
func New(entity catalog.Entity, distance float64) Candidate {
	return Candidate{entity: entity, distance: distance}
}

// Entity returns the underlying catalog entity.
func (c *Candidate) Entity() *catalog.Entity { return &c.entity }

// ID returns the entity identifier.
func (c *Candidate) ID() string { return c.entity.ID }

// Distance returns the cosine distance. Lower is closer.
func (c *Candidate) Distance() float64 { return c.distance }

// Similarity returns 1 - Distance. It is not clamped, so ordering by
// similarity is the exact reverse of ordering by distance.
func (c *Candidate) Similarity() float64 { return 1 - c.distance }

// SortByDistance orders candidates ascending by distance, keeping the
// store order for ties.
func SortByDistance(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].distance < cs[j].distance })
}
