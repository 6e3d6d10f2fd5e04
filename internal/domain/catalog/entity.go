// Package catalog holds the read model of searchable catalog entities.
package catalog

import (
	"strings"
	"time"
)

// EntityType tags the kind of catalog entity (tool, part, product, ...).
type EntityType string

// Built-in entity types. Deployments may configure additional ones.
const (
	TypeTool    EntityType = "tool"
	TypePart    EntityType = "part"
	TypeProduct EntityType = "product"
)

// DefaultTypes lists the entity types known when none are configured.
func DefaultTypes() []EntityType {
	return []EntityType{TypeTool, TypePart, TypeProduct}
}

// Entity is a catalog record as stored by the ingestion path.
// The search pipeline never mutates it.
type Entity struct {
	ID          string
	OrgID       string
	Type        EntityType
	Name        string
	Description string
	Category    string
	Price       *float64
	StockLevel  *int
	HarvestedAt *time.Time
	ExpiresAt   *time.Time
	Active      bool
	Embedding   []float32
}

// Text returns the lower-cased searchable text of the entity.
func (e *Entity) Text() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{e.Name, e.Category, e.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// HasPrice reports whether the entity carries a price.
func (e *Entity) HasPrice() bool { return e.Price != nil }
