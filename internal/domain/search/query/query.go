// Package query holds the structured form of a free-text search request.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Components is the rewritten query (immutable value object).
type Components struct {
	semantic string
	priceMin *float64
	priceMax *float64
	negated  []string
}

// New validates and creates Components.
// Negated terms are lower-cased, trimmed and deduplicated in first-seen order.
func New(semantic string, priceMin, priceMax *float64, negated []string) (Components, error) {
	semantic = strings.TrimSpace(semantic)
	if semantic == "" {
		return Components{}, errors.New("semantic query is required")
	}
	if priceMin != nil && priceMax != nil && *priceMin > *priceMax {
		return Components{}, fmt.Errorf("price_min %g exceeds price_max %g", *priceMin, *priceMax)
	}
	return Components{
		semantic: semantic,
		priceMin: copyFloat(priceMin),
		priceMax: copyFloat(priceMax),
		negated:  normalizeTerms(negated),
	}, nil
}

// SemanticQuery returns the text sent to the embedder. Never empty.
func (c Components) SemanticQuery() string { return c.semantic }

// PriceMin returns the inclusive lower price bound, nil when absent.
func (c Components) PriceMin() *float64 { return copyFloat(c.priceMin) }

// PriceMax returns the inclusive upper price bound, nil when absent.
func (c Components) PriceMax() *float64 { return copyFloat(c.priceMax) }

// NegatedTerms returns a copy of the exclusion terms.
func (c Components) NegatedTerms() []string {
	out := make([]string, len(c.negated))
	copy(out, c.negated)
	return out
}

// HasPriceBounds reports whether any price bound is set.
func (c Components) HasPriceBounds() bool { return c.priceMin != nil || c.priceMax != nil }

// HasNegations reports whether any exclusion term is set.
func (c Components) HasNegations() bool { return len(c.negated) > 0 }

type componentsJSON struct {
	SemanticQuery string   `json:"semantic_query"`
	PriceMin      *float64 `json:"price_min"`
	PriceMax      *float64 `json:"price_max"`
	NegatedTerms  []string `json:"negated_terms"`
}

// MarshalJSON renders the components with snake_case keys.
func (c Components) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(componentsJSON{
		SemanticQuery: c.semantic,
		PriceMin:      c.priceMin,
		PriceMax:      c.priceMax,
		NegatedTerms:  c.NegatedTerms(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal components: %w", err)
	}
	return b, nil
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.Join(strings.Fields(strings.ToLower(t)), " ")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
