// Package scope defines who is searching and over which slice of the catalog.
package scope

import (
	"strings"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/catalog"
)

// Result count limits.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Scope bounds a single search: tenant, optional entity types and result limit.
type Scope struct {
	orgID string
	types []catalog.EntityType
	limit int
}

// New validates and creates a Scope. orgID comes from the authenticated
// caller. A nil limit selects DefaultLimit. Every requested type must be
// one of known; duplicates are collapsed.
func New(orgID string, types []string, limit *int, known []catalog.EntityType) (Scope, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Scope{}, domain.Validationf("organization is required")
	}

	n := DefaultLimit
	if limit != nil {
		n = *limit
	}
	if n < 1 || n > MaxLimit {
		return Scope{}, domain.Validationf("limit must be between 1 and %d", MaxLimit)
	}

	allowed := make(map[catalog.EntityType]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}

	var out []catalog.EntityType
	seen := make(map[catalog.EntityType]bool, len(types))
	for _, raw := range types {
		t := catalog.EntityType(strings.ToLower(strings.TrimSpace(raw)))
		if !allowed[t] {
			return Scope{}, domain.Validationf("unknown entity type %q", raw)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}

	return Scope{orgID: orgID, types: out, limit: n}, nil
}

// OrgID returns the tenant identifier.
func (s Scope) OrgID() string { return s.orgID }

// EntityTypes returns the requested entity types; empty means all.
func (s Scope) EntityTypes() []catalog.EntityType {
	out := make([]catalog.EntityType, len(s.types))
	copy(out, s.types)
	return out
}

// Limit returns the maximum number of results.
func (s Scope) Limit() int { return s.limit }
