// Package filter describes the structured pre-filter applied before KNN
// retrieval: mandatory tag and range conditions plus one any-of tag group.
package filter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a conjunction of must conditions and a single any-of group.
type Expression struct {
	must  []Condition
	anyOf []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, anyOf []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(anyOf) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many any-of conditions (max %d)", MaxConditionsPerGroup)
	}
	for _, c := range anyOf {
		if !c.IsMatch() {
			return Expression{}, fmt.Errorf("any-of group accepts tag matches only, got range on %q", c.key)
		}
	}
	return Expression{must: must, anyOf: anyOf}, nil
}

// Must returns the mandatory conditions.
func (e Expression) Must() []Condition { return e.must }

// AnyOf returns the any-of tag group.
func (e Expression) AnyOf() []Condition { return e.anyOf }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.anyOf) == 0
}

// Condition is a single filter clause: either a tag match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, errors.New("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, errors.New("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is an inclusive numeric range. A nil bound is open.
type Range struct {
	lo *float64
	hi *float64
}

// NewRangeFilter validates and creates an inclusive Range.
func NewRangeFilter(lo, hi *float64) (Range, error) {
	if lo == nil && hi == nil {
		return Range{}, errors.New("at least one range boundary is required")
	}
	for _, b := range []*float64{lo, hi} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return Range{}, errors.New("range boundary must be a finite number")
		}
	}
	if lo != nil && hi != nil && *lo > *hi {
		return Range{}, fmt.Errorf("range lower bound %g exceeds upper bound %g", *lo, *hi)
	}
	return Range{lo: lo, hi: hi}, nil
}

// Min returns the inclusive lower bound, nil when open.
func (r Range) Min() *float64 { return r.lo }

// Max returns the inclusive upper bound, nil when open.
func (r Range) Max() *float64 { return r.hi }

// Bounds renders both bounds as FT.SEARCH numeric literals; open bounds
// become -inf and +inf.
func (r Range) Bounds() (lo, hi string) {
	lo, hi = "-inf", "+inf"
	if r.lo != nil {
		lo = strconv.FormatFloat(*r.lo, 'f', -1, 64)
	}
	if r.hi != nil {
		hi = strconv.FormatFloat(*r.hi, 'f', -1, 64)
	}
	return lo, hi
}
