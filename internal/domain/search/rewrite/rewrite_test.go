package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestRewrite(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		semantic string
		min, max *float64
		negated  []string
	}{
		{
			name:     "price ceiling and negation",
			raw:      "instant noodles under 20 pesos, no spicy",
			semantic: "instant noodles",
			max:      floatPtr(20),
			negated:  []string{"spicy"},
		},
		{
			name:     "hot but not spicy",
			raw:      "something hot no spicy",
			semantic: "something hot",
			negated:  []string{"spicy"},
		},
		{
			name:     "between swaps inverted bounds",
			raw:      "Rice between 100 and 50 pesos",
			semantic: "rice",
			min:      floatPtr(50),
			max:      floatPtr(100),
		},
		{
			name:     "currency symbol and thousands separator",
			raw:      "cordless drill below ₱1,500.50",
			semantic: "cordless drill",
			max:      floatPtr(1500.50),
		},
		{
			name:     "floor with dollar sign",
			raw:      "torque wrench at least $40",
			semantic: "torque wrench",
			min:      floatPtr(40),
		},
		{
			name:     "no more than is a ceiling",
			raw:      "snacks no more than 30",
			semantic: "snacks",
			max:      floatPtr(30),
		},
		{
			name:     "negation stops at conjunction",
			raw:      "pasta without garlic and onions",
			semantic: "pasta and onions",
			negated:  []string{"garlic"},
		},
		{
			name:     "negation captures at most three words",
			raw:      "soup excluding very hot red chili flakes",
			semantic: "soup chili flakes",
			negated:  []string{"very hot red"},
		},
		{
			name:     "two word cue and dedup",
			raw:      "bread free of gluten, no Gluten, without nuts",
			semantic: "bread",
			negated:  []string{"gluten", "nuts"},
		},
		{
			name:     "cue followed by another cue",
			raw:      "cookies not no sugar",
			semantic: "cookies",
			negated:  []string{"sugar"},
		},
		{
			name:     "negation stops at removed ceiling",
			raw:      "no spicy under 30 noodles",
			semantic: "noodles",
			max:      floatPtr(30),
			negated:  []string{"spicy"},
		},
		{
			name:     "negation stops at removed ceiling with cue word",
			raw:      "without pork below 100 chicken",
			semantic: "chicken",
			max:      floatPtr(100),
			negated:  []string{"pork"},
		},
		{
			name:     "negation stops at removed range",
			raw:      "no garlic between 10 and 20 sauce",
			semantic: "sauce",
			min:      floatPtr(10),
			max:      floatPtr(20),
			negated:  []string{"garlic"},
		},
		{
			name:     "empty residue falls back to raw",
			raw:      "  Under 20  ",
			semantic: "under 20",
			max:      floatPtr(20),
		},
		{
			name:     "plain query untouched",
			raw:      "3.5mm hex key set",
			semantic: "3.5mm hex key set",
		},
		{
			name:     "trailing conjunctions trimmed",
			raw:      "mango and, without skin",
			semantic: "mango",
			negated:  []string{"skin"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := Rewrite(tc.raw)
			c := out.Components

			assert.Equal(t, tc.semantic, c.SemanticQuery())
			assertBound(t, "price_min", tc.min, c.PriceMin())
			assertBound(t, "price_max", tc.max, c.PriceMax())
			if tc.negated == nil {
				assert.Empty(t, c.NegatedTerms())
			} else {
				assert.Equal(t, tc.negated, c.NegatedTerms())
			}
		})
	}
}

func TestRewrite_ContradictingBoundDropped(t *testing.T) {
	out := Rewrite("rice over 100 under 50")
	c := out.Components

	require.NotNil(t, c.PriceMin())
	assert.InDelta(t, 100.0, *c.PriceMin(), 1e-9)
	assert.Nil(t, c.PriceMax())
	require.Len(t, out.Notes, 1)
	assert.Contains(t, out.Notes[0], "dropped price_max 50")
}

func TestRewrite_RepeatedBoundKeepsFirst(t *testing.T) {
	out := Rewrite("cable under 20 or under 30")
	c := out.Components

	require.NotNil(t, c.PriceMax())
	assert.InDelta(t, 20.0, *c.PriceMax(), 1e-9)
	require.Len(t, out.Notes, 1)
	assert.Contains(t, out.Notes[0], "ignored repeated price_max 30")
}

func TestRewrite_OverlappingSpansFirstWins(t *testing.T) {
	// "no more than 40" starts before "more than 40"; only the ceiling applies.
	c := Rewrite("gloves no more than 40").Components

	assert.Nil(t, c.PriceMin())
	require.NotNil(t, c.PriceMax())
	assert.InDelta(t, 40.0, *c.PriceMax(), 1e-9)
	assert.Empty(t, c.NegatedTerms())
}

func TestRewrite_IdempotentOnSemanticOutput(t *testing.T) {
	inputs := []string{
		"instant noodles under 20 pesos, no spicy",
		"pasta without garlic and onions",
		"drill bits, sanders; and saws",
		"between 10 and 20",
		"hammer (large) not rusty",
	}
	for _, raw := range inputs {
		first := Rewrite(raw).Components.SemanticQuery()
		second := Rewrite(first)

		assert.Equal(t, first, second.Components.SemanticQuery(), "input %q", raw)
		if first != "between 10 and 20" {
			assert.False(t, second.Components.HasPriceBounds(), "input %q", raw)
			assert.False(t, second.Components.HasNegations(), "input %q", raw)
		}
	}
}

func TestRewrite_SemanticNeverEmpty(t *testing.T) {
	for _, raw := range []string{"no", "under 5", ",", "and or but"} {
		assert.NotEmpty(t, Rewrite(raw).Components.SemanticQuery(), "input %q", raw)
	}
}

func assertBound(t *testing.T, name string, want, got *float64) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got, name)
		return
	}
	if assert.NotNil(t, got, name) {
		assert.InDelta(t, *want, *got, 1e-9, name)
	}
}
