package db

import (
	"errors"
	"strings"
	"testing"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/filter"
)

func floatPtr(f float64) *float64 { return &f }

func mustMatch(t *testing.T, key, value string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatch(key, value)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return c
}

func mustRange(t *testing.T, key string, lo, hi *float64) filter.Condition {
	t.Helper()
	r, err := filter.NewRangeFilter(lo, hi)
	if err != nil {
		t.Fatalf("NewRangeFilter: %v", err)
	}
	c, err := filter.NewRange(key, r)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	return c
}

func TestBuildKNNCommand_Parameterized(t *testing.T) {
	expr, err := filter.NewExpression(
		[]filter.Condition{
			mustMatch(t, "org_id", "org-1"),
			mustMatch(t, "active", "true"),
			mustRange(t, "price", nil, floatPtr(20)),
		},
		[]filter.Condition{
			mustMatch(t, "entity_type", "tool"),
			mustMatch(t, "entity_type", "part"),
		},
	)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}

	cmd, err := BuildKNNCommand(&KNNQuery{
		IndexName:    "catalog-idx",
		VectorField:  "vector",
		Filters:      expr,
		Vector:       []float32{0.1, 0.2, 0.3},
		K:            5,
		ReturnFields: []string{"name", ScoreField},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantQuery := "(@org_id:{$org_id} @active:{$active} @price:[$price_min $price_max] " +
		"(@entity_type:{$entity_type_0} | @entity_type:{$entity_type_1}))" +
		"=>[KNN $K @vector $BLOB AS __vector_score]"
	if cmd.Query != wantQuery {
		t.Errorf("query =\n%s\nwant\n%s", cmd.Query, wantQuery)
	}

	wantParams := map[string]string{
		"org_id":        "org-1",
		"active":        "true",
		"price_min":     "-inf",
		"price_max":     "20",
		"entity_type_0": "tool",
		"entity_type_1": "part",
		"K":             "5",
	}
	for name, want := range wantParams {
		got, ok := cmd.Param(name)
		if !ok || got != want {
			t.Errorf("param %s = %q (present=%v), want %q", name, got, ok, want)
		}
	}
	if blob, _ := cmd.Param(ParamVector); len(blob) != 12 {
		t.Errorf("vector blob length = %d, want 12", len(blob))
	}
}

func TestBuildKNNCommand_ValuesNeverInQuery(t *testing.T) {
	hostile := `x} | @org_id:{other`
	expr, _ := filter.NewExpression([]filter.Condition{mustMatch(t, "org_id", hostile)}, nil)

	cmd, err := BuildKNNCommand(&KNNQuery{IndexName: "idx", Filters: expr, Vector: []float32{1}, K: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(cmd.Query, "other") {
		t.Errorf("tag value leaked into query text: %s", cmd.Query)
	}
	if v, _ := cmd.Param("org_id"); v != hostile {
		t.Errorf("org_id param = %q", v)
	}
}

func TestBuildKNNCommand_EmptyFilter(t *testing.T) {
	cmd, err := BuildKNNCommand(&KNNQuery{IndexName: "idx", Vector: []float32{1, 2}, K: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Query != "*=>[KNN $K @vector $BLOB AS __vector_score]" {
		t.Errorf("query = %q", cmd.Query)
	}
}

func TestBuildKNNCommand_Validation(t *testing.T) {
	tests := []struct {
		name string
		q    KNNQuery
	}{
		{"no index", KNNQuery{Vector: []float32{1}, K: 1}},
		{"no vector", KNNQuery{IndexName: "idx", K: 1}},
		{"zero k", KNNQuery{IndexName: "idx", Vector: []float32{1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildKNNCommand(&tc.q)
			if !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
		})
	}
}

func TestKNNCommand_Args(t *testing.T) {
	cmd := &KNNCommand{
		Index:        "idx",
		Query:        "*=>[KNN $K @vector $BLOB AS __vector_score]",
		Params:       []Param{{Name: "K", Value: "2"}, {Name: "BLOB", Value: "abcd"}},
		ReturnFields: []string{"name"},
		Limit:        2,
	}
	got := strings.Join(cmd.Args(), " ")
	want := "idx *=>[KNN $K @vector $BLOB AS __vector_score] RETURN 1 name LIMIT 0 2 PARAMS 4 K 2 BLOB abcd DIALECT 2"
	if got != want {
		t.Errorf("Args() =\n%s\nwant\n%s", got, want)
	}
}

func TestKNNCommand_RedactedParams(t *testing.T) {
	cmd, _ := BuildKNNCommand(&KNNQuery{IndexName: "idx", Vector: make([]float32, 8), K: 1})
	p := cmd.RedactedParams()
	if p[ParamVector] != "<float32[8]>" {
		t.Errorf("BLOB = %q, want redacted", p[ParamVector])
	}
	if p[ParamK] != "1" {
		t.Errorf("K = %q", p[ParamK])
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	out, err := BytesToVector(VectorToBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("v[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := BytesToVector("abc"); err == nil {
		t.Error("expected error for truncated blob")
	}
}
