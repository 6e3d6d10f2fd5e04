package db

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/filter"
)

// ScoreField is the alias FT.SEARCH uses for the KNN distance.
const ScoreField = "__vector_score"

// Names of the parameters every KNN command binds.
const (
	ParamVector = "BLOB"
	ParamK      = "K"
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// Param is a named FT.SEARCH query parameter.
type Param struct {
	Name  string
	Value string
}

// KNNCommand is a fully parameterized FT.SEARCH KNN request. User-supplied
// values live only in Params; Query references them as $name.
type KNNCommand struct {
	Index        string
	Query        string
	Params       []Param
	ReturnFields []string
	Limit        int
}

// BuildKNNCommand renders q into a parameterized command. Tag values,
// numeric bounds, K and the query vector are all bound through PARAMS.
func BuildKNNCommand(q *KNNQuery) (*KNNCommand, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("%w: index name is required", ErrInvalidQuery)
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: vector is required", ErrInvalidQuery)
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", ErrInvalidQuery)
	}
	field := q.VectorField
	if field == "" {
		field = "vector"
	}

	pb := paramBinder{used: make(map[string]int)}
	expr := pb.render(q.Filters)
	if expr == "" {
		expr = "*"
	} else {
		expr = "(" + expr + ")"
	}

	knn := fmt.Sprintf("=>[KNN $%s @%s $%s AS %s]", ParamK, field, ParamVector, ScoreField)
	params := append(pb.params,
		Param{Name: ParamK, Value: strconv.Itoa(q.K)},
		Param{Name: ParamVector, Value: VectorToBytes(q.Vector)},
	)

	return &KNNCommand{
		Index:        q.IndexName,
		Query:        expr + knn,
		Params:       params,
		ReturnFields: q.ReturnFields,
		Limit:        q.K,
	}, nil
}

// Args returns the FT.SEARCH arguments following the command name.
func (c *KNNCommand) Args() []string {
	args := []string{c.Index, c.Query}
	if len(c.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(c.ReturnFields)))
		args = append(args, c.ReturnFields...)
	}
	args = append(args, "LIMIT", "0", strconv.Itoa(c.Limit))
	args = append(args, "PARAMS", strconv.Itoa(2*len(c.Params)))
	for _, p := range c.Params {
		args = append(args, p.Name, p.Value)
	}
	return append(args, "DIALECT", "2")
}

// RedactedParams returns the bound parameters with the vector blob replaced
// by its dimension, for logs and debug output.
func (c *KNNCommand) RedactedParams() map[string]string {
	out := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		if p.Name == ParamVector {
			out[p.Name] = fmt.Sprintf("<float32[%d]>", len(p.Value)/4)
			continue
		}
		out[p.Name] = p.Value
	}
	return out
}

// Param returns the value bound to name.
func (c *KNNCommand) Param(name string) (string, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

type paramBinder struct {
	params []Param
	used   map[string]int
}

func (pb *paramBinder) bind(name, value string) string {
	n := pb.used[name]
	pb.used[name] = n + 1
	if n > 0 {
		name = fmt.Sprintf("%s_%d", name, n)
	}
	pb.params = append(pb.params, Param{Name: name, Value: value})
	return "$" + name
}

func (pb *paramBinder) render(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	parts := make([]string, 0, len(expr.Must())+1)
	for _, cond := range expr.Must() {
		parts = append(parts, pb.condition(cond, cond.Key()))
	}

	if anyOf := expr.AnyOf(); len(anyOf) > 0 {
		alts := make([]string, 0, len(anyOf))
		for i, cond := range anyOf {
			alts = append(alts, pb.condition(cond, fmt.Sprintf("%s_%d", cond.Key(), i)))
		}
		parts = append(parts, "("+strings.Join(alts, " | ")+")")
	}

	return strings.Join(parts, " ")
}

func (pb *paramBinder) condition(cond filter.Condition, name string) string {
	if cond.IsRange() {
		lo, hi := cond.Range().Bounds()
		return fmt.Sprintf("@%s:[%s %s]", cond.Key(), pb.bind(name+"_min", lo), pb.bind(name+"_max", hi))
	}
	return fmt.Sprintf("@%s:{%s}", cond.Key(), pb.bind(name, cond.Match()))
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Distance is the raw KNN score: for COSINE
// indexes, lower means closer.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}

// VectorToBytes encodes v as little-endian FLOAT32, the FT vector wire format.
func VectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// BytesToVector decodes a little-endian FLOAT32 blob.
func BytesToVector(s string) ([]float32, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(s))
	}
	v := make([]float32, len(s)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return v, nil
}
