package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/candidate"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/trace"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/metrics"
)

// Strategy selects how a negated term is compared with a candidate.
type Strategy string

// Negation strategies.
const (
	StrategyLexical  Strategy = "lexical"
	StrategySemantic Strategy = "semantic"
)

// ParseStrategy maps a configuration value onto a Strategy. Empty means lexical.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyLexical:
		return StrategyLexical, nil
	case StrategySemantic:
		return StrategySemantic, nil
	default:
		return "", fmt.Errorf("unknown negation strategy %q", s)
	}
}

// Negation filter defaults.
const (
	DefaultNegationThreshold = 0.7
	DefaultNegationPoolSize  = 16
)

// NegationConfig configures the NegationFilter.
type NegationConfig struct {
	Strategy Strategy
	// Threshold is exclusive: a candidate is dropped when a term scores
	// above it. Zero selects DefaultNegationThreshold.
	Threshold float64
	PoolSize  int
	// EmbedTimeout bounds each negated term embedding. A term that runs
	// out of time is checked lexically.
	EmbedTimeout time.Duration
}

// NegationFilter removes candidates that match a negated term above the
// threshold. Checks run on a bounded worker pool; output keeps input order.
type NegationFilter struct {
	cfg    NegationConfig
	embed  Embedder
	pool   *ants.Pool
	logger *zap.Logger
}

// NewNegationFilter creates a filter. embed is only used by the semantic
// strategy and may be nil otherwise. Call Release at shutdown.
func NewNegationFilter(cfg NegationConfig, embed Embedder, logger *zap.Logger) (*NegationFilter, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyLexical
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultNegationThreshold
	}
	if cfg.Threshold < 0 || cfg.Threshold >= 1 {
		return nil, fmt.Errorf("negation threshold must be in (0, 1), got %g", cfg.Threshold)
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultNegationPoolSize
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if cfg.Strategy == StrategySemantic && embed == nil {
		return nil, errors.New("semantic negation requires an embedder")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("create negation pool: %w", err)
	}

	return &NegationFilter{cfg: cfg, embed: embed, pool: pool, logger: logger}, nil
}

// Strategy returns the configured strategy.
func (f *NegationFilter) Strategy() Strategy { return f.cfg.Strategy }

// Threshold returns the exclusion threshold.
func (f *NegationFilter) Threshold() float64 { return f.cfg.Threshold }

// Release stops the worker pool.
func (f *NegationFilter) Release() {
	f.pool.Release()
}

// termCheck is a prepared negated term.
type termCheck struct {
	term     string
	words    []string
	stems    []string
	vector   []float32
	strategy Strategy
}

// verdict is the outcome of one term against one candidate.
type verdict struct {
	similarity float64
	strategy   Strategy
}

// Filter drops every candidate whose similarity to any term exceeds the
// threshold and records each comparison in tr. Only caller cancellation
// fails the call; a term that cannot be embedded is checked lexically.
func (f *NegationFilter) Filter(
	ctx context.Context, cs []candidate.Candidate, terms []string, tr *trace.Trace,
) ([]candidate.Candidate, error) {
	if len(cs) == 0 || len(terms) == 0 {
		return cs, nil
	}

	checks, err := f.prepare(ctx, terms, tr)
	if err != nil {
		return nil, err
	}

	verdicts := make([][]verdict, len(cs))
	var wg sync.WaitGroup
	for i := range cs {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			verdicts[i] = evaluate(cs[i], checks)
		}
		if err := f.pool.Submit(task); err != nil {
			f.logger.Debug("Negation pool unavailable, checking inline", zap.Error(err))
			task()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("negation filter: %w", err)
	}

	kept := make([]candidate.Candidate, 0, len(cs))
	for i := range cs {
		excluded := false
		for j, check := range checks {
			v := verdicts[i][j]
			hit := v.similarity > f.cfg.Threshold
			tr.NegationCheck(check.term, cs[i].ID(), v.similarity, string(v.strategy), hit)
			if hit && !excluded {
				excluded = true
				metrics.NegationExclusionsTotal.WithLabelValues(string(v.strategy)).Inc()
			}
		}
		if !excluded {
			kept = append(kept, cs[i])
		}
	}

	if len(kept) == 0 {
		tr.NegationEmptied(len(cs))
	}
	return kept, nil
}

// prepare stems every term and, for the semantic strategy, embeds it once.
func (f *NegationFilter) prepare(ctx context.Context, terms []string, tr *trace.Trace) ([]termCheck, error) {
	checks := make([]termCheck, 0, len(terms))
	for _, term := range terms {
		ws := words(term)
		check := termCheck{term: term, words: ws, stems: stems(ws), strategy: StrategyLexical}

		if f.cfg.Strategy == StrategySemantic {
			embedCtx, cancel := context.WithTimeout(ctx, f.cfg.EmbedTimeout)
			res, err := f.embed.Embed(embedCtx, term)
			cancel()
			switch {
			case ctx.Err() != nil:
				return nil, fmt.Errorf("negation filter: %w", ctx.Err())
			case err != nil:
				f.logger.Warn("Negated term embedding failed, using lexical match",
					zap.String("term", term), zap.Error(err))
				metrics.NegationFallbacksTotal.Inc()
				tr.NegationFallback(term, err)
			default:
				check.vector = res.Embedding
				check.strategy = StrategySemantic
			}
		}
		checks = append(checks, check)
	}
	return checks, nil
}

func evaluate(c candidate.Candidate, checks []termCheck) []verdict {
	e := c.Entity()
	textWords := words(e.Text())
	var textStems map[string]bool

	out := make([]verdict, len(checks))
	for j, check := range checks {
		if check.strategy == StrategySemantic && len(e.Embedding) == len(check.vector) && len(e.Embedding) > 0 {
			out[j] = verdict{similarity: cosine(check.vector, e.Embedding), strategy: StrategySemantic}
			continue
		}
		if textStems == nil {
			textStems = make(map[string]bool, len(textWords))
			for _, s := range stems(textWords) {
				textStems[s] = true
			}
		}
		out[j] = verdict{similarity: lexicalSimilarity(check, textWords, textStems), strategy: StrategyLexical}
	}
	return out
}

// lexicalSimilarity is 1 when the term occurs as a whole-word phrase,
// otherwise the share of its stems found in the text.
func lexicalSimilarity(check termCheck, textWords []string, textStems map[string]bool) float64 {
	if len(check.words) == 0 {
		return 0
	}
	if containsPhrase(textWords, check.words) {
		return 1
	}
	hits := 0
	for _, s := range check.stems {
		if textStems[s] {
			hits++
		}
	}
	return float64(hits) / float64(len(check.stems))
}

func containsPhrase(text, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(text); i++ {
		match := true
		for j := range phrase {
			if text[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func stems(ws []string) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = porterstemmer.StemString(w)
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
