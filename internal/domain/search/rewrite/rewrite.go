// Package rewrite turns a free-text search into structured query components:
// a semantic phrase for embedding, optional price bounds and exclusion terms.
package rewrite

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/query"
)

// MaxNegationWords caps how many words a single negation cue captures.
const MaxNegationWords = 3

// spanMark replaces the first byte of a removed price span. It ends a
// negation capture and is dropped before rendering.
const spanMark = "\x1f"

// Output is the rewriter result. Notes describe bounds that were dropped
// or ignored while parsing.
type Output struct {
	Components query.Components
	Notes      []string
}

const numPattern = `(?:₱|\$|php|p)?\s*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)` +
	`(?:\s*(?:pesos|peso|php|dollars|dollar|usd|bucks)\b)?`

type boundKind int

const (
	boundBetween boundKind = iota
	boundMax
	boundMin
)

type priceMatcher struct {
	kind boundKind
	re   *regexp.Regexp
}

// Matchers are ordered; on equal start offsets the earlier one wins.
var priceMatchers = []priceMatcher{
	{boundBetween, regexp.MustCompile(`\bbetween\s+` + numPattern + `\s*(?:and|to|-)\s*` + numPattern)},
	{boundMax, regexp.MustCompile(
		`\b(?:(?:no|not)\s+more\s+than|under|below|less\s+than|cheaper\s+than|at\s+most|up\s+to|max(?:imum)?)\s*` +
			numPattern)},
	{boundMin, regexp.MustCompile(`\b(?:above|over|more\s+than|at\s+least|min(?:imum)?)\s*` + numPattern)},
}

var (
	negationCues = map[string]bool{
		"no": true, "without": true, "avoid": true, "not": true, "except": true,
		"exclude": true, "excluding": true, "minus": true,
	}
	conjunctions = map[string]bool{"and": true, "or": true, "but": true, "with": true}
	separators   = map[string]bool{",": true, ";": true, ":": true, ".": true, "!": true, "?": true, "&": true, "/": true, "|": true}
	tokenRe      = regexp.MustCompile(`\p{N}+(?:[.,]\p{N}+)*\p{L}*|[\p{L}\p{N}]+(?:['-][\p{L}\p{N}]+)*|[^\s\p{L}\p{N}]`)
)

// Rewrite parses raw into query components. It never fails on non-blank
// input: unrecognized text stays in the semantic query, and when nothing
// is left the trimmed raw text is used instead.
func Rewrite(raw string) Output {
	text := strings.ToLower(strings.TrimSpace(raw))

	var b bounds
	text = b.extract(text)

	toks := tokenize(text)
	toks, negated := extractNegations(toks)
	semantic := render(cleanup(dropMarks(toks)))
	if semantic == "" {
		semantic = strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	}

	c, err := query.New(semantic, b.lo, b.hi, negated)
	if err != nil {
		return Output{Notes: append(b.notes, err.Error())}
	}
	return Output{Components: c, Notes: b.notes}
}

type span struct {
	start, end int
	kind       boundKind
	order      int
	values     []float64
}

type bounds struct {
	lo, hi *float64
	notes  []string
}

// extract finds price expressions, applies them in scan order and returns
// the text with matched spans blanked out behind a spanMark.
func (b *bounds) extract(text string) string {
	var spans []span
	for order, m := range priceMatchers {
		for _, loc := range m.re.FindAllStringSubmatchIndex(text, -1) {
			sp := span{start: loc[0], end: loc[1], kind: m.kind, order: order}
			for g := 2; g+1 < len(loc); g += 2 {
				if loc[g] < 0 {
					continue
				}
				v, err := parseAmount(text[loc[g]:loc[g+1]])
				if err == nil {
					sp.values = append(sp.values, v)
				}
			}
			spans = append(spans, sp)
		}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].order < spans[j].order
	})

	out := []byte(text)
	lastEnd := -1
	for _, sp := range spans {
		if sp.start < lastEnd {
			continue
		}
		lastEnd = sp.end
		out[sp.start] = spanMark[0]
		for i := sp.start + 1; i < sp.end; i++ {
			out[i] = ' '
		}
		b.apply(sp)
	}
	return string(out)
}

func (b *bounds) apply(sp span) {
	switch sp.kind {
	case boundBetween:
		if len(sp.values) != 2 {
			return
		}
		lo, hi := sp.values[0], sp.values[1]
		if hi < lo {
			lo, hi = hi, lo
		}
		b.setMin(lo)
		b.setMax(hi)
	case boundMax:
		if len(sp.values) == 1 {
			b.setMax(sp.values[0])
		}
	case boundMin:
		if len(sp.values) == 1 {
			b.setMin(sp.values[0])
		}
	}
}

func (b *bounds) setMin(v float64) {
	switch {
	case b.lo != nil:
		b.notes = append(b.notes, fmt.Sprintf("ignored repeated price_min %s", fmtAmount(v)))
	case b.hi != nil && v > *b.hi:
		b.notes = append(b.notes, fmt.Sprintf("dropped price_min %s: exceeds price_max %s", fmtAmount(v), fmtAmount(*b.hi)))
	default:
		b.lo = &v
	}
}

func (b *bounds) setMax(v float64) {
	switch {
	case b.hi != nil:
		b.notes = append(b.notes, fmt.Sprintf("ignored repeated price_max %s", fmtAmount(v)))
	case b.lo != nil && v < *b.lo:
		b.notes = append(b.notes, fmt.Sprintf("dropped price_max %s: below price_min %s", fmtAmount(v), fmtAmount(*b.lo)))
	default:
		b.hi = &v
	}
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

func fmtAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type token struct {
	text       string
	start, end int
	word       bool
}

func tokenize(text string) []token {
	locs := tokenRe.FindAllStringIndex(text, -1)
	toks := make([]token, 0, len(locs))
	for _, loc := range locs {
		s := text[loc[0]:loc[1]]
		toks = append(toks, token{text: s, start: loc[0], end: loc[1], word: isWord(s)})
	}
	return toks
}

func isWord(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// cueLen returns how many tokens starting at i form a negation cue.
func cueLen(toks []token, i int) int {
	if !toks[i].word {
		return 0
	}
	if negationCues[toks[i].text] {
		return 1
	}
	if toks[i].text == "free" && i+1 < len(toks) && toks[i+1].text == "of" {
		return 2
	}
	return 0
}

// extractNegations removes cue phrases and returns the kept tokens plus the
// captured exclusion terms.
func extractNegations(toks []token) ([]token, []string) {
	kept := make([]token, 0, len(toks))
	var terms []string
	for i := 0; i < len(toks); {
		n := cueLen(toks, i)
		if n == 0 {
			kept = append(kept, toks[i])
			i++
			continue
		}
		j := i + n
		var words []string
		for j < len(toks) && len(words) < MaxNegationWords {
			t := toks[j]
			if !t.word || conjunctions[t.text] || cueLen(toks, j) > 0 {
				break
			}
			words = append(words, t.text)
			j++
		}
		if len(words) > 0 {
			terms = append(terms, strings.Join(words, " "))
		}
		i = j
	}
	return kept, terms
}

func dropMarks(toks []token) []token {
	out := toks[:0]
	for _, t := range toks {
		if t.text != spanMark {
			out = append(out, t)
		}
	}
	return out
}

func isFiller(t token) bool {
	if t.word {
		return conjunctions[t.text]
	}
	return separators[t.text]
}

// cleanup drops leading and trailing filler and collapses each inner run
// of punctuation and conjunctions to a single token: the last conjunction
// if the run has one, otherwise its first punctuation mark.
func cleanup(toks []token) []token {
	start, end := 0, len(toks)
	for start < end && isFiller(toks[start]) {
		start++
	}
	for end > start && isFiller(toks[end-1]) {
		end--
	}
	toks = toks[start:end]

	out := make([]token, 0, len(toks))
	for i := 0; i < len(toks); {
		if !isFiller(toks[i]) {
			out = append(out, toks[i])
			i++
			continue
		}
		j := i
		keep := toks[i]
		for j < len(toks) && isFiller(toks[j]) {
			if toks[j].word {
				keep = toks[j]
			}
			j++
		}
		out = append(out, keep)
		i = j
	}
	return out
}

func render(toks []token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && toks[i-1].end != t.start && !separators[t.text] {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.text)
	}
	return sb.String()
}
