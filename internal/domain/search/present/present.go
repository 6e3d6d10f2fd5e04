// Package present turns ranked candidates into caller-facing results with
// a relevance explanation, selling points and stock and freshness phrases.
package present

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/catalog"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/candidate"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/query"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/scope"
)

// Result is a presented search hit.
type Result struct {
	Candidate       candidate.Candidate
	Relevance       string
	Rule            string
	SellingPoints   []string
	StockPhrase     string
	FreshnessPhrase string
	Complements     []string
}

// Intent is the interpreted purpose of a conversational query.
type Intent string

// Known intents.
const (
	IntentBudget    Intent = "budget_search"
	IntentFreshness Intent = "freshness_search"
	IntentSpicy     Intent = "spicy_search"
	IntentExclusion Intent = "exclusion_search"
	IntentGeneral   Intent = "general_search"
)

// Formatter renders results deterministically for a fixed clock.
type Formatter struct {
	cfg   Config
	now   func() time.Time
	rules []rule
}

// NewFormatter creates a Formatter. A nil clock means time.Now.
func NewFormatter(cfg Config, now func() time.Time) *Formatter {
	if now == nil {
		now = time.Now
	}
	f := &Formatter{cfg: cfg.withDefaults(), now: now}
	f.rules = f.relevanceRules()
	return f
}

// Format presents candidates in the given order. When the scope spans more
// than one entity type each result also names its type.
func (f *Formatter) Format(cs []candidate.Candidate, comps query.Components, sc scope.Scope) []Result {
	now := f.now()
	unified := len(sc.EntityTypes()) != 1
	out := make([]Result, 0, len(cs))
	for i := range cs {
		in := ruleInput{c: &cs[i], e: cs[i].Entity(), comps: comps, unified: unified}
		in.text = in.e.Text()
		name, why := f.relevance(in)
		out = append(out, Result{
			Candidate:       cs[i],
			Relevance:       why,
			Rule:            name,
			SellingPoints:   f.sellingPoints(in),
			StockPhrase:     f.stockPhrase(in.e),
			FreshnessPhrase: f.freshnessPhrase(in.e, now),
			Complements:     f.complements(in),
		})
	}
	return out
}

// Interpret classifies the query and suggests a follow-up question.
func (f *Formatter) Interpret(comps query.Components, count int) (Intent, string) {
	intent := classify(comps)
	if count == 0 {
		return intent, "Nothing matched. Want me to try a broader description or drop a constraint?"
	}
	switch intent {
	case IntentBudget:
		if maxPrice := comps.PriceMax(); maxPrice != nil {
			return intent, fmt.Sprintf("Want to see options slightly above %s?", f.money(*maxPrice))
		}
		return intent, "Should I show the cheapest options first?"
	case IntentFreshness:
		return intent, "Should I only show items harvested this week?"
	case IntentSpicy:
		return intent, "Do you want it mild or extra hot?"
	case IntentExclusion:
		return intent, "Is there anything else I should leave out?"
	default:
		return intent, "Want me to narrow this down by price or type?"
	}
}

func classify(comps query.Components) Intent {
	q := comps.SemanticQuery()
	switch {
	case comps.HasPriceBounds() || containsAny(q, budgetCues):
		return IntentBudget
	case containsAny(q, freshCues):
		return IntentFreshness
	case containsAny(q, spicyCues):
		return IntentSpicy
	case comps.HasNegations():
		return IntentExclusion
	default:
		return IntentGeneral
	}
}

var (
	spicyCues  = []string{"spicy", "hot", "chili", "chilli", "sili"}
	freshCues  = []string{"fresh", "harvest", "newly picked"}
	sweetCues  = []string{"sweet", "sugar", "honey", "dessert"}
	budgetCues = []string{"cheap", "budget", "affordable", "bargain"}
)

type ruleInput struct {
	c       *candidate.Candidate
	e       *catalog.Entity
	comps   query.Components
	text    string
	unified bool
}

type rule struct {
	name    string
	match   func(ruleInput) bool
	explain func(ruleInput) string
}

// relevanceRules is evaluated top to bottom; the first match wins.
func (f *Formatter) relevanceRules() []rule {
	return []rule{
		{
			name: "name_match",
			match: func(in ruleInput) bool {
				name := words(in.e.Name)
				q := words(in.comps.SemanticQuery())
				return len(name) > 0 && len(q) > 0 && (containsRun(name, q) || containsRun(q, name))
			},
			explain: func(in ruleInput) string { return fmt.Sprintf("Exactly what you asked for: %s", in.e.Name) },
		},
		{
			name: "spicy_cue",
			match: func(in ruleInput) bool {
				return containsAny(in.comps.SemanticQuery(), spicyCues) && containsAny(in.text, spicyCues)
			},
			explain: func(ruleInput) string { return "Brings the heat you're looking for" },
		},
		{
			name: "fresh_cue",
			match: func(in ruleInput) bool {
				return containsAny(in.comps.SemanticQuery(), freshCues) &&
					(in.e.HarvestedAt != nil || containsAny(in.text, freshCues))
			},
			explain: func(ruleInput) string { return "Fresh pick for your request" },
		},
		{
			name: "sweet_cue",
			match: func(in ruleInput) bool {
				return containsAny(in.comps.SemanticQuery(), sweetCues) && containsAny(in.text, sweetCues)
			},
			explain: func(ruleInput) string { return "Made for a sweet tooth" },
		},
		{
			name: "budget_cue",
			match: func(in ruleInput) bool {
				return in.e.Price != nil && (in.comps.HasPriceBounds() || containsAny(in.comps.SemanticQuery(), budgetCues))
			},
			explain: func(in ruleInput) string {
				return fmt.Sprintf("Fits your budget at %s", f.money(*in.e.Price))
			},
		},
		{
			name:  "top_band",
			match: func(in ruleInput) bool { return in.c.Similarity() > f.cfg.TopBand },
			explain: func(in ruleInput) string {
				return fmt.Sprintf("Top match for %q", in.comps.SemanticQuery())
			},
		},
		{
			name:    "good_band",
			match:   func(in ruleInput) bool { return in.c.Similarity() > f.cfg.GoodBand },
			explain: func(ruleInput) string { return "Could be exactly what you need" },
		},
		{
			name:  "weak_band",
			match: func(ruleInput) bool { return true },
			explain: func(in ruleInput) string {
				return fmt.Sprintf("Might work for %q", in.comps.SemanticQuery())
			},
		},
	}
}

func (f *Formatter) relevance(in ruleInput) (string, string) {
	for _, r := range f.rules {
		if r.match(in) {
			return r.name, r.explain(in)
		}
	}
	return "", ""
}

func (f *Formatter) sellingPoints(in ruleInput) []string {
	var points []string
	if in.unified && in.e.Type != "" {
		points = append(points, fmt.Sprintf("Listed under %ss", in.e.Type))
	}
	if p := in.e.Price; p != nil {
		if maxPrice := in.comps.PriceMax(); maxPrice != nil && *p <= *maxPrice {
			points = append(points, fmt.Sprintf("%s, within your %s limit", f.money(*p), f.money(*maxPrice)))
		} else {
			points = append(points, fmt.Sprintf("Priced at %s", f.money(*p)))
		}
	}
	if s := in.e.StockLevel; s != nil && *s > f.cfg.LowStockThreshold {
		points = append(points, "Ready to ship")
	}
	if cat := strings.TrimSpace(in.e.Category); cat != "" {
		points = append(points, fmt.Sprintf("From our %s range", strings.ToLower(cat)))
	}
	if d := firstSentence(in.e.Description); d != "" {
		points = append(points, d)
	}
	return capList(points, f.cfg.MaxSellingPoints)
}

func (f *Formatter) stockPhrase(e *catalog.Entity) string {
	s := e.StockLevel
	switch {
	case s == nil:
		return ""
	case *s <= 0:
		return "Out of stock"
	case *s == 1:
		return "Last one left"
	case *s <= f.cfg.LowStockThreshold:
		return fmt.Sprintf("Only %d left", *s)
	default:
		return "In stock"
	}
}

func (f *Formatter) freshnessPhrase(e *catalog.Entity, now time.Time) string {
	if e.ExpiresAt != nil {
		left := e.ExpiresAt.Sub(now)
		switch {
		case left < 0:
			return "Past its best-before date"
		case left < 24*time.Hour:
			return "Best before today"
		case days(left) <= f.cfg.ExpiringDays:
			return fmt.Sprintf("Best before in %d days", days(left))
		}
	}
	if e.HarvestedAt != nil {
		age := now.Sub(*e.HarvestedAt)
		switch {
		case age < 0:
			return ""
		case age < 24*time.Hour:
			return "Harvested today"
		case days(age) <= f.cfg.FreshDays:
			if days(age) == 1 {
				return "Harvested yesterday"
			}
			return fmt.Sprintf("Harvested %d days ago", days(age))
		}
	}
	return ""
}

// complementsByKeyword pairs catalog keywords with items that go well with them.
var complementsByKeyword = []struct {
	keyword string
	items   []string
}{
	{"noodle", []string{"egg", "bok choy", "spring onions", "calamansi"}},
	{"rice", []string{"adobo", "fried egg", "soy sauce"}},
	{"coffee", []string{"creamer", "brown sugar", "pandesal"}},
	{"bread", []string{"butter", "jam", "cheese"}},
	{"mango", []string{"sticky rice", "yogurt", "bagoong"}},
	{"chili", []string{"vinegar", "garlic", "fish sauce"}},
	{"drill", []string{"drill bits", "safety goggles", "extension cord"}},
	{"hammer", []string{"nails", "work gloves", "tape measure"}},
	{"saw", []string{"replacement blades", "clamps", "work gloves"}},
	{"wrench", []string{"socket set", "penetrating oil"}},
	{"seed", []string{"potting soil", "fertilizer", "watering can"}},
}

func (f *Formatter) complements(in ruleInput) []string {
	excluded := make(map[string]bool)
	for _, t := range in.comps.NegatedTerms() {
		excluded[t] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, entry := range complementsByKeyword {
		if !containsAny(in.text, []string{entry.keyword}) {
			continue
		}
		for _, item := range entry.items {
			if seen[item] || excluded[item] || strings.Contains(in.text, item) {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	return capList(out, f.cfg.MaxComplements)
}

func (f *Formatter) money(v float64) string {
	if v == math.Trunc(v) {
		return f.cfg.CurrencySymbol + strconv.FormatFloat(v, 'f', 0, 64)
	}
	return f.cfg.CurrencySymbol + strconv.FormatFloat(v, 'f', 2, 64)
}

func days(d time.Duration) int { return int(d.Hours() / 24) }

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsRun reports whether run occurs in ws as consecutive whole words.
func containsRun(ws, run []string) bool {
	for i := 0; i+len(run) <= len(ws); i++ {
		match := true
		for j := range run {
			if ws[i+j] != run[j] {
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

// containsAny reports whether s has a word starting with any single-word
// cue, or contains any multi-word cue verbatim.
func containsAny(s string, cues []string) bool {
	ws := words(s)
	for _, c := range cues {
		if strings.Contains(c, " ") {
			if strings.Contains(s, c) {
				return true
			}
			continue
		}
		for _, w := range ws {
			if strings.HasPrefix(w, c) {
				return true
			}
		}
	}
	return false
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".!?\n"); i >= 0 {
		s = s[:i]
	}
	const maxLen = 80
	if r := []rune(s); len(r) > maxLen {
		s = strings.TrimSpace(string(r[:maxLen])) + "…"
	}
	return s
}

func capList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
