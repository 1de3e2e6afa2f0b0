// Package classifier maps free-text goods descriptions to insurance categories.
package classifier

import (
	"fmt"
	"log"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// RuleKind tags the tier a piece of evidence came from.
type RuleKind string

const (
	RuleVerbatim RuleKind = "verbatim"
	RuleCompound RuleKind = "compound"
	RuleBrand    RuleKind = "brand"
	RuleKeyword  RuleKind = "keyword"
)

const (
	verbatimConfidence = 0.95
	baseConfidence     = 0.5
	noMatchConfidence  = 0.2
	topicalCreamPhrase = "haenkenium cream"
)

// Result is the outcome of classifying one description.
type Result struct {
	Categories   []Category `json:"categories"`
	Confidence   float64    `json:"confidence"`
	Reasoning    string     `json:"reasoning"`
	MatchedRules []string   `json:"matched_rules"`
}

// Has reports whether c is among the result's categories.
func (r Result) Has(c Category) bool {
	for _, got := range r.Categories {
		if got == c {
			return true
		}
	}
	return false
}

// String renders the categories for a declaration: "A", "A and B", "A, B and C".
func (r Result) String() string {
	names := make([]string, len(r.Categories))
	for i, c := range r.Categories {
		names[i] = string(c)
	}
	switch len(names) {
	case 0:
		return string(CategoryUnknown)
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

type evidence struct {
	kind       RuleKind
	rule       string
	categories []Category
	reason     string
}

type compiledPattern struct {
	source     string
	re         *regexp.Regexp
	categories []Category
}

type compiledKeywords struct {
	category Category
	patterns []compiledPattern
}

type compiledRules struct {
	verbatim []VerbatimLabel
	compound []compiledPattern
	brands   []BrandRule
	keywords []compiledKeywords
}

// tier is one rule evaluator. A terminal tier that produces evidence ends
// classification immediately.
type tier struct {
	kind     RuleKind
	terminal bool
	weight   float64
	eval     func(r *compiledRules, lower string) []evidence
}

var tiers = []tier{
	{kind: RuleVerbatim, terminal: true, eval: evalVerbatim},
	{kind: RuleCompound, weight: 0.25, eval: evalCompound},
	{kind: RuleBrand, weight: 0.2, eval: evalBrand},
	{kind: RuleKeyword, weight: 0.1, eval: evalKeyword},
}

func evalVerbatim(r *compiledRules, lower string) []evidence {
	var out []evidence
	for _, l := range r.verbatim {
		if strings.Contains(lower, l.Phrase) {
			out = append(out, evidence{RuleVerbatim, l.Phrase, l.Categories, fmt.Sprintf("Verbatim label match: '%s'", l.Phrase)})
		}
	}
	return out
}

func evalCompound(r *compiledRules, lower string) []evidence {
	var out []evidence
	for _, p := range r.compound {
		if p.re.MatchString(lower) {
			out = append(out, evidence{RuleCompound, p.source, p.categories, "Matched compound rule: " + p.source})
		}
	}
	return out
}

func evalBrand(r *compiledRules, lower string) []evidence {
	var out []evidence
	for _, b := range r.brands {
		if strings.Contains(lower, b.Brand) {
			out = append(out, evidence{RuleBrand, b.Brand, []Category{b.Category}, fmt.Sprintf("Brand '%s' -> %s", b.Brand, b.Category)})
		}
	}
	return out
}

// evalKeyword counts at most one hit per category: the first pattern that matches.
func evalKeyword(r *compiledRules, lower string) []evidence {
	var out []evidence
	for _, k := range r.keywords {
		for _, p := range k.patterns {
			if p.re.MatchString(lower) {
				out = append(out, evidence{RuleKeyword, p.source, []Category{k.category}, fmt.Sprintf("Keyword '%s' -> %s", p.source, k.category)})
				break
			}
		}
	}
	return out
}

// Classifier runs the rule tiers over a description. It is safe for concurrent use.
type Classifier struct {
	mu    sync.RWMutex
	rules compiledRules
}

// New returns a classifier loaded with the built-in dictionaries.
func New() *Classifier {
	c, err := NewWithRules(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("classifier: default rules do not compile: %v", err))
	}
	return c
}

// NewWithRules compiles a custom rule set.
func NewWithRules(rules Rules) (*Classifier, error) {
	compiled := compiledRules{
		verbatim: make([]VerbatimLabel, 0, len(rules.Verbatim)),
		brands:   make([]BrandRule, 0, len(rules.Brands)),
	}
	for _, v := range rules.Verbatim {
		compiled.verbatim = append(compiled.verbatim, VerbatimLabel{Phrase: strings.ToLower(v.Phrase), Categories: v.Categories})
	}
	for _, cr := range rules.Compound {
		re, err := regexp.Compile(cr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling compound rule %q: %w", cr.Pattern, err)
		}
		compiled.compound = append(compiled.compound, compiledPattern{cr.Pattern, re, cr.Categories})
	}
	for _, b := range rules.Brands {
		compiled.brands = append(compiled.brands, BrandRule{Brand: strings.ToLower(b.Brand), Category: b.Category})
	}
	for _, k := range rules.Keywords {
		for _, p := range k.Patterns {
			if err := compiled.addKeyword(k.Category, p); err != nil {
				return nil, err
			}
		}
	}
	return &Classifier{rules: compiled}, nil
}

func (r *compiledRules) addKeyword(category Category, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compiling keyword pattern %q: %w", pattern, err)
	}
	cp := compiledPattern{source: pattern, re: re}
	for i := range r.keywords {
		if r.keywords[i].category == category {
			r.keywords[i].patterns = append(r.keywords[i].patterns, cp)
			return nil
		}
	}
	r.keywords = append(r.keywords, compiledKeywords{category: category, patterns: []compiledPattern{cp}})
	return nil
}

// Classify maps a description to its categories.
func (c *Classifier) Classify(description string) Result {
	lower := strings.ToLower(strings.TrimSpace(description))
	if lower == "" {
		return Result{
			Categories: []Category{CategoryUnknown},
			Confidence: 0.0,
			Reasoning:  "No description provided",
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := map[Category]bool{}
	var (
		found      []evidence
		reasons    []string
		rules      []string
		confidence = baseConfidence
	)
	for _, t := range tiers {
		ev := t.eval(&c.rules, lower)
		for _, e := range ev {
			for _, cat := range e.categories {
				matched[cat] = true
			}
			found = append(found, e)
			rules = append(rules, string(e.kind)+":"+e.rule)
			reasons = append(reasons, e.reason)
			confidence += t.weight
		}
		if t.terminal && len(ev) > 0 {
			return Result{
				Categories:   sortedCategories(matched),
				Confidence:   verbatimConfidence,
				Reasoning:    strings.Join(reasons, " | "),
				MatchedRules: rules,
			}
		}
	}

	// A named brand's topical-cream line is skincare even though the brand is a device brand,
	// unless a device keyword also matched.
	if matched[CategoryMedicalDevices] && matched[CategorySkincare] &&
		strings.Contains(lower, topicalCreamPhrase) && !hasDeviceKeyword(found) {
		delete(matched, CategoryMedicalDevices)
		reasons = append(reasons, "Haenkenium Cream is skincare, not medical device")
	}

	if len(matched) == 0 {
		return Result{
			Categories:   []Category{CategoryUnknown},
			Confidence:   noMatchConfidence,
			Reasoning:    "No matching patterns found",
			MatchedRules: rules,
		}
	}

	return Result{
		Categories:   sortedCategories(matched),
		Confidence:   math.Min(confidence, 1.0),
		Reasoning:    strings.Join(reasons, " | "),
		MatchedRules: rules,
	}
}

func hasDeviceKeyword(found []evidence) bool {
	for _, e := range found {
		if e.kind != RuleKeyword {
			continue
		}
		if strings.Contains(e.rule, "syringe") || strings.Contains(e.rule, "injectable") {
			return true
		}
	}
	return false
}

func sortedCategories(set map[Category]bool) []Category {
	out := make([]Category, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddBrand adds or replaces a brand mapping.
func (c *Classifier) AddBrand(brand string, category Category) {
	brand = strings.ToLower(strings.TrimSpace(brand))
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.rules.brands {
		if c.rules.brands[i].Brand == brand {
			c.rules.brands[i].Category = category
			log.Printf("classifier.Classifier: updated brand mapping %s -> %s", brand, category)
			return
		}
	}
	c.rules.brands = append(c.rules.brands, BrandRule{Brand: brand, Category: category})
	log.Printf("classifier.Classifier: added brand mapping %s -> %s", brand, category)
}

// AddKeywordPattern appends a keyword pattern to a category's ordered list.
func (c *Classifier) AddKeywordPattern(category Category, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.rules.addKeyword(category, pattern); err != nil {
		return err
	}
	log.Printf("classifier.Classifier: added keyword pattern %s -> %s", pattern, category)
	return nil
}

// AddVerbatimLabel registers a pre-classified label phrase.
func (c *Classifier) AddVerbatimLabel(phrase string, categories ...Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules.verbatim = append(c.rules.verbatim, VerbatimLabel{Phrase: strings.ToLower(strings.TrimSpace(phrase)), Categories: categories})
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
)

// Default returns the shared classifier with built-in rules.
func Default() *Classifier {
	defaultOnce.Do(func() { defaultClassifier = New() })
	return defaultClassifier
}

// ClassifyDescription classifies with the shared classifier and returns the display string.
func ClassifyDescription(description string) string {
	return Default().Classify(description).String()
}
