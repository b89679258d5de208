package pattern

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
)

// Default matcher settings.
const (
	DefaultContainmentConfidence = 0.8
	DefaultMaxFuzzyConfidence    = 0.95
	minFuzzyKeywordLen           = 3
	minReverseContainmentLen     = 2
)

// editCost weighs substitutions like insertions so one typo costs one edit.
var editCost = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// Options tunes a Matcher.
type Options struct {
	Logger                *slog.Logger
	ContainmentConfidence float64
	MaxFuzzyConfidence    float64
	Fuzzy                 bool
}

// Matcher resolves labels against the rule store. A Matcher snapshots the
// keyword lists on first use and is meant to live for one batch.
type Matcher struct {
	store    RuleReader
	logger   *slog.Logger
	keywords []model.KeywordRule
	loadErr  error
	opts     Options
	once     sync.Once
}

// NewMatcher creates a matcher over the given rule store.
func NewMatcher(store RuleReader, opts Options) *Matcher {
	if opts.ContainmentConfidence <= 0 {
		opts.ContainmentConfidence = DefaultContainmentConfidence
	}
	if opts.MaxFuzzyConfidence <= 0 {
		opts.MaxFuzzyConfidence = DefaultMaxFuzzyConfidence
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{store: store, logger: logger, opts: opts}
}

// Match returns the best rule for label. Store failures never surface as
// errors: the match comes back empty with Degraded set.
func (m *Matcher) Match(ctx context.Context, label string, hint model.TransactionType) Match {
	normalized := Normalize(label)
	result := Match{Label: normalized, Kind: model.MatchNone}
	if normalized == "" || m.store == nil {
		result.Degraded = m.store == nil
		return result
	}

	keywords, err := m.loadKeywords(ctx)
	if err != nil {
		result.Degraded = true
		return result
	}

	if exact, ok := m.exact(ctx, normalized, hint, keywords); ok {
		result.Rule = exact
		result.Kind = model.MatchExact
		result.Confidence = 1.0
		return result
	} else if ctx.Err() != nil {
		result.Degraded = true
		return result
	}

	if candidates := containing(normalized, keywords); len(candidates) > 0 {
		result.Candidates = candidates
		result.Kind = model.MatchContainment
		rule, ambiguous := resolve(candidates, hint)
		if ambiguous {
			result.Ambiguous = true
			return result
		}
		result.Rule = rule
		result.Confidence = m.opts.ContainmentConfidence
		return result
	}

	if !m.opts.Fuzzy {
		return result
	}

	candidates, distance := nearest(normalized, keywords)
	if len(candidates) == 0 {
		return result
	}
	result.Candidates = candidates
	result.Kind = model.MatchFuzzy
	rule, ambiguous := resolve(candidates, hint)
	if ambiguous {
		result.Ambiguous = true
		return result
	}
	result.Rule = rule
	result.Confidence = fuzzyConfidence(normalized, rule.Keyword, distance, m.opts.MaxFuzzyConfidence)
	return result
}

// exact asks the store first. When the keyword exists under several types
// and the store's pick disagrees with the hint, an agreeing rule from the
// snapshot takes its place.
func (m *Matcher) exact(ctx context.Context, label string, hint model.TransactionType, keywords []model.KeywordRule) (*model.KeywordRule, bool) {
	rule, err := m.store.Lookup(ctx, label)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			m.logger.Warn("Keyword lookup failed, treating as no match", "label", label, "error", err)
		}
		return nil, false
	}
	if hint == "" || rule.Type.Agrees(hint) {
		return rule, true
	}
	for i := range keywords {
		if keywords[i].Keyword == label && keywords[i].Type.Agrees(hint) {
			return &keywords[i], true
		}
	}
	return rule, true
}

func (m *Matcher) loadKeywords(ctx context.Context) ([]model.KeywordRule, error) {
	m.once.Do(func() {
		for _, t := range model.AllTransactionTypes {
			rules, err := m.store.ListByType(ctx, t)
			if err != nil {
				m.loadErr = err
				m.logger.Warn("Rule store unavailable, all items will fall back", "error", err)
				return
			}
			m.keywords = append(m.keywords, rules...)
		}
	})
	return m.keywords, m.loadErr
}

// containing returns rules whose keyword is inside the label, or that
// contain the label when it is long enough to mean something.
func containing(label string, keywords []model.KeywordRule) []model.KeywordRule {
	reverse := runeLen(label) >= minReverseContainmentLen
	var out []model.KeywordRule
	for _, k := range keywords {
		if k.Keyword == "" || k.Keyword == label {
			continue
		}
		if strings.Contains(label, k.Keyword) || (reverse && strings.Contains(k.Keyword, label)) {
			out = append(out, k)
		}
	}
	return out
}

// nearest returns the keywords at the smallest edit distance within the
// allowed budget.
func nearest(label string, keywords []model.KeywordRule) ([]model.KeywordRule, int) {
	best := -1
	var out []model.KeywordRule
	labelRunes := []rune(label)
	for _, k := range keywords {
		kwRunes := []rune(k.Keyword)
		if len(kwRunes) < minFuzzyKeywordLen {
			continue
		}
		d := levenshtein.DistanceForStrings(labelRunes, kwRunes, editCost)
		if d == 0 || d > fuzzyBudget(len(labelRunes), len(kwRunes)) {
			continue
		}
		switch {
		case best < 0 || d < best:
			best = d
			out = []model.KeywordRule{k}
		case d == best:
			out = append(out, k)
		}
	}
	return out, best
}

func fuzzyBudget(a, b int) int {
	if max(a, b) <= 4 {
		return 1
	}
	return 2
}

func fuzzyConfidence(label, keyword string, distance int, ceiling float64) float64 {
	longest := max(runeLen(label), runeLen(keyword))
	if longest == 0 {
		return 0
	}
	c := 1 - float64(distance)/float64(longest)
	return min(c, ceiling)
}

// resolve picks one rule among candidates: hint agreement first, then usage,
// and a usage tie between conflicting types is left undecided.
func resolve(candidates []model.KeywordRule, hint model.TransactionType) (*model.KeywordRule, bool) {
	pool := candidates
	if hint != "" && conflicting(pool) {
		var agreeing []model.KeywordRule
		for _, c := range pool {
			if c.Type.Agrees(hint) {
				agreeing = append(agreeing, c)
			}
		}
		if len(agreeing) > 0 {
			pool = agreeing
		}
	}

	ranked := make([]model.KeywordRule, len(pool))
	copy(ranked, pool)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].UsageCount != ranked[j].UsageCount {
			return ranked[i].UsageCount > ranked[j].UsageCount
		}
		if li, lj := runeLen(ranked[i].Keyword), runeLen(ranked[j].Keyword); li != lj {
			return li > lj
		}
		return ranked[i].Keyword < ranked[j].Keyword
	})

	if conflicting(ranked) {
		var top []model.KeywordRule
		for _, r := range ranked {
			if r.UsageCount == ranked[0].UsageCount {
				top = append(top, r)
			}
		}
		if conflicting(top) {
			return nil, true
		}
	}

	winner := ranked[0]
	return &winner, false
}

// conflicting reports whether rules name more than one transaction type.
func conflicting(rules []model.KeywordRule) bool {
	if len(rules) < 2 {
		return false
	}
	for _, r := range rules[1:] {
		if r.Type != rules[0].Type {
			return true
		}
	}
	return false
}

// Accept applies the acceptance bound. A confidence equal to the threshold
// is accepted.
func Accept(confidence, threshold float64) bool {
	return confidence >= threshold
}
