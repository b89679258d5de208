package pattern

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
)

// memoryRules is a RuleReader over a fixed slice. Lookup mirrors the store:
// among same-keyword rules the one listed last is the most recent.
type memoryRules struct {
	err   error
	rules []model.KeywordRule
	lists int
}

func (m *memoryRules) Lookup(_ context.Context, label string) (*model.KeywordRule, error) {
	if m.err != nil {
		return nil, m.err
	}
	var found *model.KeywordRule
	for i := range m.rules {
		if m.rules[i].Keyword == Normalize(label) {
			found = &m.rules[i]
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, label)
	}
	return found, nil
}

func (m *memoryRules) ListByType(_ context.Context, txType model.TransactionType) ([]model.KeywordRule, error) {
	m.lists++
	if m.err != nil {
		return nil, m.err
	}
	var out []model.KeywordRule
	for _, r := range m.rules {
		if r.Type == txType {
			out = append(out, r)
		}
	}
	return out, nil
}

func rule(keyword string, t model.TransactionType, usage int) model.KeywordRule {
	return model.KeywordRule{Keyword: keyword, Type: t, UsageCount: usage}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "국민연금_보험료", want: "국민연금 보험료"},
		{input: "  급여  ", want: "급여"},
		{input: "Net_Pay\tBONUS", want: "net pay bonus"},
		{input: "__", want: ""},
		{input: "식대  (비과세)", want: "식대 (비과세)"},
		// Decomposed jamo compose to the precomposed syllable.
		{input: "\u1100\u1161\u11ab", want: "\uac04"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name           string
		label          string
		hint           model.TransactionType
		rules          []model.KeywordRule
		wantKeyword    string
		wantType       model.TransactionType
		wantKind       model.MatchKind
		wantConfidence float64
		wantAmbiguous  bool
	}{
		{
			name:           "exact match",
			label:          "급여",
			rules:          []model.KeywordRule{rule("급여", model.TypeIncome, 5)},
			wantKeyword:    "급여",
			wantType:       model.TypeIncome,
			wantKind:       model.MatchExact,
			wantConfidence: 1.0,
		},
		{
			name:  "exact beats more used containment",
			label: "보험료",
			rules: []model.KeywordRule{
				rule("보험료", model.TypeExpense, 1),
				rule("보험", model.TypeIncome, 100),
			},
			wantKeyword:    "보험료",
			wantType:       model.TypeExpense,
			wantKind:       model.MatchExact,
			wantConfidence: 1.0,
		},
		{
			name:           "underscore label contains keyword",
			label:          "국민연금_보험료",
			rules:          []model.KeywordRule{rule("보험료", model.TypeExpense, 3)},
			wantKeyword:    "보험료",
			wantType:       model.TypeExpense,
			wantKind:       model.MatchContainment,
			wantConfidence: 0.8,
		},
		{
			name:           "keyword contains label",
			label:          "연금",
			rules:          []model.KeywordRule{rule("국민연금", model.TypeExpense, 1)},
			wantKeyword:    "국민연금",
			wantType:       model.TypeExpense,
			wantKind:       model.MatchContainment,
			wantConfidence: 0.8,
		},
		{
			name:     "single rune label does not reverse match",
			label:    "금",
			rules:    []model.KeywordRule{rule("상여금", model.TypeIncome, 1)},
			wantKind: model.MatchNone,
		},
		{
			name:  "hint breaks type conflict",
			label: "상여금 카드",
			hint:  model.TypeExpense,
			rules: []model.KeywordRule{
				rule("상여금", model.TypeIncome, 9),
				rule("카드", model.TypeExpense, 1),
			},
			wantKeyword:    "카드",
			wantType:       model.TypeExpense,
			wantKind:       model.MatchContainment,
			wantConfidence: 0.8,
		},
		{
			name:  "usage breaks conflict without hint",
			label: "상여금 카드",
			rules: []model.KeywordRule{
				rule("상여금", model.TypeIncome, 9),
				rule("카드", model.TypeExpense, 1),
			},
			wantKeyword:    "상여금",
			wantType:       model.TypeIncome,
			wantKind:       model.MatchContainment,
			wantConfidence: 0.8,
		},
		{
			name:  "tie between conflicting types stays uncertain",
			label: "상여금 카드",
			rules: []model.KeywordRule{
				rule("상여금", model.TypeIncome, 2),
				rule("카드", model.TypeExpense, 2),
			},
			wantKind:      model.MatchContainment,
			wantAmbiguous: true,
		},
		{
			name:  "hint that agrees with nobody does not force a pick",
			label: "체크카드 사용",
			hint:  model.TypeIncome,
			rules: []model.KeywordRule{
				rule("카드", model.TypeExpense, 2),
				rule("체크카드", model.TypeTotalExpense, 2),
			},
			wantKind:      model.MatchContainment,
			wantAmbiguous: true,
		},
		{
			name:  "same type candidates prefer the longer keyword",
			label: "국민연금 보험료",
			rules: []model.KeywordRule{
				rule("보험료", model.TypeExpense, 3),
				rule("국민연금", model.TypeExpense, 3),
			},
			wantKeyword:    "국민연금",
			wantType:       model.TypeExpense,
			wantKind:       model.MatchContainment,
			wantConfidence: 0.8,
		},
		{
			name:           "fuzzy near miss",
			label:          "인센티부",
			rules:          []model.KeywordRule{rule("인센티브", model.TypeIncome, 1)},
			wantKeyword:    "인센티브",
			wantType:       model.TypeIncome,
			wantKind:       model.MatchFuzzy,
			wantConfidence: 0.75,
		},
		{
			name:     "no match",
			label:    "로또 당첨금",
			rules:    []model.KeywordRule{rule("급여", model.TypeIncome, 5)},
			wantKind: model.MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(&memoryRules{rules: tt.rules}, Options{Fuzzy: true})
			got := m.Match(ctx, tt.label, tt.hint)

			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantAmbiguous, got.Ambiguous)
			assert.False(t, got.Degraded)
			if tt.wantKeyword == "" {
				assert.False(t, got.Found())
				assert.Zero(t, got.Confidence)
				return
			}
			require.True(t, got.Found())
			assert.Equal(t, tt.wantKeyword, got.Rule.Keyword)
			assert.Equal(t, tt.wantType, got.Rule.Type)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
		})
	}
}

func TestMatcher_ExactPrefersHintedType(t *testing.T) {
	store := &memoryRules{rules: []model.KeywordRule{
		rule("환급", model.TypeIncome, 1),
		rule("환급", model.TypeExpense, 1),
	}}

	got := NewMatcher(store, Options{}).Match(context.Background(), "환급", model.TypeIncome)
	require.True(t, got.Found())
	assert.Equal(t, model.TypeIncome, got.Rule.Type)

	got = NewMatcher(store, Options{}).Match(context.Background(), "환급", "")
	require.True(t, got.Found())
	assert.Equal(t, model.TypeExpense, got.Rule.Type, "most recent wins without a hint")
}

func TestMatcher_FuzzyDisabled(t *testing.T) {
	m := NewMatcher(&memoryRules{rules: []model.KeywordRule{rule("인센티브", model.TypeIncome, 1)}}, Options{})

	got := m.Match(context.Background(), "인센티부", "")
	assert.False(t, got.Found())
	assert.Equal(t, model.MatchNone, got.Kind)
}

func TestMatcher_StoreFailureDegrades(t *testing.T) {
	store := &memoryRules{err: fmt.Errorf("%w: connection refused", common.ErrStoreUnavailable)}
	m := NewMatcher(store, Options{Fuzzy: true})

	for _, label := range []string{"급여", "보너스"} {
		got := m.Match(context.Background(), label, model.TypeIncome)
		assert.True(t, got.Degraded)
		assert.False(t, got.Found())
		assert.Zero(t, got.Confidence)
	}
	assert.Equal(t, 1, store.lists, "keyword lists load once per matcher")
}

func TestMatcher_NilStoreDegrades(t *testing.T) {
	got := NewMatcher(nil, Options{}).Match(context.Background(), "급여", "")
	assert.True(t, got.Degraded)
	assert.False(t, got.Found())
}

func TestMatcher_EmptyLabel(t *testing.T) {
	got := NewMatcher(&memoryRules{}, Options{}).Match(context.Background(), " _ ", "")
	assert.False(t, got.Found())
	assert.False(t, got.Degraded)
}

func TestAccept(t *testing.T) {
	assert.True(t, Accept(0.8, 0.8))
	assert.False(t, Accept(0.8-1e-9, 0.8))
	assert.True(t, Accept(1.0, 0.8))
	assert.False(t, Accept(0, 0.8))
}

func TestConflicting(t *testing.T) {
	assert.False(t, conflicting(nil))
	assert.False(t, conflicting([]model.KeywordRule{rule("급여", model.TypeIncome, 1)}))
	assert.True(t, conflicting([]model.KeywordRule{
		rule("급여", model.TypeIncome, 1),
		rule("총소득", model.TypeTotalIncome, 1),
	}))
}
