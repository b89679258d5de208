package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
	"github.com/fintalk/iecat/internal/pattern"
	"github.com/fintalk/iecat/internal/testutil"
)

type mockRuleStore struct {
	mock.Mock
}

func (m *mockRuleStore) Lookup(ctx context.Context, label string) (*model.KeywordRule, error) {
	args := m.Called(ctx, label)
	if rule, ok := args.Get(0).(*model.KeywordRule); ok {
		return rule, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRuleStore) Upsert(ctx context.Context, label string, txType model.TransactionType, category string) (*model.KeywordRule, error) {
	args := m.Called(ctx, label, txType, category)
	if rule, ok := args.Get(0).(*model.KeywordRule); ok {
		return rule, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRuleStore) Reinforce(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRuleStore) ListByType(ctx context.Context, txType model.TransactionType) ([]model.KeywordRule, error) {
	args := m.Called(ctx, txType)
	if rules, ok := args.Get(0).([]model.KeywordRule); ok {
		return rules, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestHybridClassifier_SalaryAndBonus(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupRuleStore(t, testutil.Rule("급여", model.TypeIncome, "고정소득", 5))

	c := NewHybridClassifier(store, ClassifierOptions{})
	result := c.ClassifyBatch(ctx, map[string]string{"급여": "3000000", "보너스": "500000"}, model.TypeIncome)

	assert.Equal(t, map[string]string{"급여": "3000000"}, result.Confident)
	assert.Equal(t, map[string]string{"보너스": "500000"}, result.Uncertain)
	assert.Equal(t, 2, result.Statistics.TotalItems)
	assert.Equal(t, 1, result.Statistics.RuleHitCount)
	assert.Equal(t, 1, result.Statistics.FallbackCount)
	assert.InDelta(t, 0.5, result.Statistics.RuleHitRate, 1e-9)
	assert.InDelta(t, 0.5, result.Statistics.FallbackRate, 1e-9)
	assert.NotEmpty(t, result.BatchID)

	salary, ok := result.Item("급여")
	require.True(t, ok)
	assert.Equal(t, model.MethodRuleBased, salary.Method)
	assert.Equal(t, model.MatchExact, salary.MatchKind)
	assert.Equal(t, int64(3000000), salary.Amount)
	assert.Equal(t, "고정소득", salary.ResolvedCategory)

	bonus, ok := result.Item("보너스")
	require.True(t, ok)
	assert.Equal(t, model.MethodLLMFallback, bonus.Method)
	assert.Zero(t, bonus.Confidence)

	rule, err := store.Lookup(ctx, "급여")
	require.NoError(t, err)
	assert.Equal(t, 6, rule.UsageCount, "a fired rule is reinforced")
}

func TestHybridClassifier_ContainmentOnUnderscoreLabel(t *testing.T) {
	store := testutil.SetupRuleStore(t, testutil.Rule("보험료", model.TypeExpense, "고정지출", 1))

	item := NewHybridClassifier(store, ClassifierOptions{}).
		ClassifyItem(context.Background(), "국민연금_보험료", "135,000", model.TypeExpense)

	assert.Equal(t, "국민연금 보험료", item.NormalizedLabel)
	assert.Equal(t, model.MatchContainment, item.MatchKind)
	assert.InDelta(t, 0.8, item.Confidence, 1e-9)
	assert.Equal(t, model.MethodRuleBased, item.Method)
	assert.Equal(t, model.TypeExpense, item.ResolvedType)
	assert.Equal(t, int64(135000), item.Amount)
}

func TestHybridClassifier_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       model.Method
	}{
		{name: "exactly at bound is accepted", confidence: 0.8, want: model.MethodRuleBased},
		{name: "epsilon below bound falls back", confidence: 0.8 - 1e-9, want: model.MethodLLMFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.SetupRuleStore(t, testutil.Rule("보험료", model.TypeExpense, "", 1))
			c := NewHybridClassifier(store, ClassifierOptions{
				Threshold: 0.8,
				Matcher:   pattern.Options{ContainmentConfidence: tt.confidence},
			})

			item := c.ClassifyItem(context.Background(), "자동차 보험료", "50000", "")
			assert.Equal(t, tt.want, item.Method)
			assert.InDelta(t, tt.confidence, item.Confidence, 1e-12)
		})
	}
}

func TestHybridClassifier_GracefulDegradation(t *testing.T) {
	ctx := context.Background()
	items := map[string]string{"급여": "3000000", "보험료": "120000", "식대": "200000"}

	assertAllUncertain := func(t *testing.T, result *model.BatchResult) {
		t.Helper()
		assert.Empty(t, result.Confident)
		assert.Equal(t, items, result.Uncertain)
		assert.Equal(t, 3, result.Statistics.FallbackCount)
		assert.Zero(t, result.Statistics.RuleHitRate)
	}

	t.Run("empty store", func(t *testing.T) {
		store := testutil.SetupRuleStore(t)
		assertAllUncertain(t, NewHybridClassifier(store, ClassifierOptions{}).ClassifyBatch(ctx, items, model.TypeIncome))
	})

	t.Run("erroring store", func(t *testing.T) {
		store := &mockRuleStore{}
		down := errors.Join(common.ErrStoreUnavailable, errors.New("connection refused"))
		store.On("ListByType", mock.Anything, mock.Anything).Return(nil, down)
		store.On("Lookup", mock.Anything, mock.Anything).Return(nil, down)

		assert.NotPanics(t, func() {
			assertAllUncertain(t, NewHybridClassifier(store, ClassifierOptions{}).ClassifyBatch(ctx, items, ""))
		})
		store.AssertNotCalled(t, "Reinforce", mock.Anything, mock.Anything)
	})

	t.Run("no store", func(t *testing.T) {
		assertAllUncertain(t, NewHybridClassifier(nil, ClassifierOptions{}).ClassifyBatch(ctx, items, ""))
	})

	t.Run("reinforce failure keeps the verdict", func(t *testing.T) {
		store := &mockRuleStore{}
		salary := &model.KeywordRule{ID: 7, Keyword: "급여", Type: model.TypeIncome, UsageCount: 3}
		store.On("ListByType", mock.Anything, model.TypeIncome).Return([]model.KeywordRule{*salary}, nil)
		store.On("ListByType", mock.Anything, mock.Anything).Return([]model.KeywordRule{}, nil)
		store.On("Lookup", mock.Anything, "급여").Return(salary, nil)
		store.On("Reinforce", mock.Anything, int64(7)).Return(common.ErrStoreUnavailable)

		item := NewHybridClassifier(store, ClassifierOptions{}).ClassifyItem(ctx, "급여", "1", "")
		assert.Equal(t, model.MethodRuleBased, item.Method)
		store.AssertCalled(t, "Reinforce", mock.Anything, int64(7))
	})
}

func TestHybridClassifier_MalformedItemsAreIsolated(t *testing.T) {
	store := testutil.SetupRuleStore(t,
		testutil.Rule("급여", model.TypeIncome, "고정소득", 1),
		testutil.Rule("식대", model.TypeIncome, "고정소득", 1),
	)

	result := NewHybridClassifier(store, ClassifierOptions{}).ClassifyBatch(context.Background(), map[string]string{
		"급여":  "3,000,000원",
		"식대":  "이십만원",
		" _ ": "100",
	}, model.TypeIncome)

	assert.Equal(t, map[string]string{"급여": "3,000,000원"}, result.Confident)
	assert.Len(t, result.Uncertain, 2)

	meal, _ := result.Item("식대")
	assert.ErrorIs(t, meal.Err, common.ErrMalformedItem)
	blank, _ := result.Item(" _ ")
	assert.ErrorIs(t, blank.Err, common.ErrMalformedItem)
}

func TestHybridClassifier_PanickingStoreIsIsolated(t *testing.T) {
	store := &mockRuleStore{}
	store.On("ListByType", mock.Anything, mock.Anything).Return([]model.KeywordRule{}, nil)
	store.On("Lookup", mock.Anything, "폭탄").Panic("driver bug")
	store.On("Lookup", mock.Anything, mock.Anything).Return(nil, common.ErrNotFound)

	result := NewHybridClassifier(store, ClassifierOptions{}).ClassifyBatch(context.Background(), map[string]string{
		"폭탄": "1",
		"급여": "2",
	}, "")

	assert.Len(t, result.Uncertain, 2)
	boom, _ := result.Item("폭탄")
	assert.ErrorIs(t, boom.Err, common.ErrMalformedItem)
	assert.Equal(t, 2, result.Statistics.TotalItems)
}

func TestHybridClassifier_StatisticsArePerInstance(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupRuleStore(t, testutil.Rule("급여", model.TypeIncome, "", 1))

	first := NewHybridClassifier(store, ClassifierOptions{})
	first.ClassifyBatch(ctx, map[string]string{"급여": "1", "보너스": "2"}, "")
	first.RecordLearned(1)

	second := NewHybridClassifier(store, ClassifierOptions{})
	assert.Equal(t, model.Statistics{}, second.Statistics())
	assert.NotEqual(t, first.BatchID(), second.BatchID())

	stats := first.Statistics()
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, 1, stats.NewKeywordsLearned)
}

func TestHybridClassifier_InvalidThresholdUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultConfidenceThreshold, NewHybridClassifier(nil, ClassifierOptions{Threshold: 1.5}).Threshold())
	assert.Equal(t, 0.9, NewHybridClassifier(nil, ClassifierOptions{Threshold: 0.9}).Threshold())
}
