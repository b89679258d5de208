package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
	"github.com/fintalk/iecat/internal/pattern"
	"github.com/fintalk/iecat/internal/testutil"
)

type mockRuleWriter struct {
	mock.Mock
}

func (m *mockRuleWriter) Upsert(ctx context.Context, label string, txType model.TransactionType, category string) (*model.KeywordRule, error) {
	args := m.Called(ctx, label, txType, category)
	if rule, ok := args.Get(0).(*model.KeywordRule); ok {
		return rule, args.Error(1)
	}
	return nil, args.Error(1)
}

func uncertain(labels ...string) []model.ClassificationItem {
	items := make([]model.ClassificationItem, 0, len(labels))
	for _, l := range labels {
		items = append(items, model.ClassificationItem{
			RawLabel:        l,
			NormalizedLabel: pattern.Normalize(l),
			Method:          model.MethodLLMFallback,
		})
	}
	return items
}

func external(buckets map[string]map[string]int64) *model.ExternalResult {
	return &model.ExternalResult{Categories: buckets, CategoryTotals: map[string]int64{}}
}

func TestLearner_LearnsSingleBucket(t *testing.T) {
	writer := &mockRuleWriter{}
	writer.On("Upsert", mock.Anything, "보너스", model.TypeIncome, "변동소득").
		Return(&model.KeywordRule{ID: 1, Keyword: "보너스", Type: model.TypeIncome, UsageCount: 1}, nil)

	report := NewLearner(writer, nil).LearnFromResult(context.Background(),
		uncertain("보너스"),
		external(map[string]map[string]int64{"변동소득": {"보너스": 500000}}),
		model.TypeIncome)

	assert.Equal(t, []string{"보너스"}, report.Learned)
	writer.AssertExpectations(t)
}

func TestLearner_NeverGuessesAbsentLabels(t *testing.T) {
	writer := &mockRuleWriter{}

	report := NewLearner(writer, nil).LearnFromResult(context.Background(),
		uncertain("부업 수입"),
		external(map[string]map[string]int64{"기타소득": {"이자": 1000}}),
		model.TypeIncome)

	assert.Equal(t, []string{"부업 수입"}, report.Absent)
	assert.Empty(t, report.Learned)
	writer.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLearner_SkipsConflictingBuckets(t *testing.T) {
	writer := &mockRuleWriter{}

	report := NewLearner(writer, nil).LearnFromResult(context.Background(),
		uncertain("수당"),
		external(map[string]map[string]int64{
			"고정소득": {"수당": 100},
			"변동소득": {"수당": 100},
		}),
		model.TypeIncome)

	assert.Equal(t, []string{"수당"}, report.Conflicts)
	writer.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLearner_MatchesBucketLabelsAfterNormalization(t *testing.T) {
	writer := &mockRuleWriter{}
	writer.On("Upsert", mock.Anything, "국민연금 보험료", model.TypeExpense, "고정지출").
		Return(&model.KeywordRule{ID: 2, Keyword: "국민연금 보험료", Type: model.TypeExpense}, nil)

	report := NewLearner(writer, nil).LearnFromResult(context.Background(),
		uncertain("국민연금_보험료"),
		external(map[string]map[string]int64{"고정지출": {"국민연금 보험료": 135000}}),
		model.TypeExpense)

	assert.Equal(t, []string{"국민연금_보험료"}, report.Learned)
	writer.AssertExpectations(t)
}

func TestLearner_DropsOffTaxonomyCategory(t *testing.T) {
	writer := &mockRuleWriter{}
	writer.On("Upsert", mock.Anything, "경조사비", model.TypeExpense, "").
		Return(&model.KeywordRule{ID: 3, Keyword: "경조사비", Type: model.TypeExpense}, nil)

	report := NewLearner(writer, nil).LearnFromResult(context.Background(),
		uncertain("경조사비"),
		external(map[string]map[string]int64{"경조사": {"경조사비": 100000}}),
		model.TypeTotalExpense)

	assert.Equal(t, []string{"경조사비"}, report.Learned)
	writer.AssertExpectations(t)
}

func TestLearner_SkipsTotalsAndReportsFailures(t *testing.T) {
	writer := &mockRuleWriter{}
	writer.On("Upsert", mock.Anything, "식비", model.TypeExpense, "변동지출").
		Return(nil, common.ErrStoreUnavailable)

	report := NewLearner(writer, nil).LearnFromResult(context.Background(),
		uncertain("총 지출", "식비"),
		external(map[string]map[string]int64{
			"변동지출": {"식비": 400000, "총 지출": 400000},
		}),
		model.TypeExpense)

	assert.Equal(t, []string{"식비"}, report.Failed)
	assert.Empty(t, report.Learned)
	writer.AssertNumberOfCalls(t, "Upsert", 1)
}

func TestLearner_NilInputs(t *testing.T) {
	assert.Equal(t, LearnReport{}, NewLearner(nil, nil).LearnFromResult(context.Background(), uncertain("a"), external(nil), model.TypeIncome))
	assert.Equal(t, LearnReport{}, NewLearner(&mockRuleWriter{}, nil).LearnFromResult(context.Background(), uncertain("a"), nil, model.TypeIncome))

	_, err := NewLearner(nil, nil).Learn(context.Background(), "a", model.TypeIncome, "")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestLearner_RealStoreIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupRuleStore(t)
	learner := NewLearner(store, nil)
	result := external(map[string]map[string]int64{"변동소득": {"보너스": 500000}})

	for i := 0; i < 3; i++ {
		report := learner.LearnFromResult(ctx, uncertain("보너스"), result, model.TypeIncome)
		require.Len(t, report.Learned, 1)
	}

	rules, err := store.ListByType(ctx, model.TypeIncome)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "보너스", rules[0].Keyword)
	assert.Equal(t, "변동소득", rules[0].Category)
	assert.Equal(t, 3, rules[0].UsageCount)
	assert.Equal(t, model.SourceLearned, rules[0].Source)
}
