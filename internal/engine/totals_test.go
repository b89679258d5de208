package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
)

func TestIsTotalLabel(t *testing.T) {
	for _, label := range []string{"총 소득", "총소득", "총_지출", "월 합계", "TOTAL", "총 비용"} {
		assert.True(t, IsTotalLabel(label), label)
	}
	for _, label := range []string{"급여", "소득세", "", "총무팀 회식"} {
		assert.False(t, IsTotalLabel(label), label)
	}
}

func TestExtractTotal(t *testing.T) {
	item := func(label string, amount int64) model.ClassificationItem {
		return model.ClassificationItem{RawLabel: label, Amount: amount, Method: model.MethodLLMFallback}
	}

	t.Run("explicit total wins", func(t *testing.T) {
		grand, explicit := ExtractTotal([]model.ClassificationItem{
			item("급여", 3000000),
			item("보너스", 400000),
			item("총 소득", 3500000),
		})
		assert.Equal(t, int64(3500000), grand)
		require.NotNil(t, explicit)
		assert.Equal(t, int64(3500000), *explicit)
	})

	t.Run("sum when no total field", func(t *testing.T) {
		grand, explicit := ExtractTotal([]model.ClassificationItem{item("급여", 3000000), item("보너스", 400000)})
		assert.Equal(t, int64(3400000), grand)
		assert.Nil(t, explicit)
	})

	t.Run("rule-resolved total type counts as total", func(t *testing.T) {
		total := item("월간 집계", 900)
		total.Method = model.MethodRuleBased
		total.ResolvedType = model.TypeTotalExpense
		grand, explicit := ExtractTotal([]model.ClassificationItem{item("식비", 100), total})
		assert.Equal(t, int64(900), grand)
		assert.NotNil(t, explicit)
	})

	t.Run("largest of several totals", func(t *testing.T) {
		grand, _ := ExtractTotal([]model.ClassificationItem{item("합계", 10), item("총 지출", 20)})
		assert.Equal(t, int64(20), grand)
	})

	t.Run("malformed items are ignored", func(t *testing.T) {
		bad := item("식비", 0)
		bad.Err = common.ErrMalformedItem
		grand, _ := ExtractTotal([]model.ClassificationItem{bad, item("교통비", 50)})
		assert.Equal(t, int64(50), grand)
	})
}
