package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransactionType(t *testing.T) {
	tests := []struct {
		input   string
		want    TransactionType
		wantErr bool
	}{
		{input: "income", want: TypeIncome},
		{input: " Expense ", want: TypeExpense},
		{input: "소득", want: TypeIncome},
		{input: "지출", want: TypeExpense},
		{input: "TOTAL_INCOME", want: TypeTotalIncome},
		{input: "total_expense", want: TypeTotalExpense},
		{input: "savings", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTransactionType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransactionType_Agrees(t *testing.T) {
	assert.True(t, TypeIncome.Agrees(""))
	assert.True(t, TypeTotalIncome.Agrees(TypeIncome))
	assert.True(t, TypeTotalExpense.Agrees(TypeExpense))
	assert.False(t, TypeExpense.Agrees(TypeIncome))
	assert.False(t, TypeTotalIncome.Agrees(TypeExpense))
}

func TestMethod_TextRoundTrip(t *testing.T) {
	for _, m := range []Method{MethodUnresolved, MethodRuleBased, MethodLLMFallback} {
		text, err := m.MarshalText()
		require.NoError(t, err)

		var back Method
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}

	var m Method
	assert.Error(t, m.UnmarshalText([]byte("guess")))
}

func TestNewBreakdown_HasEveryCategory(t *testing.T) {
	b := NewBreakdown(TypeTotalExpense)

	assert.Equal(t, TypeExpense, b.DocType)
	assert.Len(t, b.Categories, len(ExpenseCategories))
	for _, c := range ExpenseCategories {
		assert.Contains(t, b.Categories, c)
		assert.Zero(t, b.CategoryTotals[c])
	}
	assert.Equal(t, "기타 및 예비비", DefaultCategory(TypeExpense))
	assert.Equal(t, "기타소득", DefaultCategory(TypeIncome))
}
