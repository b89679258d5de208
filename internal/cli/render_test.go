package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk/iecat/internal/model"
)

func TestFormatAmount(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		3500000:  "3,500,000",
		-120000:  "-120,000",
		-1234567: "-1,234,567",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatAmount(in))
	}
}

func TestFormatRatio(t *testing.T) {
	assert.Equal(t, "85.71%", FormatRatio(85.71))
	assert.Equal(t, "0.00%", FormatRatio(0))
	assert.Equal(t, "-3.30%", FormatRatio(-3.3))
}

func TestRenderRules(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderRules(&buf, []model.KeywordRule{
		{ID: 1, Keyword: "급여", Type: model.TypeIncome, Category: "고정소득", UsageCount: 5, Source: model.SourceSeed, LastUsedAt: time.Now()},
		{ID: 2, Keyword: "보너스", Type: model.TypeIncome, UsageCount: 1, Source: model.SourceLearned, LastUsedAt: time.Now()},
	}))

	out := buf.String()
	assert.Contains(t, out, "KEYWORD")
	assert.Contains(t, out, "급여")
	assert.Contains(t, out, "고정소득")
	assert.Contains(t, out, "LEARNED")

	buf.Reset()
	require.NoError(t, RenderRules(&buf, nil))
	assert.Contains(t, buf.String(), "No keyword rules")
}

func TestRenderBreakdown(t *testing.T) {
	b := model.NewBreakdown(model.TypeExpense)
	b.Categories["고정지출"]["보험료"] = 120000
	b.Categories["경조사"] = map[string]int64{"축의금": 50000}
	b.CategoryTotals["고정지출"] = 120000
	b.CategoryTotals["경조사"] = 50000
	b.CategoryRatios["고정지출"] = 70.59
	b.GrandTotal = 170000
	b.Source = model.SourceExternal
	b.Warnings = []string{`"로또" is not in the document, ignored`}

	var buf bytes.Buffer
	require.NoError(t, RenderBreakdown(&buf, b))
	out := buf.String()

	assert.Contains(t, out, "170,000")
	assert.Contains(t, out, "70.59%")
	assert.Contains(t, out, "축의금")
	assert.Contains(t, out, "로또")
	assert.Less(t, strings.Index(out, "기타 및 예비비"), strings.Index(out, "경조사"), "taxonomy categories come first")
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, model.Summary{Status: model.StatusDeficit, TotalIncome: 100, TotalExpense: 150, Surplus: -50, SurplusRatio: -50}))
	assert.Contains(t, buf.String(), model.StatusDeficit)
	assert.Contains(t, buf.String(), "-50")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "네\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got, err := Confirm(context.Background(), strings.NewReader(tt.input), &out, "Delete?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "[y/N]")
	}
}

func TestConfirm_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocked, w := io.Pipe()
	defer func() { _ = w.Close() }()
	_, err := Confirm(ctx, blocked, &bytes.Buffer{}, "Delete?")
	assert.ErrorIs(t, err, ErrInputCancelled)
}
