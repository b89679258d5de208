package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/fintalk/iecat/internal/model"
)

// FormatAmount renders a whole-currency amount with thousands separators.
func FormatAmount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// FormatRatio renders a 0-100 ratio with two decimals.
func FormatRatio(r float64) string {
	return decimal.NewFromFloat(r).StringFixed(2) + "%"
}

// Table renders rows under a header with aligned columns.
func Table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	render := func(cells []string, style lipgloss.Style) string {
		out := make([]string, len(cells))
		for i, cell := range cells {
			out[i] = TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, out...))
	}

	lines := []string{render(header, TableHeaderStyle)}
	for _, row := range rows {
		lines = append(lines, render(row, lipgloss.NewStyle()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RenderRules writes the keyword rules as a table.
func RenderRules(w io.Writer, rules []model.KeywordRule) error {
	if len(rules) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No keyword rules"))
		return err
	}

	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		category := r.Category
		if category == "" {
			category = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Keyword,
			string(r.Type),
			category,
			strconv.Itoa(r.UsageCount),
			string(r.Source),
			r.LastUsedAt.Format("2006-01-02 15:04"),
		})
	}

	_, err := fmt.Fprintln(w, Table([]string{"ID", "KEYWORD", "TYPE", "CATEGORY", "USAGE", "SOURCE", "LAST USED"}, rows))
	return err
}

// RenderStatistics writes a one-box summary of a classification run.
func RenderStatistics(w io.Writer, stats model.Statistics) error {
	body := strings.Join([]string{
		fmt.Sprintf("items        %d", stats.TotalItems),
		fmt.Sprintf("rule hits    %d (%s)", stats.RuleHitCount, FormatRatio(stats.RuleHitRate*100)),
		fmt.Sprintf("fallbacks    %d (%s)", stats.FallbackCount, FormatRatio(stats.FallbackRate*100)),
		fmt.Sprintf("learned      %d", stats.NewKeywordsLearned),
	}, "\n")
	_, err := fmt.Fprintln(w, RenderBox("Statistics", body))
	return err
}

// RenderBatch writes the per-item verdicts of a rule pass.
func RenderBatch(w io.Writer, result *model.BatchResult) error {
	rows := make([][]string, 0, len(result.Items))
	for _, item := range result.Items {
		verdict := SuccessStyle.Render(item.Method.String())
		if !item.Accepted() {
			verdict = WarningStyle.Render(item.Method.String())
		}
		rows = append(rows, []string{
			item.RawLabel,
			FormatAmount(item.Amount),
			string(item.ResolvedType),
			item.MatchedKeyword,
			string(item.MatchKind),
			strconv.FormatFloat(item.Confidence, 'f', 2, 64),
			verdict,
		})
	}
	if _, err := fmt.Fprintln(w, Table([]string{"LABEL", "AMOUNT", "TYPE", "KEYWORD", "MATCH", "CONF", "METHOD"}, rows)); err != nil {
		return err
	}
	return RenderStatistics(w, result.Statistics)
}

// RenderBreakdown writes the buckets of a categorized document, taxonomy
// categories first.
func RenderBreakdown(w io.Writer, b *model.Breakdown) error {
	title := fmt.Sprintf("%s  total %s  (%s)", b.DocType, FormatAmount(b.GrandTotal), b.Source)
	if b.Cached {
		title += " cached"
	}

	var rows [][]string
	for _, category := range orderedCategories(b) {
		rows = append(rows, []string{
			category,
			FormatAmount(b.CategoryTotals[category]),
			FormatRatio(b.CategoryRatios[category]),
		})
		bucket := b.Categories[category]
		labels := make([]string, 0, len(bucket))
		for label := range bucket {
			labels = append(labels, label)
		}
		slices.Sort(labels)
		for _, label := range labels {
			rows = append(rows, []string{SubtleStyle.Render("  " + label), SubtleStyle.Render(FormatAmount(bucket[label])), ""})
		}
	}

	content := Table([]string{"CATEGORY", "AMOUNT", "RATIO"}, rows)
	if b.Error != "" {
		content += "\n" + FormatWarning(b.Error)
	}
	for _, warning := range b.Warnings {
		content += "\n" + FormatWarning(warning)
	}
	_, err := fmt.Fprintln(w, RenderBox(title, content))
	return err
}

// RenderSummary writes the income/expense balance.
func RenderSummary(w io.Writer, s model.Summary) error {
	style := SuccessStyle
	if s.Surplus < 0 {
		style = ErrorStyle
	}
	body := strings.Join([]string{
		fmt.Sprintf("income    %s", FormatAmount(s.TotalIncome)),
		fmt.Sprintf("expense   %s", FormatAmount(s.TotalExpense)),
		style.Render(fmt.Sprintf("surplus   %s (%s)", FormatAmount(s.Surplus), FormatRatio(s.SurplusRatio))),
	}, "\n")
	_, err := fmt.Fprintln(w, RenderBox(s.Status, body))
	return err
}

func orderedCategories(b *model.Breakdown) []string {
	taxonomy := model.CategoriesFor(b.DocType)
	out := slices.Clone(taxonomy)
	var extra []string
	for category := range b.Categories {
		if !slices.Contains(taxonomy, category) {
			extra = append(extra, category)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}
