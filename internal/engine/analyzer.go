package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/fintalk/iecat/internal/model"
)

// DocumentCategorizer is satisfied by *Categorizer.
type DocumentCategorizer interface {
	CategorizeDocument(ctx context.Context, items map[string]string, docType model.TransactionType) (*model.Breakdown, error)
}

// reservedFields are request metadata that travel with ledger fields.
var reservedFields = map[string]bool{"USER_TOKEN": true}

// Analyzer categorizes a combined ledger of "소득:급여" / "지출:식비" style
// fields and compares the two sides.
type Analyzer struct {
	categorizer DocumentCategorizer
	logger      *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(categorizer DocumentCategorizer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{categorizer: categorizer, logger: logger}
}

// SplitDocuments separates prefixed ledger fields into income and expense
// documents. Fields without a recognizable prefix are dropped. Fields that
// trim to the same label are summed; when an amount is unreadable the
// later field (in key order) is skipped instead.
func SplitDocuments(raw map[string]string) (income, expense map[string]string, skipped []string) {
	income = make(map[string]string)
	expense = make(map[string]string)

	for _, key := range slices.Sorted(maps.Keys(raw)) {
		if reservedFields[key] {
			continue
		}
		prefix, label, ok := strings.Cut(key, ":")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			skipped = append(skipped, key)
			continue
		}
		docType, err := model.ParseTransactionType(prefix)
		if err != nil || docType.IsTotal() {
			skipped = append(skipped, key)
			continue
		}

		doc := expense
		if docType == model.TypeIncome {
			doc = income
		}
		if !merge(doc, label, raw[key]) {
			skipped = append(skipped, key)
		}
	}
	return income, expense, skipped
}

// merge adds value under label, summing with an existing entry.
func merge(doc map[string]string, label, value string) bool {
	existing, ok := doc[label]
	if !ok {
		doc[label] = value
		return true
	}
	a, errA := ParseAmount(existing)
	b, errB := ParseAmount(value)
	if errA != nil || errB != nil {
		return false
	}
	doc[label] = strconv.FormatInt(a+b, 10)
	return true
}

// Analyze categorizes both documents and summarizes the balance.
func (a *Analyzer) Analyze(ctx context.Context, raw map[string]string) (*model.Analysis, error) {
	income, expense, skipped := SplitDocuments(raw)
	if len(skipped) > 0 {
		a.logger.Warn("Ignoring ledger fields", "fields", skipped)
	}

	incomeBreakdown, err := a.categorizer.CategorizeDocument(ctx, income, model.TypeIncome)
	if err != nil {
		return nil, fmt.Errorf("failed to categorize income: %w", err)
	}
	expenseBreakdown, err := a.categorizer.CategorizeDocument(ctx, expense, model.TypeExpense)
	if err != nil {
		return nil, fmt.Errorf("failed to categorize expense: %w", err)
	}

	return &model.Analysis{
		Income:  incomeBreakdown,
		Expense: expenseBreakdown,
		Summary: Summarize(incomeBreakdown.GrandTotal, expenseBreakdown.GrandTotal),
	}, nil
}

// Summarize compares total income with total expense.
func Summarize(totalIncome, totalExpense int64) model.Summary {
	surplus := totalIncome - totalExpense

	status := model.StatusBalanced
	switch {
	case surplus > 0:
		status = model.StatusSurplus
	case surplus < 0:
		status = model.StatusDeficit
	}

	var ratio float64
	if totalIncome > 0 {
		ratio = Percent(surplus, totalIncome)
	}

	return model.Summary{
		TotalIncome:  totalIncome,
		TotalExpense: totalExpense,
		Surplus:      surplus,
		SurplusRatio: ratio,
		Status:       status,
	}
}
