package engine

import (
	"strings"

	"github.com/fintalk/iecat/internal/model"
	"github.com/fintalk/iecat/internal/pattern"
)

// totalKeywords flag a field as a document total even without a rule.
var totalKeywords = []string{
	"총 소득", "총소득", "총수입", "총 수입",
	"총 지출", "총지출", "총 비용", "총비용",
	"합계", "total",
}

// IsTotalLabel reports whether a label names a document total.
func IsTotalLabel(label string) bool {
	normalized := pattern.Normalize(label)
	if normalized == "" {
		return false
	}
	compact := strings.ReplaceAll(normalized, " ", "")
	for _, k := range totalKeywords {
		if strings.Contains(normalized, k) || strings.Contains(compact, strings.ReplaceAll(k, " ", "")) {
			return true
		}
	}
	return false
}

// isTotalItem combines the rule verdict with the built-in keywords.
func isTotalItem(item model.ClassificationItem) bool {
	if item.Accepted() && item.ResolvedType.IsTotal() {
		return true
	}
	return IsTotalLabel(item.RawLabel)
}

// ExtractTotal applies the grand total policy: an explicit total field
// wins, otherwise the non-total fields are summed. Items with unreadable
// amounts count towards neither.
func ExtractTotal(items []model.ClassificationItem) (int64, *int64) {
	var sum int64
	var explicit *int64

	for _, item := range items {
		if item.Err != nil {
			continue
		}
		if isTotalItem(item) {
			if explicit == nil || item.Amount > *explicit {
				v := item.Amount
				explicit = &v
			}
			continue
		}
		sum += item.Amount
	}

	if explicit != nil {
		return *explicit, explicit
	}
	return sum, nil
}
