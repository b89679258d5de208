package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
	"github.com/fintalk/iecat/internal/pattern"
)

// RuleWriter is the write side of the rule store the learner needs.
type RuleWriter interface {
	Upsert(ctx context.Context, label string, txType model.TransactionType, category string) (*model.KeywordRule, error)
}

// LearnReport summarizes one learning pass.
type LearnReport struct {
	Learned   []string
	Absent    []string
	Conflicts []string
	Failed    []string
}

// Learner writes external verdicts back into the rule store.
type Learner struct {
	store  RuleWriter
	logger *slog.Logger
}

// NewLearner creates a learner. A nil store disables learning.
func NewLearner(store RuleWriter, logger *slog.Logger) *Learner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{store: store, logger: logger}
}

// Learn records one resolved label.
func (l *Learner) Learn(ctx context.Context, label string, txType model.TransactionType, category string) (*model.KeywordRule, error) {
	if l.store == nil {
		return nil, fmt.Errorf("%w: no rule store", common.ErrStoreUnavailable)
	}
	return l.store.Upsert(ctx, label, txType, category)
}

// LearnFromResult locates each uncertain item in the external buckets and
// learns it only when exactly one bucket holds it. Missing labels are never
// guessed and labels found in several buckets are skipped as conflicts.
func (l *Learner) LearnFromResult(ctx context.Context, uncertain []model.ClassificationItem, result *model.ExternalResult, docType model.TransactionType) LearnReport {
	var report LearnReport
	if result == nil || l.store == nil {
		return report
	}

	taxonomy := model.CategoriesFor(docType)
	for _, item := range uncertain {
		label := item.NormalizedLabel
		if label == "" {
			label = pattern.Normalize(item.RawLabel)
		}
		if label == "" || IsTotalLabel(item.RawLabel) {
			continue
		}

		buckets := result.Buckets(label, pattern.Normalize)
		switch len(buckets) {
		case 0:
			l.logger.Info("Label absent from external result, not learning", "label", item.RawLabel)
			report.Absent = append(report.Absent, item.RawLabel)
			continue
		case 1:
		default:
			err := fmt.Errorf("%w: %q in %v", common.ErrLearningConflict, item.RawLabel, buckets)
			l.logger.Warn("Skipping ambiguous label", "label", item.RawLabel, "buckets", buckets, "error", err)
			report.Conflicts = append(report.Conflicts, item.RawLabel)
			continue
		}

		category := buckets[0]
		if !slices.Contains(taxonomy, category) {
			category = ""
		}

		rule, err := l.Learn(ctx, label, docType.Base(), category)
		if err != nil {
			l.logger.Error("Failed to learn keyword", "label", item.RawLabel, "error", err)
			report.Failed = append(report.Failed, item.RawLabel)
			continue
		}

		l.logger.Debug("Learned keyword",
			"keyword", rule.Keyword,
			"type", rule.Type,
			"category", rule.Category,
			"usage_count", rule.UsageCount)
		report.Learned = append(report.Learned, item.RawLabel)
	}

	return report
}
