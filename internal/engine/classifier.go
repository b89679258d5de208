// Package engine implements the hybrid income/expense classification
// engine: a rule-first orchestrator, the learning loop that feeds external
// verdicts back into the rule store, and the document categorizer that ties
// them to caching and the external classifier.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
	"github.com/fintalk/iecat/internal/pattern"
	"github.com/fintalk/iecat/internal/service"
)

// DefaultConfidenceThreshold is the acceptance bound for rule matches.
const DefaultConfidenceThreshold = 0.8

// ClassifierOptions configures a HybridClassifier.
type ClassifierOptions struct {
	Logger    *slog.Logger
	BatchID   string
	Matcher   pattern.Options
	Threshold float64
}

// HybridClassifier runs the rule pass over one batch. Statistics belong to
// the instance, so build a new classifier for every run.
type HybridClassifier struct {
	store     service.RuleStore
	matcher   *pattern.Matcher
	logger    *slog.Logger
	batchID   string
	stats     model.Statistics
	threshold float64
	mu        sync.Mutex
}

// NewHybridClassifier creates a classifier over store. A nil store is
// allowed and sends every item to the fallback path.
func NewHybridClassifier(store service.RuleStore, opts ClassifierOptions) *HybridClassifier {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultConfidenceThreshold
	}
	if opts.BatchID == "" {
		opts.BatchID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("batch_id", opts.BatchID)
	opts.Matcher.Logger = logger

	var reader pattern.RuleReader
	if store != nil {
		reader = store
	}

	return &HybridClassifier{
		store:     store,
		matcher:   pattern.NewMatcher(reader, opts.Matcher),
		logger:    logger,
		batchID:   opts.BatchID,
		threshold: opts.Threshold,
	}
}

// BatchID identifies this run in logs.
func (c *HybridClassifier) BatchID() string {
	return c.batchID
}

// Threshold returns the acceptance bound in use.
func (c *HybridClassifier) Threshold() float64 {
	return c.threshold
}

// ClassifyItem resolves one label. It never fails: malformed input and
// store trouble both come back as a fallback item.
func (c *HybridClassifier) ClassifyItem(ctx context.Context, label, amountText string, hint model.TransactionType) (item model.ClassificationItem) {
	item = model.ClassificationItem{
		RawLabel:    label,
		AmountText:  amountText,
		DocTypeHint: hint,
		MatchKind:   model.MatchNone,
		Method:      model.MethodLLMFallback,
	}

	defer func() {
		if r := recover(); r != nil {
			item.Method = model.MethodLLMFallback
			item.Err = fmt.Errorf("%w: %v", common.ErrMalformedItem, r)
			c.logger.Error("Item classification panicked", "label", label, "panic", r)
		}
		c.record(item)
	}()

	item.NormalizedLabel = pattern.Normalize(label)
	if item.NormalizedLabel == "" {
		item.Err = fmt.Errorf("%w: empty label", common.ErrMalformedItem)
		c.logger.Debug("Routing item to fallback", "label", label, "error", item.Err)
		return item
	}

	amount, err := ParseAmount(amountText)
	if err != nil {
		item.Err = err
		c.logger.Debug("Routing item to fallback", "label", label, "error", err)
		return item
	}
	item.Amount = amount

	match := c.matcher.Match(ctx, label, hint)
	item.MatchKind = match.Kind
	item.Confidence = match.Confidence
	if match.Found() {
		item.ResolvedType = match.Rule.Type
		item.ResolvedCategory = match.Rule.Category
		item.MatchedKeyword = match.Rule.Keyword
	}

	if match.Found() && pattern.Accept(match.Confidence, c.threshold) {
		item.Method = model.MethodRuleBased
		c.reinforce(ctx, match.Rule)
	}

	c.logger.Debug("Classified item",
		"label", label,
		"method", item.Method,
		"match", item.MatchKind,
		"keyword", item.MatchedKeyword,
		"confidence", item.Confidence,
		"ambiguous", match.Ambiguous,
		"degraded", match.Degraded)

	return item
}

// ClassifyBatch splits items into confident and uncertain sets. Labels are
// visited in sorted order so runs are reproducible.
func (c *HybridClassifier) ClassifyBatch(ctx context.Context, items map[string]string, hint model.TransactionType) *model.BatchResult {
	labels := make([]string, 0, len(items))
	for label := range items {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	result := &model.BatchResult{
		BatchID:   c.batchID,
		Confident: make(map[string]string),
		Uncertain: make(map[string]string),
		Items:     make([]model.ClassificationItem, 0, len(labels)),
	}

	for _, label := range labels {
		item := c.ClassifyItem(ctx, label, items[label], hint)
		result.Items = append(result.Items, item)
		if item.Accepted() {
			result.Confident[label] = items[label]
		} else {
			result.Uncertain[label] = items[label]
		}
	}

	result.Statistics = c.Statistics()
	c.logger.Info("Rule pass complete",
		"total_items", result.Statistics.TotalItems,
		"rule_hits", result.Statistics.RuleHitCount,
		"fallbacks", result.Statistics.FallbackCount)

	return result
}

// Statistics returns the counters for this run with derived rates.
func (c *HybridClassifier) Statistics() model.Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	if stats.TotalItems > 0 {
		stats.RuleHitRate = float64(stats.RuleHitCount) / float64(stats.TotalItems)
		stats.FallbackRate = float64(stats.FallbackCount) / float64(stats.TotalItems)
	}
	return stats
}

// RecordLearned adds to the learned-keyword counter.
func (c *HybridClassifier) RecordLearned(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.NewKeywordsLearned += n
}

func (c *HybridClassifier) record(item model.ClassificationItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalItems++
	if item.Accepted() {
		c.stats.RuleHitCount++
	} else {
		c.stats.FallbackCount++
	}
}

// reinforce is best effort; a failed bump never changes the verdict.
func (c *HybridClassifier) reinforce(ctx context.Context, rule *model.KeywordRule) {
	if c.store == nil || rule == nil || rule.ID <= 0 {
		return
	}
	if err := c.store.Reinforce(ctx, rule.ID); err != nil {
		c.logger.Warn("Failed to reinforce keyword", "keyword", rule.Keyword, "error", err)
	}
}
