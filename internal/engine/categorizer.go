package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/fintalk/iecat/internal/cache"
	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
	"github.com/fintalk/iecat/internal/pattern"
	"github.com/fintalk/iecat/internal/service"
)

// Categorizer defaults.
const (
	DefaultCacheTTL        = 24 * time.Hour
	DefaultCachePrefix     = "ai_cache"
	DefaultExternalTimeout = 30 * time.Second
)

// CategorizerConfig configures a Categorizer.
type CategorizerConfig struct {
	Logger          *slog.Logger
	CachePrefix     string
	Matcher         pattern.Options
	Threshold       float64
	CacheTTL        time.Duration
	ExternalTimeout time.Duration
}

// Categorizer turns one income or expense document into a category
// breakdown, consulting the cache, the rule pass and the external
// classifier in that order.
type Categorizer struct {
	store    service.RuleStore
	external service.ExternalClassifier
	cache    service.CacheStore
	learner  *Learner
	logger   *slog.Logger
	group    singleflight.Group
	cfg      CategorizerConfig
}

// NewCategorizer wires a categorizer. store, external and cache may each be
// nil: a missing store sends everything to the external classifier, a
// missing classifier makes uncertain documents fall back, and a missing
// cache disables caching.
func NewCategorizer(store service.RuleStore, external service.ExternalClassifier, cache service.CacheStore, cfg CategorizerConfig) *Categorizer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = DefaultCachePrefix
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = DefaultExternalTimeout
	}

	var writer RuleWriter
	if store != nil {
		writer = store
	}

	return &Categorizer{
		store:    store,
		external: external,
		cache:    cache,
		learner:  NewLearner(writer, cfg.Logger),
		logger:   cfg.Logger,
		cfg:      cfg,
	}
}

// NewClassifier builds a fresh orchestrator with the categorizer's settings.
func (c *Categorizer) NewClassifier(batchID string) *HybridClassifier {
	return NewHybridClassifier(c.store, ClassifierOptions{
		Logger:    c.logger,
		BatchID:   batchID,
		Matcher:   c.cfg.Matcher,
		Threshold: c.cfg.Threshold,
	})
}

// ClassifyBatch runs only the rule pass.
func (c *Categorizer) ClassifyBatch(ctx context.Context, items map[string]string, hint model.TransactionType) *model.BatchResult {
	return c.NewClassifier("").ClassifyBatch(ctx, items, hint)
}

// CacheKey derives the order-independent cache key for a document.
func (c *Categorizer) CacheKey(items map[string]string, docType model.TransactionType) (string, error) {
	labels := slices.Sorted(maps.Keys(items))
	pairs := make([][2]string, 0, len(labels))
	for _, label := range labels {
		pairs = append(pairs, [2]string{label, items[label]})
	}

	payload, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s:categorize-%s:%s", c.cfg.CachePrefix, docType.Slug(), hex.EncodeToString(sum[:])), nil
}

// CategorizeDocument returns the structured breakdown for a document. It
// fails only for an unusable document type or when ctx ends first;
// classifier and cache trouble surface in the breakdown's Error and
// Warnings fields instead.
func (c *Categorizer) CategorizeDocument(ctx context.Context, items map[string]string, docType model.TransactionType) (*model.Breakdown, error) {
	docType = docType.Base()
	if docType != model.TypeIncome && docType != model.TypeExpense {
		return nil, fmt.Errorf("%w: document type %q", common.ErrInvalidConfig, docType)
	}
	if items == nil {
		items = map[string]string{}
	}

	key, err := c.CacheKey(items, docType)
	if err != nil {
		return nil, err
	}

	// The shared run outlives any single caller; ExternalTimeout bounds it.
	work := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.categorize(work, key, items, docType), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		breakdown := res.Val.(*model.Breakdown)
		if res.Shared {
			breakdown = cloneBreakdown(breakdown)
		}
		return breakdown, nil
	}
}

func (c *Categorizer) categorize(ctx context.Context, key string, items map[string]string, docType model.TransactionType) *model.Breakdown {
	if cached, ok := c.fromCache(ctx, key); ok {
		return cached
	}

	batchID := uuid.NewString()
	logger := common.BatchLogger(c.logger, batchID, docType.Slug())
	classifier := c.NewClassifier(batchID)
	batch := classifier.ClassifyBatch(ctx, items, docType)

	var breakdown *model.Breakdown
	if len(batch.Uncertain) == 0 {
		breakdown = fromRules(batch, docType)
	} else {
		result, err := c.classifyExternally(ctx, items, docType)
		if err != nil {
			logger.Error("External classification failed, returning fallback",
				"uncertain", len(batch.Uncertain),
				"error", err)
			breakdown = fallback(batch, items, docType, err)
			breakdown.Statistics = classifier.Statistics()
			return breakdown
		}

		breakdown = fromExternal(result, batch, docType)
		if len(breakdown.Warnings) > 0 {
			logger.Warn("External breakdown reconciled with the document", "warnings", breakdown.Warnings)
		}
		report := c.learner.LearnFromResult(ctx, uncertainItems(batch), result, docType)
		classifier.RecordLearned(len(report.Learned))
		if len(report.Absent)+len(report.Conflicts) > 0 {
			logger.Info("Some labels were not learned",
				"absent", report.Absent,
				"conflicts", report.Conflicts)
		}
	}

	breakdown.Statistics = classifier.Statistics()
	finalize(breakdown, batch)
	c.toCache(ctx, key, breakdown)

	logger.Info("Document categorized",
		"source", breakdown.Source,
		"grand_total", breakdown.GrandTotal,
		"rule_hit_rate", breakdown.Statistics.RuleHitRate,
		"learned", breakdown.Statistics.NewKeywordsLearned)

	return breakdown
}

func (c *Categorizer) classifyExternally(ctx context.Context, items map[string]string, docType model.TransactionType) (*model.ExternalResult, error) {
	if c.external == nil {
		return nil, fmt.Errorf("%w: no external classifier configured", common.ErrExternalClassifier)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.ExternalTimeout)
	defer cancel()

	result, err := c.external.ClassifyDocument(callCtx, items, docType)
	if err != nil {
		if errors.Is(err, common.ErrUnparsableResponse) || errors.Is(err, common.ErrExternalClassifier) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrExternalClassifier, err)
	}
	if result == nil || result.Categories == nil {
		return nil, fmt.Errorf("%w: empty category structure", common.ErrUnparsableResponse)
	}
	return result, nil
}

func (c *Categorizer) fromCache(ctx context.Context, key string) (*model.Breakdown, bool) {
	if c.cache == nil {
		return nil, false
	}

	var breakdown model.Breakdown
	found, err := cache.GetJSON(ctx, c.cache, key, &breakdown)
	if err != nil {
		c.logger.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	breakdown.Cached = true
	c.logger.Debug("Cache hit", "key", key)
	return &breakdown, true
}

func (c *Categorizer) toCache(ctx context.Context, key string, breakdown *model.Breakdown) {
	if c.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, c.cache, key, breakdown, c.cfg.CacheTTL); err != nil {
		c.logger.Warn("Cache write failed", "key", key, "error", err)
	}
}

// InvalidateCache drops every cached categorization.
func (c *Categorizer) InvalidateCache(ctx context.Context) (int, error) {
	if c.cache == nil {
		return 0, nil
	}
	return c.cache.DeletePrefix(ctx, c.cfg.CachePrefix+":")
}

// fromRules buckets the confident items by their learned sub-category.
func fromRules(batch *model.BatchResult, docType model.TransactionType) *model.Breakdown {
	b := model.NewBreakdown(docType)
	b.Source = model.SourceRules
	taxonomy := model.CategoriesFor(docType)

	for _, item := range batch.Items {
		if item.Err != nil || isTotalItem(item) {
			continue
		}
		category := item.ResolvedCategory
		if !slices.Contains(taxonomy, category) {
			category = model.DefaultCategory(docType)
		}
		b.Categories[category][item.RawLabel] = item.Amount
	}
	return b
}

// fromExternal places every input item in the bucket the external
// classifier chose for it. The input stays authoritative: labels the
// classifier invented are dropped, labels it lost go to the default
// category, and amounts are always the input amounts. Each correction is
// recorded in Warnings.
func fromExternal(result *model.ExternalResult, batch *model.BatchResult, docType model.TransactionType) *model.Breakdown {
	b := model.NewBreakdown(docType)
	b.Source = model.SourceExternal

	inputs := make(map[string][]model.ClassificationItem)
	totals := make(map[string]bool)
	for _, item := range batch.Items {
		switch {
		case isTotalItem(item):
			totals[item.NormalizedLabel] = true
		case item.Err != nil:
			b.Warnings = append(b.Warnings, fmt.Sprintf("%q skipped: %v", item.RawLabel, item.Err))
		default:
			inputs[item.NormalizedLabel] = append(inputs[item.NormalizedLabel], item)
		}
	}

	placed := make(map[string]bool, len(inputs))
	for _, category := range slices.Sorted(maps.Keys(result.Categories)) {
		bucket := result.Categories[category]
		for _, label := range slices.Sorted(maps.Keys(bucket)) {
			normalized := pattern.Normalize(label)
			items, ok := inputs[normalized]
			switch {
			case !ok:
				if !totals[normalized] && !IsTotalLabel(label) {
					b.Warnings = append(b.Warnings, fmt.Sprintf("%q is not in the document, ignored", label))
				}
				continue
			case placed[normalized]:
				b.Warnings = append(b.Warnings, fmt.Sprintf("%q placed in several categories, kept the first", label))
				continue
			}

			if _, ok := b.Categories[category]; !ok {
				b.Categories[category] = make(map[string]int64)
			}
			var amount int64
			for _, item := range items {
				b.Categories[category][item.RawLabel] = item.Amount
				amount += item.Amount
			}
			if bucket[label] != amount {
				b.Warnings = append(b.Warnings, fmt.Sprintf("%q amount %d replaced by document amount %d", label, bucket[label], amount))
			}
			placed[normalized] = true
		}
	}

	defaultCategory := model.DefaultCategory(docType)
	for _, normalized := range slices.Sorted(maps.Keys(inputs)) {
		if placed[normalized] {
			continue
		}
		for _, item := range inputs[normalized] {
			b.Categories[defaultCategory][item.RawLabel] = item.Amount
			b.Warnings = append(b.Warnings, fmt.Sprintf("%q missing from the classifier response, moved to %s", item.RawLabel, defaultCategory))
		}
	}
	return b
}

// fallback keeps the user's data when the external path failed.
func fallback(batch *model.BatchResult, items map[string]string, docType model.TransactionType, cause error) *model.Breakdown {
	b := model.NewBreakdown(docType)
	b.Source = model.SourceFallback
	b.Error = cause.Error()
	b.RawItems = maps.Clone(items)
	b.GrandTotal, b.ExplicitTotal = ExtractTotal(batch.Items)
	return b
}

// finalize recomputes subtotals from bucket contents and derives ratios.
func finalize(b *model.Breakdown, batch *model.BatchResult) {
	b.GrandTotal, b.ExplicitTotal = ExtractTotal(batch.Items)
	for category, bucket := range b.Categories {
		var subtotal int64
		for _, amount := range bucket {
			subtotal += amount
		}
		b.CategoryTotals[category] = subtotal
		b.CategoryRatios[category] = Percent(subtotal, b.GrandTotal)
	}
}

func uncertainItems(batch *model.BatchResult) []model.ClassificationItem {
	out := make([]model.ClassificationItem, 0, len(batch.Uncertain))
	for _, item := range batch.Items {
		if !item.Accepted() {
			out = append(out, item)
		}
	}
	return out
}

func cloneBreakdown(b *model.Breakdown) *model.Breakdown {
	out := *b
	out.Categories = make(map[string]map[string]int64, len(b.Categories))
	for k, v := range b.Categories {
		out.Categories[k] = maps.Clone(v)
	}
	out.CategoryTotals = maps.Clone(b.CategoryTotals)
	out.CategoryRatios = maps.Clone(b.CategoryRatios)
	out.RawItems = maps.Clone(b.RawItems)
	out.Warnings = slices.Clone(b.Warnings)
	if b.ExplicitTotal != nil {
		v := *b.ExplicitTotal
		out.ExplicitTotal = &v
	}
	return &out
}
