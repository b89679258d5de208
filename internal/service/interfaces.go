// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/fintalk/iecat/internal/model"
)

// RuleStore is the durable keyword knowledge base.
type RuleStore interface {
	// Lookup returns the rule for a normalized label or common.ErrNotFound.
	Lookup(ctx context.Context, label string) (*model.KeywordRule, error)
	// Upsert inserts a rule or reinforces the existing one for the label.
	Upsert(ctx context.Context, label string, txType model.TransactionType, category string) (*model.KeywordRule, error)
	// Reinforce bumps usage for a rule that fired a successful match.
	Reinforce(ctx context.Context, id int64) error
	ListByType(ctx context.Context, txType model.TransactionType) ([]model.KeywordRule, error)
}

// RuleAdmin adds the administrative operations used by the CLI and API.
type RuleAdmin interface {
	RuleStore
	// Put registers a keyword under exactly the given type.
	Put(ctx context.Context, label string, txType model.TransactionType, category string) (*model.KeywordRule, error)
	ListAll(ctx context.Context) ([]model.KeywordRule, error)
	Delete(ctx context.Context, id int64) error
	Seed(ctx context.Context, seeds []model.SeedRule) (int, error)
}

// CacheStore is a string key-value store with expiry.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// ExternalClassifier re-derives a full category breakdown for a document.
type ExternalClassifier interface {
	ClassifyDocument(ctx context.Context, items map[string]string, docType model.TransactionType) (*model.ExternalResult, error)
}
