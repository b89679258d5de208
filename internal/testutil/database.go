// Package testutil provides test helpers shared across packages.
package testutil

import (
	"context"
	"testing"

	"github.com/fintalk/iecat/internal/model"
	"github.com/fintalk/iecat/internal/storage"
)

// SetupRuleStore creates a migrated in-memory rule store seeded with the
// given rules. Cleanup is registered on t.
//
// Example:
//
//	store := testutil.SetupRuleStore(t,
//		testutil.Rule("급여", model.TypeIncome, "고정소득", 5),
//	)
func SetupRuleStore(t *testing.T, rules ...SeededRule) *storage.RuleStore {
	t.Helper()

	store, err := storage.Open(storage.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, r := range rules {
		for i := 0; i < max(r.Usage, 1); i++ {
			if _, err := store.Put(ctx, r.Keyword, r.Type, r.Category); err != nil {
				t.Fatalf("failed to seed rule %q: %v", r.Keyword, err)
			}
		}
	}

	return store
}

// SetupSeededRuleStore creates a store loaded with the built-in keyword table.
func SetupSeededRuleStore(t *testing.T) *storage.RuleStore {
	t.Helper()

	store := SetupRuleStore(t)
	if _, err := store.Seed(context.Background(), storage.DefaultSeeds()); err != nil {
		t.Fatalf("failed to seed default rules: %v", err)
	}
	return store
}

// SeededRule describes a rule to preload, with the usage count it should
// end up with.
type SeededRule struct {
	Keyword  string
	Type     model.TransactionType
	Category string
	Usage    int
}

// Rule is shorthand for a SeededRule.
func Rule(keyword string, txType model.TransactionType, category string, usage int) SeededRule {
	return SeededRule{Keyword: keyword, Type: txType, Category: category, Usage: usage}
}
