package model

import "time"

// KeywordRule maps a normalized label to a transaction type. Category holds
// the learned sub-category when one is known.
type KeywordRule struct {
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	LastUsedAt time.Time       `db:"last_used_at" json:"last_used_at"`
	Keyword    string          `db:"keyword" json:"keyword"`
	Type       TransactionType `db:"transaction_type" json:"transaction_type"`
	Category   string          `db:"category" json:"category,omitempty"`
	Source     RuleSource      `db:"source" json:"source"`
	ID         int64           `db:"id" json:"id"`
	UsageCount int             `db:"usage_count" json:"usage_count"`
}

// SeedRule is an entry of the built-in keyword table.
type SeedRule struct {
	Keyword  string
	Type     TransactionType
	Category string
}
