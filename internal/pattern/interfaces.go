// Package pattern decides whether a stored keyword rule applies to a raw
// item label and how confident that decision is.
package pattern

import (
	"context"

	"github.com/fintalk/iecat/internal/model"
)

// RuleReader is the read side of the rule store the matcher needs.
type RuleReader interface {
	// Lookup returns the rule whose keyword equals the normalized label.
	Lookup(ctx context.Context, label string) (*model.KeywordRule, error)
	// ListByType returns every rule of one type.
	ListByType(ctx context.Context, txType model.TransactionType) ([]model.KeywordRule, error)
}

// Match is the matcher's verdict for one label.
type Match struct {
	Rule       *model.KeywordRule
	Label      string
	Kind       model.MatchKind
	Candidates []model.KeywordRule
	Confidence float64
	// Ambiguous is set when candidates disagreed and nothing broke the tie.
	Ambiguous bool
	// Degraded is set when the rule store could not be read.
	Degraded bool
}

// Found reports whether a rule was selected.
func (m Match) Found() bool {
	return m.Rule != nil
}
