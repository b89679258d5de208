package model

import (
	"fmt"
	"strings"
)

// TransactionType is the direction a keyword rule resolves a label to.
type TransactionType string

// Transaction type constants.
const (
	TypeIncome       TransactionType = "INCOME"
	TypeExpense      TransactionType = "EXPENSE"
	TypeTotalIncome  TransactionType = "TOTAL_INCOME"
	TypeTotalExpense TransactionType = "TOTAL_EXPENSE"
)

// AllTransactionTypes lists every type in lookup order.
var AllTransactionTypes = []TransactionType{
	TypeIncome,
	TypeExpense,
	TypeTotalIncome,
	TypeTotalExpense,
}

// ParseTransactionType accepts the canonical names plus the short
// document aliases used by callers ("income", "소득", "expense", "지출").
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INCOME", "소득":
		return TypeIncome, nil
	case "EXPENSE", "지출":
		return TypeExpense, nil
	case "TOTAL_INCOME", "총소득":
		return TypeTotalIncome, nil
	case "TOTAL_EXPENSE", "총지출":
		return TypeTotalExpense, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// Valid reports whether t is one of the known types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTotalIncome, TypeTotalExpense:
		return true
	}
	return false
}

// IsTotal reports whether t marks a document total rather than a line item.
func (t TransactionType) IsTotal() bool {
	return t == TypeTotalIncome || t == TypeTotalExpense
}

// Base folds total types onto their document direction.
func (t TransactionType) Base() TransactionType {
	switch t {
	case TypeTotalIncome:
		return TypeIncome
	case TypeTotalExpense:
		return TypeExpense
	default:
		return t
	}
}

// Agrees reports whether t is compatible with a document hint. An empty
// hint agrees with everything.
func (t TransactionType) Agrees(hint TransactionType) bool {
	if hint == "" {
		return true
	}
	return t.Base() == hint.Base()
}

// Slug is the lowercase document name used in cache keys and URLs.
func (t TransactionType) Slug() string {
	return strings.ToLower(string(t.Base()))
}

// RuleSource indicates how a keyword rule was created.
type RuleSource string

const (
	// SourceSeed marks rules loaded from the built-in keyword table.
	SourceSeed RuleSource = "SEED"
	// SourceLearned marks rules written by the learning loop.
	SourceLearned RuleSource = "LEARNED"
	// SourceManual marks rules added by an operator.
	SourceManual RuleSource = "MANUAL"
)

// Method records which path resolved a classification item.
type Method int

// Method constants.
const (
	MethodUnresolved Method = iota
	MethodRuleBased
	MethodLLMFallback
)

func (m Method) String() string {
	switch m {
	case MethodRuleBased:
		return "rule_based"
	case MethodLLMFallback:
		return "llm_fallback"
	default:
		return "unresolved"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(b []byte) error {
	switch string(b) {
	case "rule_based":
		*m = MethodRuleBased
	case "llm_fallback":
		*m = MethodLLMFallback
	case "unresolved", "":
		*m = MethodUnresolved
	default:
		return fmt.Errorf("unknown classification method %q", string(b))
	}
	return nil
}

// MatchKind describes how a label matched a keyword.
type MatchKind string

// Match kinds in decreasing strength.
const (
	MatchNone        MatchKind = "none"
	MatchExact       MatchKind = "exact"
	MatchContainment MatchKind = "containment"
	MatchFuzzy       MatchKind = "fuzzy"
)
