// Package model defines the core domain models used throughout the application.
package model

// ClassificationItem is one label/amount pair moving through a batch.
type ClassificationItem struct {
	Err              error           `json:"-"`
	RawLabel         string          `json:"raw_label"`
	NormalizedLabel  string          `json:"normalized_label"`
	AmountText       string          `json:"amount_text"`
	DocTypeHint      TransactionType `json:"doc_type_hint,omitempty"`
	ResolvedType     TransactionType `json:"resolved_type,omitempty"`
	ResolvedCategory string          `json:"resolved_category,omitempty"`
	MatchedKeyword   string          `json:"matched_keyword,omitempty"`
	MatchKind        MatchKind       `json:"match_kind"`
	Amount           int64           `json:"amount"`
	Confidence       float64         `json:"confidence"`
	Method           Method          `json:"method"`
}

// Accepted reports whether the rule pass resolved the item.
func (i ClassificationItem) Accepted() bool {
	return i.Method == MethodRuleBased
}

// Statistics describes one classification run.
type Statistics struct {
	TotalItems         int     `json:"total_items"`
	RuleHitCount       int     `json:"rule_hit_count"`
	FallbackCount      int     `json:"fallback_count"`
	RuleHitRate        float64 `json:"rule_hit_rate"`
	FallbackRate       float64 `json:"fallback_rate"`
	NewKeywordsLearned int     `json:"new_keywords_learned"`
}

// BatchResult is the outcome of one orchestrator pass.
type BatchResult struct {
	Confident  map[string]string    `json:"confident_items"`
	Uncertain  map[string]string    `json:"uncertain_items"`
	BatchID    string               `json:"batch_id"`
	Items      []ClassificationItem `json:"items"`
	Statistics Statistics           `json:"statistics"`
}

// Item returns the item for a raw label.
func (r *BatchResult) Item(label string) (ClassificationItem, bool) {
	for _, item := range r.Items {
		if item.RawLabel == label {
			return item, true
		}
	}
	return ClassificationItem{}, false
}
