package model

// Income and expense category taxonomies.
var (
	IncomeCategories  = []string{"고정소득", "변동소득", "기타소득"}
	ExpenseCategories = []string{"고정지출", "변동지출", "저축 및 투자", "기타 및 예비비"}
)

// CategoriesFor returns the taxonomy for a document type.
func CategoriesFor(docType TransactionType) []string {
	if docType.Base() == TypeExpense {
		return ExpenseCategories
	}
	return IncomeCategories
}

// DefaultCategory is the bucket for items without a known sub-category.
func DefaultCategory(docType TransactionType) string {
	cats := CategoriesFor(docType)
	return cats[len(cats)-1]
}

// BreakdownSource tells where a breakdown's buckets came from.
type BreakdownSource string

// Breakdown sources.
const (
	SourceRules    BreakdownSource = "rules"
	SourceExternal BreakdownSource = "external"
	SourceFallback BreakdownSource = "fallback"
)

// ExternalResult is the validated response of an external classifier.
type ExternalResult struct {
	Categories     map[string]map[string]int64 `json:"categories"`
	CategoryTotals map[string]int64            `json:"category_totals"`
	GrandTotal     *int64                      `json:"grand_total"`
}

// Buckets returns every bucket containing the given normalized label,
// using norm to normalize bucket keys.
func (r *ExternalResult) Buckets(label string, norm func(string) string) []string {
	var found []string
	for category, items := range r.Categories {
		for item := range items {
			if norm(item) == label {
				found = append(found, category)
				break
			}
		}
	}
	return found
}

// Breakdown is the categorized view of one document.
type Breakdown struct {
	ExplicitTotal  *int64                      `json:"explicit_total,omitempty"`
	Categories     map[string]map[string]int64 `json:"categories"`
	CategoryTotals map[string]int64            `json:"category_totals"`
	CategoryRatios map[string]float64          `json:"category_ratios"`
	RawItems       map[string]string           `json:"raw_items,omitempty"`
	Warnings       []string                    `json:"warnings,omitempty"`
	DocType        TransactionType             `json:"doc_type"`
	Source         BreakdownSource             `json:"source"`
	Error          string                      `json:"error,omitempty"`
	Statistics     Statistics                  `json:"statistics"`
	GrandTotal     int64                       `json:"grand_total"`
	Cached         bool                        `json:"cached"`
}

// NewBreakdown returns a breakdown with every category of the taxonomy
// present and empty.
func NewBreakdown(docType TransactionType) *Breakdown {
	b := &Breakdown{
		DocType:        docType.Base(),
		Categories:     make(map[string]map[string]int64),
		CategoryTotals: make(map[string]int64),
		CategoryRatios: make(map[string]float64),
	}
	for _, c := range CategoriesFor(docType) {
		b.Categories[c] = make(map[string]int64)
		b.CategoryTotals[c] = 0
		b.CategoryRatios[c] = 0
	}
	return b
}

// Status values for a household summary.
const (
	StatusSurplus  = "흑자"
	StatusDeficit  = "적자"
	StatusBalanced = "수지균형"
)

// Summary compares an income document with an expense document.
type Summary struct {
	Status       string  `json:"status"`
	TotalIncome  int64   `json:"total_income"`
	TotalExpense int64   `json:"total_expense"`
	Surplus      int64   `json:"surplus"`
	SurplusRatio float64 `json:"surplus_ratio"`
}

// Analysis bundles both breakdowns with their summary.
type Analysis struct {
	Income  *Breakdown `json:"income"`
	Expense *Breakdown `json:"expense"`
	Summary Summary    `json:"summary"`
}
