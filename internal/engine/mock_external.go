package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fintalk/iecat/internal/model"
)

// MockExternalClassifier is a deterministic ExternalClassifier for tests in
// this package and in packages that build on it. Items are bucketed by the
// first configured keyword they contain, longest keyword first; everything
// else lands in the document's default category.
type MockExternalClassifier struct {
	Err      error
	Keywords map[string]string
	// Drop lists labels the mock pretends the model lost.
	Drop  map[string]bool
	calls []MockExternalCall
	mu    sync.Mutex
}

// MockExternalCall records one ClassifyDocument request.
type MockExternalCall struct {
	Items   map[string]string
	DocType model.TransactionType
}

// NewMockExternalClassifier creates a mock with a keyword → category table.
func NewMockExternalClassifier(keywords map[string]string) *MockExternalClassifier {
	return &MockExternalClassifier{Keywords: keywords, Drop: map[string]bool{}}
}

// ClassifyDocument implements service.ExternalClassifier.
func (m *MockExternalClassifier) ClassifyDocument(ctx context.Context, items map[string]string, docType model.TransactionType) (*model.ExternalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make(map[string]string, len(items))
	for k, v := range items {
		copied[k] = v
	}
	m.calls = append(m.calls, MockExternalCall{Items: copied, DocType: docType})

	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &model.ExternalResult{
		Categories:     make(map[string]map[string]int64),
		CategoryTotals: make(map[string]int64),
	}
	for _, c := range model.CategoriesFor(docType) {
		result.Categories[c] = make(map[string]int64)
	}

	keywords := make([]string, 0, len(m.Keywords))
	for k := range m.Keywords {
		keywords = append(keywords, k)
	}
	sort.Slice(keywords, func(i, j int) bool { return len(keywords[i]) > len(keywords[j]) })

	var grand int64
	for label, text := range items {
		if m.Drop[label] || IsTotalLabel(label) {
			continue
		}
		amount, err := ParseAmount(text)
		if err != nil {
			continue
		}
		category := model.DefaultCategory(docType)
		for _, keyword := range keywords {
			if strings.Contains(label, keyword) {
				category = m.Keywords[keyword]
				break
			}
		}
		if _, ok := result.Categories[category]; !ok {
			result.Categories[category] = make(map[string]int64)
		}
		result.Categories[category][label] = amount
		result.CategoryTotals[category] += amount
		grand += amount
	}
	result.GrandTotal = &grand

	return result, nil
}

// CallCount returns how many documents were classified.
func (m *MockExternalClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded requests.
func (m *MockExternalClassifier) Calls() []MockExternalCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockExternalCall, len(m.calls))
	copy(out, m.calls)
	return out
}
