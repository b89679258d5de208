package llm

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/fintalk/iecat/internal/model"
)

const systemPrompt = "You are a household ledger classifier. You MUST respond with ONLY a valid JSON object. " +
	"Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. " +
	"Start your response directly with { and end with }."

// buildPrompt asks the model to sort every item of the document into the
// taxonomy of its type.
func buildPrompt(items map[string]string, docType model.TransactionType) (string, error) {
	labels := slices.Sorted(maps.Keys(items))
	ordered := make([][2]string, 0, len(labels))
	for _, label := range labels {
		ordered = append(ordered, [2]string{label, items[label]})
	}
	payload, err := json.Marshal(ordered)
	if err != nil {
		return "", fmt.Errorf("failed to encode items: %w", err)
	}

	kind := "소득(income)"
	if docType.Base() == model.TypeExpense {
		kind = "지출(expense)"
	}
	categories := model.CategoriesFor(docType)

	var sb strings.Builder
	fmt.Fprintf(&sb, "다음은 가계부의 %s 항목 목록입니다. 각 항목은 [항목명, 금액] 쌍입니다.\n", kind)
	fmt.Fprintf(&sb, "ITEMS: %s\n\n", payload)
	fmt.Fprintf(&sb, "모든 항목을 다음 카테고리 중 정확히 하나에 배정하세요: %s.\n", strings.Join(categories, ", "))
	fmt.Fprintf(&sb, "판단이 어려운 항목은 %q에 넣으세요.\n", model.DefaultCategory(docType))
	sb.WriteString("총 소득, 총 지출, 합계 같은 합계 항목은 어떤 카테고리에도 넣지 말고 grand_total에만 반영하세요.\n")
	sb.WriteString("항목명은 입력 그대로 사용하고 금액은 쉼표 없는 정수로 적으세요.\n\n")
	sb.WriteString("Respond with exactly this JSON schema:\n")
	sb.WriteString(`{"categories": {"<category>": {"<item label>": <amount>}}, "category_totals": {"<category>": <amount>}, "grand_total": <amount>}`)
	return sb.String(), nil
}
