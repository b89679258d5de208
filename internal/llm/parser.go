package llm

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/engine"
	"github.com/fintalk/iecat/internal/model"
)

// Reserved keys of the response object. Models answer with the English
// schema keys or with the Korean ones used by earlier prompts.
const keyCategories = "categories"

var (
	categoryTotalsKeys = []string{"category_totals", "카테고리별 합계"}
	grandTotalKeys     = []string{"grand_total", "총소득", "총지출", "total_income", "total_expense"}
	metadataKeys       = []string{"error", "raw_items"}
)

func reserved(key string) bool {
	return key == keyCategories ||
		slices.Contains(categoryTotalsKeys, key) ||
		slices.Contains(grandTotalKeys, key) ||
		slices.Contains(metadataKeys, key)
}

// firstPresent returns the value of the first key found in top.
func firstPresent(top map[string]json.RawMessage, keys []string) (string, json.RawMessage, bool) {
	for _, key := range keys {
		if body, ok := top[key]; ok {
			return key, body, true
		}
	}
	return "", nil, false
}

func isObject(body json.RawMessage) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

var (
	fencePattern        = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	emptyValuePattern   = regexp.MustCompile(`:\s*,`)
	doubledCommaPattern = regexp.MustCompile(`,\s*,`)
	trailingObjComma    = regexp.MustCompile(`,\s*}`)
	trailingArrComma    = regexp.MustCompile(`,\s*]`)
)

// amount decodes a JSON number or a numeric string such as "1,200,000".
type amount struct {
	value int64
	set   bool
}

func (a *amount) UnmarshalJSON(data []byte) error {
	text := string(bytes.TrimSpace(data))
	if text == "null" {
		return nil
	}
	text = strings.Trim(text, `"`)
	n, err := engine.ParseAmount(text)
	if err != nil {
		return err
	}
	a.value, a.set = n, true
	return nil
}

// ParseResponse turns the model's reply into an ExternalResult. It accepts
// the documented shape with a "categories" object as well as the flat shape
// where category buckets sit next to the totals. In the flat shape any
// top-level value that is not an object is metadata, not a bucket.
// Anything that cannot be repaired into that schema is ErrUnparsableResponse.
func ParseResponse(content string) (*model.ExternalResult, error) {
	raw, err := extractObject(content)
	if err != nil {
		return nil, err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(repair(raw)), &top); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnparsableResponse, err)
	}

	buckets := top
	nested, flat := top[keyCategories], true
	if nested != nil {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err != nil {
			return nil, fmt.Errorf("%w: categories must be an object: %w", common.ErrUnparsableResponse, err)
		}
		buckets, flat = inner, false
	}

	result := &model.ExternalResult{
		Categories:     make(map[string]map[string]int64),
		CategoryTotals: make(map[string]int64),
	}

	for category, body := range buckets {
		if reserved(category) || (flat && !isObject(body)) {
			continue
		}
		items, err := decodeBucket(body)
		if err != nil {
			return nil, fmt.Errorf("%w: bucket %q: %w", common.ErrUnparsableResponse, category, err)
		}
		result.Categories[strings.TrimSpace(category)] = items
	}

	if key, body, ok := firstPresent(top, categoryTotalsKeys); ok {
		totals, err := decodeBucket(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", common.ErrUnparsableResponse, key, err)
		}
		result.CategoryTotals = totals
	}

	if key, body, ok := firstPresent(top, grandTotalKeys); ok {
		var grand amount
		if err := json.Unmarshal(body, &grand); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", common.ErrUnparsableResponse, key, err)
		}
		if grand.set {
			result.GrandTotal = &grand.value
		}
	}

	if len(result.Categories) == 0 {
		return nil, fmt.Errorf("%w: no category buckets", common.ErrUnparsableResponse)
	}
	return result, nil
}

func decodeBucket(body json.RawMessage) (map[string]int64, error) {
	var entries map[string]amount
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(entries))
	for label, a := range entries {
		if !a.set {
			continue
		}
		out[strings.TrimSpace(strings.ReplaceAll(label, "_", " "))] = a.value
	}
	return out, nil
}

// extractObject strips code fences and chatter around the outermost object.
func extractObject(content string) (string, error) {
	content = strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		content = strings.TrimSpace(m[1])
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in response", common.ErrUnparsableResponse)
	}
	return content[start : end+1], nil
}

// repair fixes the comma mistakes models make most often.
func repair(raw string) string {
	raw = emptyValuePattern.ReplaceAllString(raw, ": null,")
	for doubledCommaPattern.MatchString(raw) {
		raw = doubledCommaPattern.ReplaceAllString(raw, ",")
	}
	raw = trailingObjComma.ReplaceAllString(raw, "}")
	return trailingArrComma.ReplaceAllString(raw, "]")
}
