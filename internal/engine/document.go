package engine

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/fintalk/iecat/internal/common"
)

// DecodeDocument reads a JSON object of label → amount. Amounts may be JSON
// numbers or strings; null amounts are kept as empty strings so the item
// surfaces as malformed instead of disappearing.
func DecodeDocument(data []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, common.NewUserError("document must be a JSON object of label to amount", err)
	}
	if raw == nil {
		return nil, common.NewUserError("document must be a JSON object of label to amount", nil)
	}

	items := make(map[string]string, len(raw))
	for label, value := range raw {
		value = bytes.TrimSpace(value)
		switch {
		case bytes.Equal(value, []byte("null")):
			items[label] = ""
		case len(value) > 0 && value[0] == '"':
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, fmt.Errorf("failed to decode amount for %q: %w", label, err)
			}
			items[label] = s
		case len(value) > 0 && (value[0] == '-' || (value[0] >= '0' && value[0] <= '9')):
			items[label] = string(value)
		default:
			return nil, common.NewUserError(fmt.Sprintf("amount for %q must be a number or string", label), nil)
		}
	}
	return items, nil
}
