package sales

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseLineItems decodes the items payload of a transaction into typed
// line items. Historical rows stored the payload three different ways:
// a plain JSON array, an object wrapping the array under "items", or
// either of those double-encoded as a JSON string. This is the single
// place those shapes are tolerated; everything past the storage
// boundary works with []LineItem only.
func ParseLineItems(raw json.RawMessage) ([]LineItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var items []LineItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parse line items: %w", err)
		}
		return items, nil
	case '{':
		var wrapper struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("parse line items wrapper: %w", err)
		}
		return ParseLineItems(wrapper.Items)
	case '"':
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("parse double-encoded line items: %w", err)
		}
		return ParseLineItems(json.RawMessage(inner))
	default:
		return nil, fmt.Errorf("parse line items: unsupported payload %q", snippet(trimmed))
	}
}

func snippet(raw []byte) string {
	if len(raw) > 32 {
		return string(raw[:32]) + "..."
	}
	return string(raw)
}
