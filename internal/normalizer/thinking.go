package normalizer

import "strings"

// ExtractThinking returns the text of the last "thinking" content block in
// the payload's message, or nil when there is none.
func ExtractThinking(raw map[string]interface{}) *string {
	var found *string
	for _, block := range contentBlocks(raw) {
		m, ok := block.(map[string]interface{})
		if !ok || m["type"] != "thinking" {
			continue
		}
		text, _ := m["thinking"].(string)
		if text == "" {
			text, _ = m["text"].(string)
		}
		if text = strings.TrimSpace(text); text != "" {
			t := text
			found = &t
		}
	}
	return found
}

func contentBlocks(raw map[string]interface{}) []interface{} {
	if msg, ok := raw["message"].(map[string]interface{}); ok {
		if blocks, ok := msg["content"].([]interface{}); ok {
			return blocks
		}
	}
	if blocks, ok := raw["content"].([]interface{}); ok {
		return blocks
	}
	return nil
}
