package intent

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

func nullableStringArray() map[string]any {
	return map[string]any{
		"type":  []any{"array", "null"},
		"items": map[string]any{"type": "string"},
	}
}

var responseSchema = map[string]any{
	"type":     "object",
	"required": []any{"search_params", "response_title"},
	"properties": map[string]any{
		"search_params": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"keywords":   nullableStringArray(),
				"characters": nullableStringArray(),
				"genres":     nullableStringArray(),
				"actors":     nullableStringArray(),
				"directors":  nullableStringArray(),
				"companies":  nullableStringArray(),
				"year_from":  map[string]any{"type": []any{"integer", "null"}},
				"year_to":    map[string]any{"type": []any{"integer", "null"}},
				"sort_by":    map[string]any{"type": []any{"string", "null"}},
				"media_type": map[string]any{"type": []any{"string", "null"}},
			},
		},
		"response_title": map[string]any{
			"type":      "string",
			"minLength": 1,
			"pattern":   `\S`,
		},
	},
}

var schemaLoader = gojsonschema.NewGoLoader(responseSchema)

// validatePayload checks a raw model reply against the response schema.
func validatePayload(payload string) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
