package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/figmaqa/internal/models"
)

// caseKeys are the top-level keys models use for the case list, in priority order
var caseKeys = []string{"casos", "cases", "test_cases", "testcases", "pruebas"}

// ParseCases extracts test cases from a model response. Code fences are
// stripped, a bare JSON array is accepted, and the first non-empty list under
// caseKeys wins. Entries that are not objects are skipped.
func ParseCases(raw string) ([]models.TestCase, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, nil
	}

	var list []json.RawMessage
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &list); err != nil {
			return nil, fmt.Errorf("failed to decode case list: %w", err)
		}
		return decodeCases(list), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, key := range caseKeys {
		value, ok := envelope[key]
		if !ok {
			continue
		}
		list = nil
		if err := json.Unmarshal(value, &list); err != nil || len(list) == 0 {
			continue
		}
		if cases := decodeCases(list); len(cases) > 0 {
			return cases, nil
		}
	}
	return nil, nil
}

func decodeCases(list []json.RawMessage) []models.TestCase {
	cases := make([]models.TestCase, 0, len(list))
	for _, item := range list {
		trimmed := strings.TrimSpace(string(item))
		if !strings.HasPrefix(trimmed, "{") {
			continue
		}
		var tc models.TestCase
		if err := json.Unmarshal(item, &tc); err != nil {
			continue
		}
		cases = append(cases, tc)
	}
	return cases
}

// stripCodeFence removes a ```json ... ``` wrapper and any prose around the JSON body
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	if s == "" || s[0] == '{' || s[0] == '[' {
		return s
	}
	// prose before the JSON: keep from the first brace to the last
	start := strings.IndexAny(s, "{[")
	end := strings.LastIndexAny(s, "}]")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
