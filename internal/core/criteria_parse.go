package core

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ParseCriteria decodes a stored criteria blob. Blank or null input and blobs
// that set no predicate yield nil. Malformed or wrongly typed input is an error;
// callers treat the rule as having no criteria.
func ParseCriteria(raw string) (*FilterCriteria, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("failed to parse criteria: expected a JSON object")
	}

	var criteria FilterCriteria
	if err := json.Unmarshal([]byte(trimmed), &criteria); err != nil {
		return nil, fmt.Errorf("failed to parse criteria: %w", err)
	}

	if criteria.IsEmpty() {
		return nil, nil
	}
	return &criteria, nil
}

// EncodeCriteria is the inverse of ParseCriteria; nil encodes as an empty string
func EncodeCriteria(criteria *FilterCriteria) (string, error) {
	if criteria.IsEmpty() {
		return "", nil
	}
	b, err := json.Marshal(criteria)
	if err != nil {
		return "", fmt.Errorf("failed to encode criteria: %w", err)
	}
	return string(b), nil
}
