package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseAssignments turns key=value arguments into record fields. Values that
// parse as JSON keep their JSON type; anything else is a string.
func parseAssignments(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		fields[key] = parseValue(raw)
	}
	return fields, nil
}

func parseValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err == nil {
		return value
	}
	return raw
}

// mergeJSONData merges a JSON object given with --data under the assignments.
func mergeJSONData(data string, fields map[string]any) (map[string]any, error) {
	if strings.TrimSpace(data) == "" {
		return fields, nil
	}
	var base map[string]any
	if err := json.Unmarshal([]byte(data), &base); err != nil {
		return nil, fmt.Errorf("--data must be a JSON object: %w", err)
	}
	for key, value := range fields {
		base[key] = value
	}
	return base, nil
}
