package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct {
	Indent bool
}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(payload)
}

// FieldsFormatter writes one "key: value" line per field, keys sorted.
// Nested maps are flattened with dotted keys and slices are written as JSON.
type FieldsFormatter struct{}

// Write writes payload, which must marshal to a JSON object.
func (f FieldsFormatter) Write(w io.Writer, payload any) error {
	fields, err := toMap(payload)
	if err != nil {
		return err
	}
	lines := make([]string, 0, len(fields))
	flatten("", fields, &lines)
	sort.Strings(lines)
	_, err = io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func toMap(payload any) (map[string]any, error) {
	if m, ok := payload.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("format: payload is not an object: %w", err)
	}
	return out, nil
}

func flatten(prefix string, fields map[string]any, lines *[]string) {
	for key, value := range fields {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(name, v, lines)
		case nil:
			*lines = append(*lines, name+": ")
		case string:
			*lines = append(*lines, name+": "+v)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				raw = []byte(fmt.Sprint(v))
			}
			*lines = append(*lines, name+": "+string(raw))
		}
	}
}
