package models

import "fmt"

// Document is a JSON-like stored document. Keys may hold nested documents,
// lists, strings, numbers, booleans, or nil.
type Document map[string]any

const (
	KeyID       = "_id"
	KeyCreated  = "created"
	KeyModified = "modified"
	KeyAuthor   = "author"
	KeyFields   = "fields"
)

// ID returns the document identity as a string, or "" when absent.
func (d Document) ID() string {
	if d == nil {
		return ""
	}
	switch v := d[KeyID].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Fields returns the user-declared attribute map of a record document.
func (d Document) Fields() map[string]any {
	if d == nil {
		return nil
	}
	switch v := d[KeyFields].(type) {
	case map[string]any:
		return v
	case Document:
		return v
	default:
		return nil
	}
}

// Clone returns a deep copy of d. Lists and nested documents are copied,
// scalar values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Document:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	default:
		return v
	}
}

// IDList converts a stored attachment field value into its list of blob ids.
// Non-string elements are skipped.
func IDList(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, 0, len(t))
		for _, id := range t {
			if id != "" {
				out = append(out, id)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if id, ok := item.(string); ok && id != "" {
				out = append(out, id)
			}
		}
		return out
	default:
		return nil
	}
}
