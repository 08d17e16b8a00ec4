package store

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gcs/internal/models"
)

// Condition selects documents by equality on dotted paths. A scalar
// condition value matches a list field when any element equals it.
type Condition map[string]any

// SortField orders query results by one dotted path.
type SortField struct {
	Field string `json:"field" yaml:"field"`
	Desc  bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Options are the fixed query options of a find.
type Options struct {
	Sort  []SortField `json:"sort,omitempty" yaml:"sort,omitempty"`
	Limit int         `json:"limit,omitempty" yaml:"limit,omitempty"`
	Skip  int         `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// UpdateOptions control update behavior.
type UpdateOptions struct {
	Upsert bool `json:"upsert,omitempty" yaml:"upsert,omitempty"`
}

// Patch is an operator envelope such as {"$set": {"fields.title": "x"}}.
type Patch map[string]any

const (
	OpSet   = "$set"
	OpUnset = "$unset"
	OpPush  = "$push"
	OpPull  = "$pull"
)

// Set returns a patch that sets path to value.
func Set(path string, value any) Patch {
	return Patch{OpSet: map[string]any{path: value}}
}

// Push returns a patch that appends value to the list at path.
func Push(path string, value any) Patch {
	return Patch{OpPush: map[string]any{path: value}}
}

// Pull returns a patch that removes every element equal to value from the list at path.
func Pull(path string, value any) Patch {
	return Patch{OpPull: map[string]any{path: value}}
}

// Operands returns the path/value map of one operator, or nil.
func (p Patch) Operands(op string) map[string]any {
	return asMap(p[op])
}

// Validate checks that p only uses supported operators with path maps.
func (p Patch) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("update patch is empty")
	}
	for op, operand := range p {
		switch op {
		case OpSet, OpUnset, OpPush, OpPull:
		default:
			return fmt.Errorf("unsupported update operator %q", op)
		}
		fields := asMap(operand)
		if fields == nil {
			return fmt.Errorf("operator %s requires a field map", op)
		}
		for path := range fields {
			if path == "" {
				return fmt.Errorf("operator %s has an empty field path", op)
			}
			if path == models.KeyID || strings.HasPrefix(path, models.KeyID+".") {
				return fmt.Errorf("operator %s may not modify %s", op, models.KeyID)
			}
		}
	}
	return nil
}

// Apply mutates doc in place according to patch.
func Apply(doc models.Document, patch Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	for _, op := range []string{OpSet, OpUnset, OpPush, OpPull} {
		fields := patch.Operands(op)
		for _, path := range sortedKeys(fields) {
			value := fields[path]
			var err error
			switch op {
			case OpSet:
				err = setPath(doc, path, value)
			case OpUnset:
				unsetPath(doc, path)
			case OpPush:
				err = pushPath(doc, path, value)
			case OpPull:
				err = pullPath(doc, path, value)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Match reports whether doc satisfies every clause of cond.
func Match(doc models.Document, cond Condition) bool {
	for path, want := range cond {
		got, ok := lookupPath(doc, path)
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if !matchValue(got, want) {
			return false
		}
	}
	return true
}

// LookupPath resolves a dotted path inside doc.
func LookupPath(doc models.Document, path string) (any, bool) {
	return lookupPath(doc, path)
}

func lookupPath(doc map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = doc
	for _, part := range parts {
		m := asMap(current)
		if m == nil {
			return nil, false
		}
		value, ok := m[part]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}

func setPath(doc map[string]any, path string, value any) error {
	parts := strings.Split(path, ".")
	current := doc
	for i, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok || next == nil {
			child := map[string]any{}
			current[part] = child
			current = child
			continue
		}
		child := asMap(next)
		if child == nil {
			return fmt.Errorf("cannot set %s: %s is not a document", path, strings.Join(parts[:i+1], "."))
		}
		current[part] = child
		current = child
	}
	current[parts[len(parts)-1]] = value
	return nil
}

func unsetPath(doc map[string]any, path string) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		child := asMap(current[part])
		if child == nil {
			return
		}
		current = child
	}
	delete(current, parts[len(parts)-1])
}

func pushPath(doc map[string]any, path string, value any) error {
	existing, ok := lookupPath(doc, path)
	if !ok || existing == nil {
		return setPath(doc, path, []any{value})
	}
	list, ok := asList(existing)
	if !ok {
		return fmt.Errorf("cannot push to %s: field is not a list", path)
	}
	next := make([]any, 0, len(list)+1)
	next = append(next, list...)
	next = append(next, value)
	return setPath(doc, path, next)
}

func pullPath(doc map[string]any, path string, value any) error {
	existing, ok := lookupPath(doc, path)
	if !ok || existing == nil {
		return nil
	}
	list, ok := asList(existing)
	if !ok {
		return fmt.Errorf("cannot pull from %s: field is not a list", path)
	}
	next := make([]any, 0, len(list))
	for _, item := range list {
		if valuesEqual(item, value) {
			continue
		}
		next = append(next, item)
	}
	return setPath(doc, path, next)
}

func matchValue(got, want any) bool {
	if list, ok := asList(got); ok {
		if wantList, ok := asList(want); ok {
			if len(list) != len(wantList) {
				return false
			}
			for i := range list {
				if !valuesEqual(list[i], wantList[i]) {
					return false
				}
			}
			return true
		}
		for _, item := range list {
			if valuesEqual(item, want) {
				return true
			}
		}
		return false
	}
	return valuesEqual(got, want)
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if as, ok := toString(a); ok {
		bs, ok := toString(b)
		return ok && as == bs
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders nil before numbers before strings before everything else.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 1:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case 2:
		as, _ := toString(a)
		bs, _ := toString(b)
		return strings.Compare(as, bs)
	case 3:
		ab, _ := a.(bool)
		bb, _ := b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	}
	return 0
}

func typeRank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	if _, ok := toString(v); ok {
		return 2
	}
	if _, ok := v.(bool); ok {
		return 3
	}
	return 4
}

func sortDocuments(docs []models.Document, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, field := range fields {
			a, _ := lookupPath(docs[i], field.Field)
			b, _ := lookupPath(docs[j], field.Field)
			cmp := compareValues(a, b)
			if cmp == 0 {
				continue
			}
			if field.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func window(docs []models.Document, skip, limit int) []models.Document {
	if skip > 0 {
		if skip >= len(docs) {
			return []models.Document{}
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return "", false
	}
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case models.Document:
		return m
	case Condition:
		return m
	case Patch:
		return m
	default:
		return nil
	}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
