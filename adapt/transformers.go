package adapt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TransformFunc coerces a value into a different shape. Transformers must
// not mutate their input.
type TransformFunc func(any) (any, error)

// catalogue holds the fixed set of type coercions the output adapter may
// apply. Entries are toggled through the config tables and the adapter's
// management calls.
var catalogue = map[string]TransformFunc{
	"identity":         transformIdentity,
	"list_to_array":    transformToList,
	"array_to_list":    transformToList,
	"string_to_number": transformStringToNumber,
	"number_to_string": transformNumberToString,
	"dict_to_list":     transformDictToList,
	"list_to_dict":     transformListToDict,
	"flatten_list":     transformFlattenList,
	"wrap_single":      transformWrapSingle,
	"unwrap_single":    transformUnwrapSingle,
}

// TransformerNames returns the catalogue entries in sorted order.
func TransformerNames() []string {
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func transformIdentity(v any) (any, error) { return v, nil }

// transformToList normalizes any value into a []any: lists copy, scalars
// wrap.
func transformToList(v any) (any, error) {
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		copy(out, list)
		return out, nil
	}
	return []any{v}, nil
}

func transformStringToNumber(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("string_to_number: got %T", v)
	}
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("string_to_number: %q is not numeric", s)
	}
	return f, nil
}

func transformNumberToString(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), nil
	default:
		return nil, fmt.Errorf("number_to_string: got %T", v)
	}
}

// transformDictToList returns map values ordered by key.
func transformDictToList(v any) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dict_to_list: got %T", v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(m))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out, nil
}

// transformListToDict indexes list elements by position.
func transformListToDict(v any) (any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("list_to_dict: got %T", v)
	}
	out := make(map[string]any, len(list))
	for i, item := range list {
		out[strconv.Itoa(i)] = item
	}
	return out, nil
}

func transformFlattenList(v any) (any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("flatten_list: got %T", v)
	}
	var out []any
	var walk func(items []any)
	walk = func(items []any) {
		for _, item := range items {
			if nested, ok := item.([]any); ok {
				walk(nested)
				continue
			}
			out = append(out, item)
		}
	}
	walk(list)
	return out, nil
}

func transformWrapSingle(v any) (any, error) {
	return []any{v}, nil
}

func transformUnwrapSingle(v any) (any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unwrap_single: got %T", v)
	}
	if len(list) != 1 {
		return nil, fmt.Errorf("unwrap_single: list has %d elements", len(list))
	}
	return list[0], nil
}
