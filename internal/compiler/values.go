package compiler

import "fmt"

// defMap is the raw YAML mapping of one definition. Accessors tolerate the
// loose typing YAML produces (an unquoted number where a string is wanted,
// and so on) the way the definitions people actually write demand.
type defMap map[string]any

func (d defMap) str(key, fallback string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return fallback
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}

func (d defMap) boolVal(key string, fallback bool) bool {
	v, ok := d[key]
	if !ok || v == nil {
		return fallback
	}

	if b, ok := v.(bool); ok {
		return b
	}

	return fallback
}

func (d defMap) intVal(key string, fallback int) int {
	v, ok := d[key]
	if !ok || v == nil {
		return fallback
	}

	if n, ok := v.(int); ok {
		return n
	}

	return fallback
}

// strList returns a []string value; scalar entries of other YAML types are
// stringified.
func (d defMap) strList(key string) []string {
	v, ok := d[key]
	if !ok || v == nil {
		return nil
	}

	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprint(it))
	}

	return out
}

// mapList returns a list-of-mappings value (e.g. view component specs).
func (d defMap) mapList(key string) []defMap {
	v, ok := d[key]
	if !ok || v == nil {
		return nil
	}

	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]defMap, 0, len(items))

	for _, it := range items {
		// Nested mappings surface as either the named type or the plain
		// map depending on how the enclosing document was decoded.
		switch m := it.(type) {
		case defMap:
			out = append(out, m)
		case map[string]any:
			out = append(out, defMap(m))
		}
	}

	return out
}
