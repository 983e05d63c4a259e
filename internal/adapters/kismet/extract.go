package kismet

import (
	"math"
	"strconv"
	"strings"
)

// Sensor payloads are decoded into untyped trees (map[string]any, []any, scalars)
// and searched with ordered strategies. A new upstream schema variant is one more
// strategy in a list, not a new decoder.

// strategy looks for a value in a decoded payload.
type strategy func(v any) (any, bool)

// path follows nested object keys from the root.
func path(keys ...string) strategy {
	return func(v any) (any, bool) {
		cur := v
		for _, k := range keys {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = m[k]
			if !ok {
				return nil, false
			}
		}
		if cur == nil {
			return nil, false
		}
		return cur, true
	}
}

// deep searches the whole tree depth-first for the first node where the key path
// resolves to a non-null value. Object children are visited in sorted key order so
// results do not depend on map iteration.
func deep(keys ...string) strategy {
	direct := path(keys...)
	var walk func(v any) (any, bool)
	walk = func(v any) (any, bool) {
		if val, ok := direct(v); ok {
			return val, true
		}
		switch node := v.(type) {
		case map[string]any:
			for _, k := range sortedKeys(node) {
				if val, ok := walk(node[k]); ok {
					return val, true
				}
			}
		case []any:
			for _, item := range node {
				if val, ok := walk(item); ok {
					return val, true
				}
			}
		}
		return nil, false
	}
	return walk
}

// firstOf tries strategies in priority order and returns the first hit.
func firstOf(v any, strategies []strategy) (any, bool) {
	for _, s := range strategies {
		if val, ok := s(v); ok {
			return val, true
		}
	}
	return nil, false
}

// firstString is firstOf restricted to string values.
func firstString(v any, strategies []strategy) (string, bool) {
	for _, s := range strategies {
		if val, ok := s(v); ok {
			if str, isStr := val.(string); isStr {
				return str, true
			}
		}
	}
	return "", false
}

// epochSeconds converts a numeric or all-digit string value to epoch seconds.
func epochSeconds(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return 0, false
			}
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// intValue reads a JSON number as an int.
func intValue(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
