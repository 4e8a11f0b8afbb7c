package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Args are decoded tool arguments. Values arrive from JSON, so numbers are
// float64 and lists are []interface{}; the accessors also accept strings.
type Args map[string]interface{}

// String returns a string argument, or "" when absent
func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns an integer argument, or def when absent or invalid
func (a Args) Int(name string, def int) int {
	switch v := a[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Float returns a number argument and whether it was present
func (a Args) Float(name string) (float64, bool) {
	switch v := a[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Bool returns a boolean argument, or def when absent
func (a Args) Bool(name string, def bool) bool {
	switch v := a[name].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Strings returns a list argument. A comma-separated string is split.
func (a Args) Strings(name string) []string {
	switch v := a[name].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Object returns an object argument. A JSON-encoded string is decoded.
func (a Args) Object(name string) (map[string]interface{}, error) {
	switch v := a[name].(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("%s must be a JSON object: %w", name, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s must be an object", name)
}
