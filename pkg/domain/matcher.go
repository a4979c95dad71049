package domain

import (
	"fmt"
	"strings"
)

// MatchesConfig reports whether every configured filter is a case-insensitive
// substring of the matching event field. Unset filters match anything.
func MatchesConfig(filterKeys []string, config map[string]any, event map[string]any) bool {
	for _, key := range filterKeys {
		want := stringValue(config[key])
		if want == "" {
			continue
		}

		got := stringValue(event[key])
		if !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
			return false
		}
	}

	return true
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringValue(item))
		}
		return strings.Join(parts, ",")
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
