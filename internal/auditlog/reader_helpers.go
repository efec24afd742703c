package auditlog

import (
	"strings"

	"github.com/tidwall/gjson"
)

func buildWhereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func clampLimitOffset(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 25
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// matchesDetails evaluates a "path=value" filter against a details JSON
// document. An empty filter matches everything; a filter without "=" checks
// for path existence only.
func matchesDetails(detailsJSON []byte, filter string) bool {
	if filter == "" {
		return true
	}
	if len(detailsJSON) == 0 {
		return false
	}

	path, want, hasValue := strings.Cut(filter, "=")
	result := gjson.GetBytes(detailsJSON, strings.TrimSpace(path))
	if !result.Exists() {
		return false
	}
	if !hasValue {
		return true
	}
	return result.String() == strings.TrimSpace(want)
}
