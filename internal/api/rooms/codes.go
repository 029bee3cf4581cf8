package rooms

import "strings"

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func sameCode(a, b string) bool {
	return a != "" && b != "" && normalizeCode(a) == normalizeCode(b)
}
