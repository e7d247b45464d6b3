package http

import (
	"strings"
)

// sanitizeInput trims whitespace and removes control characters.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(dropControl, s))
}

func dropControl(r rune) rune {
	if r < 32 && r != 9 && r != 10 && r != 13 {
		return -1
	}
	return r
}
