package ioreader

import (
	"fmt"
	"strconv"
)

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// parseCount parses a selector that should be a plain byte/rune count,
// e.g. "10". Named selectors (*a, *l, *n) are handled by their own callers
// before reaching here.
func parseCount(selector string) (int, error) {
	n, err := strconv.Atoi(selector)
	if err != nil {
		return 0, fmt.Errorf("ioreader: invalid read selector %q", selector)
	}
	return n, nil
}
