// Package changes diffs freshly fetched exam and grade records against the
// previously stored state. Every function here is pure and independent of
// input order.
package changes

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeField trims, collapses inner whitespace and case-folds s so that
// cosmetic upstream differences never count as a change.
func NormalizeField(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	// Casers keep state and are not safe for concurrent use.
	return cases.Fold().String(s)
}
