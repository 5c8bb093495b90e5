// Package normalize folds the width variants common in registry data.
// Corporation names mix full-width and half-width letters, digits and
// katakana; folding them makes downstream joins behave.
package normalize

import (
	"strings"

	"golang.org/x/text/width"
)

// Name trims surrounding whitespace, folds width variants to their
// canonical form and collapses runs of inner whitespace to single spaces.
func Name(s string) string {
	s = width.Fold.String(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}
