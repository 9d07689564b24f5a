// Package normalize canonicalizes user-supplied identifiers before they are stored or compared.
package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization trims surrounding whitespace
// and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Username trims a username and lower-cases it so "@Ada" and "ada" collide.
func Username(u string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(u), "@"))
}
