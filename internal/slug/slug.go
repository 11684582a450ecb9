// Package slug derives URL-safe slugs from term and item names.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Make converts a name to a slug.
//
//	"Science Fiction"  -> "science-fiction"
//	"Émile Zola"       -> "emile-zola"
//	"Sci-Fi / Fantasy" -> "sci-fi-fantasy"
//	"東京"              -> "dong-jing"
func Make(s string) string {
	s = norm.NFKD.String(s)
	s = unidecode.Unidecode(s)

	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Valid reports whether s is already in slug form.
func Valid(s string) bool {
	return s != "" && Make(s) == s
}
