package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	quoteRe   = regexp.MustCompile("[’'`]")
	nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify turns a topic or category name into a URL slug: accents are
// folded, words are kebab-cased and anything outside [a-z0-9] collapses to "-".
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = quoteRe.ReplaceAllString(folded, "")
	slug := strings.ToLower(strcase.ToKebab(folded))
	slug = nonSlugRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
