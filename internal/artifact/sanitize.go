package artifact

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Sanitize makes name safe for file names and environment keys.
//
// Accents are folded to their base letters, every run of characters outside
// [A-Za-z0-9_.-] becomes a single dash, leading and trailing dashes are
// trimmed, and the result is lower-cased.
func Sanitize(name string) string {
	folded, _, err := transform.String(foldAccents(), strings.TrimSpace(name))
	if err != nil {
		folded = strings.TrimSpace(name)
	}
	return strings.ToLower(strings.Trim(unsafeRun.ReplaceAllString(folded, "-"), "-"))
}

// foldAccents is built per call; transformers carry state.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
