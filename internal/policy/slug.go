// ABOUTME: Derives policy-service user keys from usernames
// ABOUTME: Accents are folded to ASCII, punctuation dropped and whitespace runs become hyphens

package policy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugSpace is every ASCII character Unicode treats as whitespace
const slugSpace = `\t\n\v\f\r\x1c-\x1f `

var (
	slugInvalid   = regexp.MustCompile(`[^\w` + slugSpace + `-]`)
	slugSeparator = regexp.MustCompile(`[` + slugSpace + `]+`)
)

// UserKey converts a username into the key the policy service knows the user by.
// Existing hyphens are kept as they are, so "mary--ann" stays "mary--ann".
func UserKey(username string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, username)
	if err != nil {
		folded = username
	}

	ascii := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)

	slug := slugInvalid.ReplaceAllString(strings.ToLower(ascii), "")
	return slugSeparator.ReplaceAllString(slug, "-")
}
