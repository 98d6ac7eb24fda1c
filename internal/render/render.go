// internal/render/render.go
package render

import (
	"regexp"
	"strings"
)

// Placeholder tokens look like {{first_name}}. The pattern is only used
// to locate tokens; substitution itself is literal string replacement,
// so user-supplied token names are never interpreted as patterns.
var placeholderPattern = regexp.MustCompile(`\{\{[^{}]+\}\}`)

// Placeholders returns the distinct placeholder tokens found in subject
// and body, in order of first appearance. Tokens keep their braces, so
// they can be used directly as mapping keys.
func Placeholders(subject, body string) []string {
	seen := map[string]bool{}
	tokens := []string{}
	for _, s := range []string{subject, body} {
		for _, tok := range placeholderPattern.FindAllString(s, -1) {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Render substitutes placeholder tokens in subject and body using the
// token -> field mapping and one recipient's raw record.
//
// Every occurrence of a mapped token is replaced with the recipient's
// value for the mapped field, as a literal string. A token with no
// mapping entry, or whose mapped field is empty or absent for this
// recipient, passes through verbatim. Substitution happens in a single
// pass, so values containing brace sequences are never re-expanded.
func Render(subject, body string, mapping map[string]string, record map[string]string) (string, string) {
	pairs := []string{}
	for _, tok := range Placeholders(subject, body) {
		field, ok := mapping[tok]
		if !ok {
			continue
		}
		value := record[field]
		if value == "" {
			continue
		}
		pairs = append(pairs, tok, value)
	}

	if len(pairs) == 0 {
		return subject, body
	}

	r := strings.NewReplacer(pairs...)
	return r.Replace(subject), r.Replace(body)
}
