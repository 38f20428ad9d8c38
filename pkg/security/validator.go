package security

import (
	"regexp"
	"strings"
)

// likeEscaper escapes the LIKE wildcards and the escape character itself.
var likeEscaper = strings.NewReplacer(
	`\`, `\\`,
	`%`, `\%`,
	`_`, `\_`,
)

// LikeEscapeChar is the escape character used by EscapeLike. Queries must
// declare it with `ESCAPE '\'`.
const LikeEscapeChar = `\`

// EscapeRegex quotes every regular expression metacharacter in a
// user-supplied search term so it matches literally.
func EscapeRegex(query string) string {
	return regexp.QuoteMeta(query)
}

// EscapeLike prepares a user-supplied search term for a LIKE pattern so it
// matches literally.
func EscapeLike(query string) string {
	if query == "" {
		return ""
	}
	return likeEscaper.Replace(query)
}

// ContainsPattern returns a LIKE pattern matching any value that contains
// query as a literal substring.
func ContainsPattern(query string) string {
	return "%" + EscapeLike(query) + "%"
}
