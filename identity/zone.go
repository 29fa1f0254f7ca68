package identity

import (
	"regexp"
	"strings"
)

var multiSpaceRegex = regexp.MustCompile(`[\s\p{Zs}]+`)

// NormalizeZoneName trims a zone label and collapses internal whitespace runs
// to a single space. Case and diacritics are left alone, so matching on the
// result is whitespace-insensitive but otherwise exact.
func NormalizeZoneName(name string) string {
	name = multiSpaceRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
