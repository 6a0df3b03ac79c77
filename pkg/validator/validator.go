package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the longest accepted search query, in characters
const MaxQueryLength = 100

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidateVideoID checks the 11 character video identifier format
func ValidateVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// ValidateQuery checks that a trimmed search query is 1 to 100 characters long
func ValidateQuery(query string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(query))
	return n > 0 && n <= MaxQueryLength
}

// NormalizeQuery trims the query before it is handed to the extractor
func NormalizeQuery(query string) string {
	return strings.TrimSpace(query)
}
