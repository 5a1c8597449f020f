package imagegen

import (
	"regexp"
	"strings"
)

var dataURIPrefix = regexp.MustCompile(`^data:([^;,]+)?(;[^,]*)?;base64,`)

// IsDataURI reports whether s is a self-describing encoded payload rather than
// a network locator.
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// SplitDataURI separates the declared MIME type from the base64 payload.
// Inputs without a prefix are returned unchanged with an empty MIME type.
func SplitDataURI(s string) (mime string, payload string) {
	s = strings.TrimSpace(s)
	loc := dataURIPrefix.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", s
	}
	if loc[2] >= 0 {
		mime = s[loc[2]:loc[3]]
	}
	return mime, s[loc[1]:]
}

// CleanPayload strips a data URI prefix exactly once.
func CleanPayload(s string) string {
	_, payload := SplitDataURI(s)
	return payload
}
