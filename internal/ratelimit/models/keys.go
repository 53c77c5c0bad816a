package models

import (
	"strconv"
	"strings"
)

// SanitizeKeySegment escapes the key delimiter so a user-controlled value such
// as "user:admin" cannot address a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), ":", "_")
}

// BucketKey joins a policy name, limit index and subject key.
func BucketKey(policy string, index int, subjectKey string) string {
	return "rl:" + policy + ":" + strconv.Itoa(index) + ":" + subjectKey
}
