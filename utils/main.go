package utils

import (
	"regexp"
	"strings"
)

// usernameSuffixRegexp matches any suffix beginning with an at sign.
var usernameSuffixRegexp = regexp.MustCompile("@.*$")

// RemoveUsernameSuffix removes the suffix from a username. Identity providers that qualify usernames with a domain
// suffix would otherwise give the same person a second owner ID, and with it a second set of quotas.
func RemoveUsernameSuffix(username string) string {
	return usernameSuffixRegexp.ReplaceAllString(username, "")
}

// NormalizeOwnerID trims an owner ID and removes the configured username suffix from it. If no suffix is
// configured, any suffix beginning with an at sign is removed.
func NormalizeOwnerID(ownerID, usernameSuffix string) string {
	ownerID = strings.TrimSpace(ownerID)
	if usernameSuffix == "" {
		return RemoveUsernameSuffix(ownerID)
	}
	return strings.TrimSuffix(ownerID, usernameSuffix)
}
