// Package sanitize strips markup from user-provided text. Display fields
// (names, usernames) are stored as plain text and echoed back verbatim by
// the session endpoint, so anything that looks like HTML is removed before
// it ever reaches the database.
package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton strict policy: no elements, no attributes.
// Initialized once via sync.Once for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text removes all HTML from a display-text field and trims surrounding
// whitespace. "<b>Alice</b>" becomes "Alice"; plain text passes through
// unchanged.
func Text(input string) string {
	return strings.TrimSpace(getPolicy().Sanitize(input))
}
