// Package validation holds input rules shared by services and handlers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var communityNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,21}$`)

var reservedCommunityNames = map[string]struct{}{
	"admin":       {},
	"api":         {},
	"auth":        {},
	"categories":  {},
	"communities": {},
	"health":      {},
	"metrics":     {},
	"popular":     {},
	"posts":       {},
	"saved":       {},
	"search":      {},
	"settings":    {},
	"swagger":     {},
	"trending":    {},
	"uploads":     {},
	"user":        {},
	"users":       {},
	"ws":          {},
}

// NormalizeCommunityName trims and lowercases a community name.
func NormalizeCommunityName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateCommunityName validates community name format and reserved names.
// The name is checked after normalization.
func ValidateCommunityName(name string) error {
	if !communityNameRegex.MatchString(name) {
		return fmt.Errorf("name must be 3-21 characters and contain only letters, numbers, and underscores")
	}

	if _, exists := reservedCommunityNames[NormalizeCommunityName(name)]; exists {
		return fmt.Errorf("name is reserved")
	}

	return nil
}
