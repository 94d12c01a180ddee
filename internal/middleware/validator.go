package middleware

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateUserID checks the identity format coming from config or requests.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("invalid user ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateImageRef accepts http(s) URLs and opaque non-empty handles; what
// it rejects is control characters and obviously malformed URLs.
func ValidateImageRef(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("image reference cannot be empty")
	}
	for _, r := range ref {
		if r < 32 {
			return fmt.Errorf("invalid characters in image reference")
		}
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if _, err := url.Parse(ref); err != nil {
			return fmt.Errorf("invalid image URL: %w", err)
		}
	}
	return nil
}

// ValidateIngredients bounds the recipe-suggestion input.
func ValidateIngredients(ingredients []string) error {
	if len(ingredients) == 0 {
		return fmt.Errorf("ingredients cannot be empty")
	}
	if len(ingredients) > 20 {
		return fmt.Errorf("too many ingredients (max 20)")
	}
	for _, ing := range ingredients {
		if strings.TrimSpace(ing) == "" {
			return fmt.Errorf("ingredient names cannot be blank")
		}
	}
	return nil
}

// SanitizeString removes null bytes and control characters.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
