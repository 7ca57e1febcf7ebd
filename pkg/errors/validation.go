package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// anchorNameRegex matches anchor names that are safe to embed in a CSS
// attribute selector and a TOML bare key.
var anchorNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidateAnchorName validates an anchor name.
//
// Anchor names are looked up in the host page as data attributes, so the
// rules are conservative:
//   - No empty names
//   - Maximum length of 64 characters
//   - Letters, digits, '-' and '_' only, starting with a letter
func ValidateAnchorName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "anchor name cannot be empty")
	}

	if len(name) > 64 {
		return New(ErrCodeInvalidInput, "anchor name too long (max 64 characters)")
	}

	if !anchorNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid anchor name: %q", name)
	}

	return nil
}

// ValidateOutputPath validates a user supplied output path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidateOutputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a scheme a browser host can navigate to.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") &&
		!strings.HasPrefix(rawURL, "https://") &&
		!strings.HasPrefix(rawURL, "file://") {
		return New(ErrCodeInvalidInput, "URL must use http, https or file scheme")
	}

	return nil
}
