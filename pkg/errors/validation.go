package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// packageIDRegex matches NuGet package identifiers.
var packageIDRegex = regexp.MustCompile(`^\w+([.-]\w+)*$`)

// maxPackageIDLength is the NuGet gallery limit for package identifiers.
const maxPackageIDLength = 100

// ValidatePackageID validates a NuGet package identifier supplied on the
// command line. Case is not checked; registries compare ids case-insensitively.
func ValidatePackageID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "package id cannot be empty")
	}
	if len(id) > maxPackageIDLength {
		return New(ErrCodeInvalidInput, "package id too long (max %d characters)", maxPackageIDLength)
	}
	if !packageIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid package id: %q", id)
	}
	return nil
}

// ValidatePath validates an output or input file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
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
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme: %q", rawURL)
	}

	return nil
}
