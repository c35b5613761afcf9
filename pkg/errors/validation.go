package errors

import (
	"net/url"
	"strings"
	"unicode"
)

// ValidatePrefix validates a class path prefix such as "com/example/".
// Prefixes are matched against jar entry names, so they use forward
// slashes and must not be absolute.
//
// Validation rules:
//   - Prefix cannot be empty
//   - No control characters or null bytes
//   - No leading slash
//   - No backslashes or path traversal sequences
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return New(ErrCodeInvalidInput, "prefix cannot be empty")
	}

	for _, r := range prefix {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "prefix contains invalid characters")
		}
	}

	if strings.HasPrefix(prefix, "/") {
		return New(ErrCodeInvalidInput, "prefix must be relative (cannot start with /)")
	}

	dangerousPatterns := []string{
		"..",
		"//",
		"\\",
	}
	for _, pattern := range dangerousPatterns {
		if strings.Contains(prefix, pattern) {
			return New(ErrCodeInvalidInput, "prefix contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidatePath validates a file path within an archive for safety.
// It prevents path traversal when entries are written to disk.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
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

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a repository URL.
// It ensures the URL has a safe scheme (http or https) and a host.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "malformed URL %q", rawURL)
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL %q has no host", rawURL)
	}

	return nil
}
