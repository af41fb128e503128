package sanitize

import "strings"

// allowedSchemes are the URL schemes permitted in hrefs and links.
var allowedSchemes = []string{"http://", "https://", "mailto:"}

var blockedSchemes = []string{"javascript:", "vbscript:", "file:", "data:"}

// IsSafeURL reports whether u is safe to store/render as a link target.
// Allowed schemes are http, https and mailto; javascript:, vbscript: and
// file: are always rejected; data: is rejected unless it is an inline
// image (data:image/...) and inline images are enabled. A relative URL
// with no scheme at all is accepted.
func IsSafeURL(u string, allowDataImage bool) bool {
	trimmed := strings.ToLower(strings.TrimSpace(u))
	if trimmed == "" {
		return false
	}

	for _, s := range allowedSchemes {
		if strings.HasPrefix(trimmed, s) {
			return true
		}
	}

	if strings.HasPrefix(trimmed, "data:") {
		return allowDataImage && strings.HasPrefix(trimmed, "data:image/")
	}

	for _, s := range blockedSchemes {
		if strings.HasPrefix(trimmed, s) {
			return false
		}
	}

	// No scheme at all: treat as relative, accepted.
	if !hasScheme(trimmed) {
		return true
	}

	return false
}

// hasScheme reports whether s begins with "<letters>:" before any '/'.
func hasScheme(s string) bool {
	idx := strings.IndexByte(s, ':')
	if idx <= 0 {
		return false
	}
	for i := 0; i < idx; i++ {
		c := s[i]
		isAlnum := (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '+' || c == '-' || c == '.'
		if !isAlnum {
			return false
		}
	}
	return true
}
