package utils

import (
	"net/url"
	"strings"
)

// IsValidURL checks if a string is an absolute http(s) URL
func IsValidURL(str string) bool {
	u, err := url.Parse(str)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ExtractHost returns the lower-cased host of a URL without port and "www." prefix
func ExtractHost(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// UniqueStrings returns values with empties removed and duplicates collapsed,
// keeping first-seen order.
func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// RemoveQueryParam drops every occurrence of param from the URL query.
// Unparseable URLs are returned unchanged.
func RemoveQueryParam(rawURL, param string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	if !q.Has(param) {
		return rawURL
	}
	q.Del(param)
	u.RawQuery = q.Encode()
	return u.String()
}

// TruncateString truncates a string to a maximum length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// ParseContentType extracts the media type from a Content-Type header
func ParseContentType(contentType string) string {
	parts := strings.Split(contentType, ";")
	return strings.TrimSpace(parts[0])
}

// DetectCharset returns the charset parameter of a Content-Type header,
// defaulting to utf-8.
func DetectCharset(contentType string) string {
	if _, after, ok := strings.Cut(strings.ToLower(contentType), "charset="); ok {
		charset := strings.TrimSpace(strings.Split(after, ";")[0])
		if charset = strings.Trim(charset, `"'`); charset != "" {
			return charset
		}
	}
	return "utf-8"
}
