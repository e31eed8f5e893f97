package usecase

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/listproxy/backend/internal/domain"
)

// NormalizePath converts a caller-supplied path or URL into a canonical upstream path.
// The result always begins with "/" and keeps the query string verbatim.
func NormalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "/"
	}

	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		path := u.EscapedPath()
		if path == "" {
			path = "/"
		}
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
		return path
	}

	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return raw
}

// NewProxyTarget normalizes raw and splits it into path and query.
// Undecodable query pairs are dropped.
func NewProxyTarget(raw string) domain.ProxyTarget {
	normalized := NormalizePath(raw)
	path, rawQuery, _ := strings.Cut(normalized, "?")
	query, _ := url.ParseQuery(rawQuery)
	if len(query) == 0 {
		query = nil
	}
	return domain.ProxyTarget{Path: path, Query: query, RawQuery: rawQuery}
}

// ValidateResourcePath rejects normalized paths that would not stay on the upstream host
func ValidateResourcePath(normalized string) error {
	if !strings.HasPrefix(normalized, "/") || strings.HasPrefix(normalized, "//") {
		return fmt.Errorf("%w: path must be server-relative: %q", domain.ErrInvalidInput, normalized)
	}
	for _, r := range normalized {
		if r < 0x20 || r == 0x7f || r == '\\' {
			return fmt.Errorf("%w: path contains forbidden characters", domain.ErrInvalidInput)
		}
	}
	if _, err := url.ParseRequestURI(normalized); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
