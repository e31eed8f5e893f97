package usecase

import (
	"net/url"
	"strings"
)

// DefaultResourceEndpoint is the proxy route that serves upstream resources
const DefaultResourceEndpoint = "/proxy"

// RewriteContext carries the read-only settings shared by the content
// rewriter and the structured-data extractor for one request.
type RewriteContext struct {
	BaseURL  string
	Endpoint string

	baseHost string
}

// NewRewriteContext creates a rewrite context for the given upstream base URL
// and proxy resource endpoint.
func NewRewriteContext(baseURL, endpoint string) *RewriteContext {
	if endpoint == "" {
		endpoint = DefaultResourceEndpoint
	}
	rc := &RewriteContext{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Endpoint: endpoint,
	}
	if u, err := url.Parse(baseURL); err == nil {
		rc.baseHost = strings.ToLower(u.Hostname())
	}
	return rc
}

// Rewrite routes a same-origin resource reference back through the proxy.
// Empty, javascript:, fragment-only, cross-origin and non-http references are
// returned untouched.
func (rc *RewriteContext) Rewrite(ref string) string {
	candidate := strings.TrimSpace(ref)
	if candidate == "" || strings.HasPrefix(candidate, "#") {
		return ref
	}
	if strings.HasPrefix(strings.ToLower(candidate), "javascript:") {
		return ref
	}
	if rc.isProxied(candidate) {
		return ref
	}

	if strings.HasPrefix(candidate, "//") {
		candidate = "https:" + candidate
	} else if strings.HasPrefix(candidate, "/") {
		path, fragment, _ := strings.Cut(candidate, "#")
		return rc.proxied(path, fragment)
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ref
	}
	if rc.baseHost == "" || strings.ToLower(u.Hostname()) != rc.baseHost {
		return ref
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rc.proxied(path, u.EscapedFragment())
}

func (rc *RewriteContext) proxied(path, fragment string) string {
	out := rc.Endpoint + "?path=" + url.QueryEscape(path)
	if fragment != "" {
		out += "#" + fragment
	}
	return out
}

func (rc *RewriteContext) isProxied(ref string) bool {
	return strings.HasPrefix(rc.Endpoint, "/") && strings.HasPrefix(ref, rc.Endpoint+"?path=")
}

// Absolute resolves a server-relative upstream path against the base URL
func (rc *RewriteContext) Absolute(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "//") {
		return "https:" + path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return rc.BaseURL + path
}
