package domain

import (
	"net/url"
	"strings"
)

// ProductItem is a normalized product listing returned to callers
type ProductItem struct {
	Title string `json:"title"`
	Price string `json:"price"`
	Image string `json:"image"`
	Link  string `json:"link"`
}

// Valid reports whether the item carries the fields every listing needs
func (p ProductItem) Valid() bool {
	return strings.TrimSpace(p.Title) != "" && strings.TrimSpace(p.Link) != ""
}

// ProxyTarget is a normalized upstream request descriptor.
// It is built once per inbound call and never modified afterwards.
type ProxyTarget struct {
	Path  string
	Query url.Values

	// RawQuery keeps the caller's query bytes so signed upstream URLs survive
	RawQuery string
}

// String renders the target as a server-relative request URI.
func (t ProxyTarget) String() string {
	switch {
	case t.RawQuery != "":
		return t.Path + "?" + t.RawQuery
	case len(t.Query) > 0:
		return t.Path + "?" + t.Query.Encode()
	}
	return t.Path
}

// SearchQuery describes a typed listing query sent to the upstream search APIs
type SearchQuery struct {
	Keyword    string
	CategoryID string
	Page       int
	Limit      int
	Sort       string
	Order      string
}

// Resource is a raw upstream response ready to be streamed back to the caller
type Resource struct {
	StatusCode  int
	ContentType string
	Header      map[string][]string
	Body        []byte
}
