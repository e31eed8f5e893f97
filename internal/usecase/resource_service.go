package usecase

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/listproxy/backend/internal/domain"
)

// forwardedHeaders are the client request headers passed on to the upstream
var forwardedHeaders = []string{"User-Agent", "Accept", "Accept-Language"}

// droppedHeaders never reach the client: embedding restrictions, the replaced
// Content-Type, and framing headers invalidated by rewriting the body.
var droppedHeaders = map[string]bool{
	"Content-Type":                        true,
	"X-Frame-Options":                     true,
	"Content-Security-Policy":             true,
	"Content-Security-Policy-Report-Only": true,
	"Content-Length":                      true,
	"Content-Encoding":                    true,
	"Transfer-Encoding":                   true,
	"Connection":                          true,
}

const defaultContentType = "text/html; charset=utf-8"

// ResourceService streams arbitrary upstream resources back through the proxy
type ResourceService struct {
	upstream domain.UpstreamClient
	rc       *RewriteContext
	logger   *slog.Logger
}

// NewResourceService creates a new resource service
func NewResourceService(upstream domain.UpstreamClient, rc *RewriteContext, logger *slog.Logger) *ResourceService {
	return &ResourceService{
		upstream: upstream,
		rc:       rc,
		logger:   componentLogger(logger, "resource"),
	}
}

// GetResource fetches path from the upstream. HTML and CSS bodies are
// rewritten to route through the proxy and served as UTF-8; everything else
// is passed through as opaque bytes.
func (s *ResourceService) GetResource(ctx context.Context, path string, clientHeader http.Header) (*domain.Resource, error) {
	normalized := NormalizePath(path)
	if err := ValidateResourcePath(normalized); err != nil {
		return nil, err
	}

	forward := make(map[string]string, len(forwardedHeaders))
	for _, name := range forwardedHeaders {
		if v := clientHeader.Get(name); v != "" {
			forward[name] = v
		}
	}

	res, err := s.upstream.FetchResource(ctx, NewProxyTarget(normalized), forward)
	if err != nil {
		s.logger.Warn("resource fetch failed", "path", normalized, "error", err)
		return nil, err
	}

	out := &domain.Resource{
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
		Header:      scrubHeaders(res.Header),
		Body:        res.Body,
	}
	if out.ContentType == "" {
		out.ContentType = defaultContentType
	}

	switch mediaType(out.ContentType) {
	case "text/html":
		if text, ok := toUTF8(res.Body, out.ContentType); ok {
			out.Body = s.rc.RewriteHTML(text)
			out.ContentType = "text/html; charset=utf-8"
		}
	case "text/css":
		if text, ok := toUTF8(res.Body, out.ContentType); ok {
			out.Body = []byte(s.rc.RewriteCSS(string(text)))
			out.ContentType = "text/css; charset=utf-8"
		}
	}
	return out, nil
}

func scrubHeaders(header map[string][]string) map[string][]string {
	out := make(map[string][]string, len(header))
	for name, values := range header {
		if droppedHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// toUTF8 decodes body using the charset declared in contentType or sniffed
// from the content. ok is false when the body cannot be decoded.
func toUTF8(body []byte, contentType string) ([]byte, bool) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, false
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, false
	}
	return text, true
}
