package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"

	"github.com/listproxy/backend/internal/domain"
)

var (
	pricePattern      = regexp.MustCompile(`[¥￥]\s*[0-9][0-9,]*|[0-9][0-9,]*\s*円`)
	exactPricePattern = regexp.MustCompile(`^(?:[¥￥]\s*[0-9][0-9,]*|[0-9][0-9,]*\s*円)$`)

	// window.__STATE__ = ..., self.__NUXT__=..., __APOLLO_STATE__ = ...
	globalAssignPattern = regexp.MustCompile(`(?:\b(?:window|self|globalThis)\s*\.\s*)?\b(__[A-Za-z][A-Za-z0-9_]*__)\s*=\s*`)
)

// nextDataSelector locates the embedded Next.js page payload
const nextDataSelector = "script#__NEXT_DATA__"

// PageScanner extracts listings from a rendered upstream page
type PageScanner struct {
	rc        *RewriteContext
	extractor *StructuredExtractor
	logger    *slog.Logger
}

// NewPageScanner creates a page scanner
func NewPageScanner(rc *RewriteContext, logger *slog.Logger) *PageScanner {
	return &PageScanner{
		rc:        rc,
		extractor: NewStructuredExtractor(rc),
		logger:    componentLogger(logger, "page_scanner"),
	}
}

// Scan runs the DOM heuristics, then the __NEXT_DATA__ payload, then inline
// global assignments, moving on only while nothing has been found.
// Links are deduplicated across all three passes.
func (s *PageScanner) Scan(page []byte, limit int) ([]domain.ProductItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: parse page: %v", domain.ErrUpstreamParse, err)
	}

	c := newItemCollector(limit)

	s.scanAnchors(doc, c)
	if c.Len() > 0 {
		s.logger.Debug("listings found by anchor scan", "count", c.Len())
		return c.Items(), nil
	}

	s.scanNextData(doc, c)
	if c.Len() > 0 {
		s.logger.Debug("listings found in embedded page data", "count", c.Len())
		return c.Items(), nil
	}

	s.scanInlineScripts(doc, c)
	if c.Len() > 0 {
		s.logger.Debug("listings found in inline scripts", "count", c.Len())
	}
	return c.Items(), nil
}

// scanAnchors collects anchors that wrap an image and a price
func (s *PageScanner) scanAnchors(doc *goquery.Document, c *itemCollector) {
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		img := a.Find("img").First()
		if img.Length() == 0 {
			return true
		}
		price := findPriceText(a)
		if price == "" {
			return true
		}

		href, _ := a.Attr("href")
		item := domain.ProductItem{
			Title: anchorTitle(a, img, price),
			Price: price,
			Image: s.rc.Rewrite(imageSource(img)),
			Link:  s.rc.Rewrite(strings.TrimSpace(href)),
		}
		if item.Title == "" {
			return true
		}
		return c.Add(item)
	})
}

func (s *PageScanner) scanNextData(doc *goquery.Document, c *itemCollector) {
	script := doc.Find(nextDataSelector).First()
	if script.Length() == 0 {
		return
	}

	var data interface{}
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		s.logger.Warn("embedded page data is not valid JSON", "error", err)
		return
	}
	s.extractor.Walk(data, c.Add)
}

func (s *PageScanner) scanInlineScripts(doc *goquery.Document, c *itemCollector) {
	doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
		if _, external := script.Attr("src"); external {
			return true
		}
		if script.Is(nextDataSelector) {
			return true
		}
		body := script.Text()
		for _, m := range globalAssignPattern.FindAllStringSubmatchIndex(body, -1) {
			name := body[m[2]:m[3]]
			payload, ok := decodeAssignment(body[m[1]:])
			if !ok {
				s.logger.Debug("skipping unrecognized global assignment", "global", name)
				continue
			}
			s.extractor.Walk(payload, c.Add)
			if c.Full() {
				return false
			}
		}
		return true
	})
}

// decodeAssignment decodes the right-hand side of a global assignment: an
// object or array literal, a JSON.parse("...") call, or a quoted JSON string.
func decodeAssignment(rhs string) (interface{}, bool) {
	if rhs == "" || rhs[0] == '=' {
		return nil, false
	}

	var text string
	switch {
	case rhs[0] == '{' || rhs[0] == '[':
		end := matchBracket(rhs)
		if end < 0 {
			return nil, false
		}
		text = rhs[:end]
	case strings.HasPrefix(rhs, "JSON.parse("):
		rest := strings.TrimLeft(rhs[len("JSON.parse("):], " \t\r\n")
		lit, ok := readStringLiteral(rest)
		if !ok {
			return nil, false
		}
		unquoted, err := unquoteJS(lit)
		if err != nil {
			return nil, false
		}
		text = unquoted
	case rhs[0] == '"' || rhs[0] == '\'':
		lit, ok := readStringLiteral(rhs)
		if !ok {
			return nil, false
		}
		unquoted, err := unquoteJS(lit)
		if err != nil {
			return nil, false
		}
		text = strings.TrimSpace(unquoted)
		if text == "" || (text[0] != '{' && text[0] != '[') {
			return nil, false
		}
	default:
		return nil, false
	}

	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, true
	}
	if err := json5.Unmarshal([]byte(text), &v); err == nil {
		return v, true
	}
	return nil, false
}

// matchBracket returns the index just past the bracket closing s[0], skipping
// over string literals, or -1 when it is never closed.
func matchBracket(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\'', '`':
			lit, ok := readStringLiteral(s[i:])
			if !ok {
				return -1
			}
			i += len(lit) - 1
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// readStringLiteral returns the quoted literal starting at s[0], quotes included
func readStringLiteral(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	quote := s[0]
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return s[:i+1], true
		}
	}
	return "", false
}

// unquoteJS decodes a single- or double-quoted JavaScript string literal
func unquoteJS(lit string) (string, error) {
	if len(lit) < 2 {
		return "", fmt.Errorf("literal too short")
	}
	if lit[0] == '"' {
		var s string
		if err := json.Unmarshal([]byte(lit), &s); err == nil {
			return s, nil
		}
	}

	body := lit[1 : len(lit)-1]
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch {
		case ch == '\\' && i+1 < len(body):
			next := body[i+1]
			switch next {
			case '\'', '/':
				b.WriteByte(next)
			default:
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			i++
		case ch == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(ch)
		}
	}
	b.WriteByte('"')
	return strconv.Unquote(b.String())
}

// findPriceText returns the first element text that is exactly a price,
// falling back to a price found anywhere in the anchor text.
func findPriceText(a *goquery.Selection) string {
	var price string
	a.Find("*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if t := cleanText(el.Text()); exactPricePattern.MatchString(t) {
			price = t
			return false
		}
		return true
	})
	if price == "" {
		price = pricePattern.FindString(cleanText(a.Text()))
	}
	return strings.Join(strings.Fields(price), "")
}

const thumbnailAltSuffix = "のサムネイル"

func anchorTitle(a, img *goquery.Selection, price string) string {
	if name := cleanText(a.Find(`[data-testid="thumbnail-item-name"]`).First().Text()); name != "" {
		return name
	}
	for _, attr := range []string{"alt", "title"} {
		if v, ok := img.Attr(attr); ok {
			if v = cleanText(strings.TrimSuffix(strings.TrimSpace(v), thumbnailAltSuffix)); v != "" {
				return v
			}
		}
	}
	if v, ok := a.Attr("aria-label"); ok && cleanText(v) != "" {
		return cleanText(v)
	}
	text := cleanText(a.Text())
	text = cleanText(pricePattern.ReplaceAllString(text, ""))
	return text
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if srcset, ok := img.Attr("srcset"); ok {
		first, _, _ := strings.Cut(strings.TrimSpace(srcset), ",")
		if fields := strings.Fields(first); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// itemCollector enforces the item budget and keeps the first item seen per link
type itemCollector struct {
	limit int
	seen  map[string]struct{}
	items []domain.ProductItem
}

func newItemCollector(limit int) *itemCollector {
	return &itemCollector{limit: limit, seen: make(map[string]struct{})}
}

// Add records item unless its link was already seen. It reports whether
// there is room for more items.
func (c *itemCollector) Add(item domain.ProductItem) bool {
	if c.Full() {
		return false
	}
	if !item.Valid() {
		return true
	}
	if _, dup := c.seen[item.Link]; dup {
		return true
	}
	c.seen[item.Link] = struct{}{}
	c.items = append(c.items, item)
	return !c.Full()
}

func (c *itemCollector) Full() bool { return len(c.items) >= c.limit }

func (c *itemCollector) Len() int { return len(c.items) }

func (c *itemCollector) Items() []domain.ProductItem { return c.items }
