package usecase

import (
	"sort"
	"strings"

	"github.com/listproxy/backend/internal/domain"
)

// Keys that mark an object as a product record
var (
	nameKeys  = []string{"name", "title", "productName"}
	priceKeys = []string{"price", "priceLabel", "price_label"}
	imageKeys = []string{"thumbnails", "images", "image"}
	linkKeys  = []string{"url", "link", "itemUrl", "item_url"}
)

// StructuredExtractor finds product-shaped records in decoded JSON of unknown shape
type StructuredExtractor struct {
	rc *RewriteContext
}

// NewStructuredExtractor creates an extractor that rewrites links and images with rc
func NewStructuredExtractor(rc *RewriteContext) *StructuredExtractor {
	return &StructuredExtractor{rc: rc}
}

// Extract returns at most max normalized items found under root.
func (e *StructuredExtractor) Extract(root interface{}, max int) []domain.ProductItem {
	if max <= 0 {
		return nil
	}
	var items []domain.ProductItem
	e.Walk(root, func(item domain.ProductItem) bool {
		items = append(items, item)
		return len(items) < max
	})
	return items
}

// Walk traverses root depth-first with an explicit stack and calls visit for
// every qualifying record that normalizes to a valid item. A qualifying object
// is never descended into. Walk stops as soon as visit returns false.
//
// Array elements are visited in document order and object members in key
// order, so results are deterministic for a given input.
func (e *StructuredExtractor) Walk(root interface{}, visit func(domain.ProductItem) bool) {
	stack := []interface{}{root}

	for len(stack) > 0 {
		top := len(stack) - 1
		node := stack[top]
		stack = stack[:top]

		switch v := node.(type) {
		case map[string]interface{}:
			if isProductRecord(v) {
				if item, ok := e.normalize(v); ok && !visit(item) {
					return
				}
				continue
			}
			keys := make([]string, 0, len(v))
			for k, child := range v {
				if isContainer(child) {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, v[keys[i]])
			}
		case []interface{}:
			for i := len(v) - 1; i >= 0; i-- {
				if isContainer(v[i]) {
					stack = append(stack, v[i])
				}
			}
		}
	}
}

func isContainer(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return true
	}
	return false
}

func isProductRecord(obj map[string]interface{}) bool {
	return hasAnyKey(obj, nameKeys) && hasAnyKey(obj, priceKeys) && hasAnyKey(obj, imageKeys)
}

func hasAnyKey(obj map[string]interface{}, keys []string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// normalize maps a qualifying record onto ProductItem; ok is false when the
// record lacks a title, link or image.
func (e *StructuredExtractor) normalize(obj map[string]interface{}) (domain.ProductItem, bool) {
	item := domain.ProductItem{
		Title: cleanText(pickString(obj, nameKeys...)),
		Link:  pickString(obj, linkKeys...),
	}
	for _, k := range imageKeys {
		if v, ok := obj[k]; ok {
			if item.Image = firstImage(v); item.Image != "" {
				break
			}
		}
	}
	for _, k := range priceKeys {
		if v, ok := obj[k]; ok {
			if item.Price = domain.FormatPrice(v); item.Price != "" {
				break
			}
		}
	}

	if item.Title == "" || item.Link == "" || item.Image == "" {
		return domain.ProductItem{}, false
	}

	item.Link = e.rc.Rewrite(item.Link)
	item.Image = e.rc.Rewrite(item.Image)
	return item, true
}

// pickString returns the first non-empty string stored under one of keys
func pickString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstImage unwraps an image field: a URL string, a list of them, or an
// object carrying the URL under "url" or "src".
func firstImage(v interface{}) string {
	switch img := v.(type) {
	case string:
		return strings.TrimSpace(img)
	case []interface{}:
		if len(img) > 0 {
			return firstImage(img[0])
		}
	case map[string]interface{}:
		return pickString(img, "url", "src")
	}
	return ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
