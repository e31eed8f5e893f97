package upstream

import (
	"strings"

	"github.com/listproxy/backend/internal/domain"
)

// itemPath is the upstream detail page of a listing
const itemPath = "/item/"

// MapPrimaryItems converts primary API items to product items.
// Links point at the upstream host; the caller routes them through the proxy.
func MapPrimaryItems(items []primaryItem, baseURL string) []domain.ProductItem {
	out := make([]domain.ProductItem, 0, len(items))
	for _, it := range items {
		item := domain.ProductItem{
			Title: strings.TrimSpace(it.Name),
			Price: domain.FormatPrice(it.Price),
			Image: first(it.Thumbnails),
			Link:  itemLink(baseURL, it.ID, ""),
		}
		if item.Valid() {
			out = append(out, item)
		}
	}
	return out
}

// MapSecondaryItems converts on-sale API items to product items
func MapSecondaryItems(items []secondaryItem, baseURL string) []domain.ProductItem {
	out := make([]domain.ProductItem, 0, len(items))
	for _, it := range items {
		item := domain.ProductItem{
			Title: strings.TrimSpace(it.Name),
			Price: domain.FormatPrice(it.Price),
			Image: first(it.Images),
			Link:  itemLink(baseURL, it.ID, it.ItemURL),
		}
		if item.Valid() {
			out = append(out, item)
		}
	}
	return out
}

func itemLink(baseURL, id, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if id = strings.TrimSpace(id); id == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + itemPath + id
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
