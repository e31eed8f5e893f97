package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/listproxy/backend/internal/domain"
)

//go:embed data/fallback.json data/brands/*.json
var bundled embed.FS

const (
	bundledDataset  = "data/fallback.json"
	bundledBrandDir = "data/brands"
)

// Catalog holds the static fallback listings. It is built once at startup
// and only read afterwards, so it is safe for concurrent use.
type Catalog struct {
	items  []domain.ProductItem
	brands map[string][]domain.ProductItem
}

// record accepts both the plain listing shape and the brand export shape
// ({id, title, href, price, priceText, image: {src, alt}}).
type record struct {
	Title     string      `json:"title"`
	Name      string      `json:"name"`
	Link      string      `json:"link"`
	Href      string      `json:"href"`
	URL       string      `json:"url"`
	Price     interface{} `json:"price"`
	PriceText string      `json:"priceText"`
	Image     interface{} `json:"image"`
}

// Load reads the generic dataset and the brand datasets. Empty paths fall
// back to the datasets bundled with the binary; files in brandDir override
// bundled brands with the same key.
func Load(datasetPath, brandDir string) (*Catalog, error) {
	c := &Catalog{brands: make(map[string][]domain.ProductItem)}

	var (
		raw []byte
		err error
	)
	if datasetPath == "" {
		raw, err = bundled.ReadFile(bundledDataset)
	} else {
		raw, err = os.ReadFile(datasetPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read fallback dataset: %w", err)
	}
	if c.items, err = decode(raw); err != nil {
		return nil, fmt.Errorf("decode fallback dataset: %w", err)
	}

	if err := c.loadBrands(bundled, bundledBrandDir); err != nil {
		return nil, err
	}
	if brandDir != "" {
		if err := c.loadBrands(os.DirFS(brandDir), "."); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadBrands(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read brand datasets: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read brand dataset %s: %w", entry.Name(), err)
		}
		items, err := decode(raw)
		if err != nil {
			return fmt.Errorf("decode brand dataset %s: %w", entry.Name(), err)
		}
		c.brands[BrandKey(strings.TrimSuffix(entry.Name(), ".json"))] = items
	}
	return nil
}

// Brand returns the dataset of a brand, matched by BrandKey
func (c *Catalog) Brand(brand string) ([]domain.ProductItem, bool) {
	items, ok := c.brands[BrandKey(brand)]
	if !ok || len(items) == 0 {
		return nil, false
	}
	return append([]domain.ProductItem(nil), items...), true
}

// Filter returns generic items whose title contains term, ignoring case
func (c *Catalog) Filter(term string) []domain.ProductItem {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]domain.ProductItem, 0, len(c.items))
	for _, item := range c.items {
		if term == "" || strings.Contains(strings.ToLower(item.Title), term) {
			out = append(out, item)
		}
	}
	return out
}

// Brands lists the known brand keys
func (c *Catalog) Brands() []string {
	keys := make([]string, 0, len(c.brands))
	for k := range c.brands {
		keys = append(keys, k)
	}
	return keys
}

// BrandKey folds a brand name to its dataset key: lower case, with every run
// of non-alphanumeric characters replaced by a single hyphen.
func BrandKey(brand string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(brand)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

func decode(raw []byte) ([]domain.ProductItem, error) {
	var records []record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	items := make([]domain.ProductItem, 0, len(records))
	for _, r := range records {
		item := r.toItem()
		if item.Valid() {
			items = append(items, item)
		}
	}
	return items, nil
}

func (r record) toItem() domain.ProductItem {
	item := domain.ProductItem{
		Title: firstNonEmpty(r.Title, r.Name),
		Link:  firstNonEmpty(r.Link, r.Href, r.URL),
		Price: strings.TrimSpace(r.PriceText),
	}
	if item.Price == "" {
		item.Price = domain.FormatPrice(r.Price)
	}
	switch img := r.Image.(type) {
	case string:
		item.Image = strings.TrimSpace(img)
	case map[string]interface{}:
		if src, ok := img["src"].(string); ok {
			item.Image = strings.TrimSpace(src)
		} else if u, ok := img["url"].(string); ok {
			item.Image = strings.TrimSpace(u)
		}
	}
	return item
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
