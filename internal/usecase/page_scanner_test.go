package usecase

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/listproxy/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const anchorPage = `<!DOCTYPE html>
<html><head><title>Listings</title></head>
<body>
  <nav><a href="/about"><img src="/logo.png" alt="logo"></a></nav>
  <ul>
    <li><a href="/item/m1"><img src="https://shop.example/thumb/m1.jpg" alt="Leather Bag のサムネイル"><span>¥12,000</span></a></li>
    <li><a href="https://shop.example/item/m1"><img src="/thumb/m1b.jpg" alt="Leather Bag again"><span>¥12,000</span></a></li>
    <li><a href="/item/m2">
      <img data-src="/thumb/m2.jpg" alt="">
      <span data-testid="thumbnail-item-name">Wallet</span>
      <span>3,500 円</span>
    </a></li>
    <li><a href="/item/m3" aria-label="Scarf"><img srcset="/thumb/m3.jpg 1x, /thumb/m3@2x.jpg 2x"><p>Only ¥900 today</p></a></li>
  </ul>
  <script id="__NEXT_DATA__" type="application/json">{"props":{"items":[{"name":"Ignored","price":1,"image":"/x.jpg","url":"/item/x"}]}}</script>
</body></html>`

func TestPageScanner_Anchors(t *testing.T) {
	scanner := NewPageScanner(NewRewriteContext(testBaseURL, "/proxy"), nil)

	items, err := scanner.Scan([]byte(anchorPage), 10)
	require.NoError(t, err)

	want := []domain.ProductItem{
		{Title: "Leather Bag", Price: "¥12,000", Image: "/proxy?path=%2Fthumb%2Fm1.jpg", Link: "/proxy?path=%2Fitem%2Fm1"},
		{Title: "Wallet", Price: "3,500円", Image: "/proxy?path=%2Fthumb%2Fm2.jpg", Link: "/proxy?path=%2Fitem%2Fm2"},
		{Title: "Scarf", Price: "¥900", Image: "/proxy?path=%2Fthumb%2Fm3.jpg", Link: "/proxy?path=%2Fitem%2Fm3"},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
}

func TestPageScanner_AnchorLimit(t *testing.T) {
	scanner := NewPageScanner(NewRewriteContext(testBaseURL, "/proxy"), nil)

	items, err := scanner.Scan([]byte(anchorPage), 2)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "Leather Bag", items[0].Title)
	assert.Equal(t, "Wallet", items[1].Title)
}

func TestPageScanner_NextData(t *testing.T) {
	scanner := NewPageScanner(NewRewriteContext(testBaseURL, "/proxy"), nil)
	page := `<html><body><div id="__next"></div>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"search":{"items":[
  {"id":"m10","name":"Trench Coat","price":25000,"thumbnails":["https://shop.example/c/m10.jpg"],"url":"https://shop.example/item/m10"},
  {"id":"m11","name":"Trench Coat copy","price":25000,"thumbnails":["https://shop.example/c/m11.jpg"],"url":"https://shop.example/item/m10"}
]}}}}
</script></body></html>`

	items, err := scanner.Scan([]byte(page), 10)
	require.NoError(t, err)

	want := []domain.ProductItem{
		{Title: "Trench Coat", Price: "25,000円", Image: "/proxy?path=%2Fc%2Fm10.jpg", Link: "/proxy?path=%2Fitem%2Fm10"},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
}

func TestPageScanner_InlineScripts(t *testing.T) {
	scanner := NewPageScanner(NewRewriteContext(testBaseURL, "/proxy"), nil)

	t.Run("object literal", func(t *testing.T) {
		page := `<html><body>
<script src="/bundle.js"></script>
<script>
  var unrelated = 1;
  window.__INITIAL_STATE__ = {items: [{name: 'Hat', price: '¥800', image: '/h.jpg', link: '/item/h1'}]};
</script></body></html>`

		items, err := scanner.Scan([]byte(page), 10)
		require.NoError(t, err)

		require.Len(t, items, 1)
		assert.Equal(t, domain.ProductItem{
			Title: "Hat", Price: "¥800", Image: "/proxy?path=%2Fh.jpg", Link: "/proxy?path=%2Fitem%2Fh1",
		}, items[0])
	})

	t.Run("JSON.parse string", func(t *testing.T) {
		page := `<html><body><script>self.__STATE__=JSON.parse("{\"list\":[{\"title\":\"Scarf\",\"price_label\":\"¥1,200\",\"images\":[\"/s.jpg\"],\"item_url\":\"/item/s1\"}]}")</script></body></html>`

		items, err := scanner.Scan([]byte(page), 10)
		require.NoError(t, err)

		require.Len(t, items, 1)
		assert.Equal(t, "Scarf", items[0].Title)
		assert.Equal(t, "¥1,200", items[0].Price)
		assert.Equal(t, "/proxy?path=%2Fitem%2Fs1", items[0].Link)
	})

	t.Run("nothing recognizable", func(t *testing.T) {
		page := `<html><body><script>window.__FLAGS__ = someFunction();</script><p>Sold out</p></body></html>`

		items, err := scanner.Scan([]byte(page), 10)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestDecodeAssignment(t *testing.T) {
	tests := []struct {
		name   string
		rhs    string
		wantOK bool
	}{
		{"json object", `{"a":1};`, true},
		{"json array", `[1, 2, 3]`, true},
		{"json5 object", `{a: 'b', c: [1]}`, true},
		{"braces inside strings", `{"a":"}{"};`, true},
		{"JSON.parse double quoted", `JSON.parse("{\"a\":1}")`, true},
		{"JSON.parse single quoted", `JSON.parse('{"a":1}')`, true},
		{"quoted json", `'[{"a":1}]';`, true},
		{"quoted text", `"hello"`, false},
		{"number", `42;`, false},
		{"function call", `init({a:1})`, false},
		{"comparison", `== 1`, false},
		{"unterminated", `{"a":1`, false},
		{"empty", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := decodeAssignment(tt.rhs)
			if ok != tt.wantOK {
				t.Errorf("decodeAssignment(%q) ok = %v, want %v", tt.rhs, ok, tt.wantOK)
			}
		})
	}
}
