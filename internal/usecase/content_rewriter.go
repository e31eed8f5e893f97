package usecase

import (
	"bytes"
	"html"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// attribute values are only ever matched inside a single tag token
	attrURLPattern = regexp.MustCompile(`(?i)(\s(?:href|src|action)\s*=\s*)(?:"([^"]*)"|'([^']*)')`)
	cssURLPattern  = regexp.MustCompile(`(?i)url\(\s*(?:"([^"]*)"|'([^']*)'|([^)"']*?))\s*\)`)
)

// RewriteHTML routes href, src and action attributes back through the proxy and
// injects a <base> tag after the first <head> when the document has none.
// Bytes outside rewritten attribute values are copied through unchanged.
// Input that is not valid UTF-8 is returned as is.
func (rc *RewriteContext) RewriteHTML(src []byte) []byte {
	if !utf8.Valid(src) {
		return src
	}

	z := nethtml.NewTokenizer(bytes.NewReader(src))
	var out bytes.Buffer
	out.Grow(len(src) + 64)

	headEnd := -1
	hasBase := false
	inStyle := false
	consumed := 0

	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			if z.Err() != io.EOF || consumed > len(src) {
				return src
			}
			// a tag cut off by EOF is never emitted as a token
			out.Write(src[consumed:])
			break
		}
		raw := string(z.Raw())
		consumed += len(raw)

		switch tt {
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Base:
				hasBase = true
				out.WriteString(raw)
			case atom.Head:
				out.WriteString(rc.rewriteTag(raw))
				if headEnd < 0 {
					headEnd = out.Len()
				}
			case atom.Style:
				inStyle = tt == nethtml.StartTagToken
				out.WriteString(rc.rewriteTag(raw))
			default:
				out.WriteString(rc.rewriteTag(raw))
			}
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Style {
				inStyle = false
			}
			out.WriteString(raw)
		case nethtml.TextToken:
			if inStyle {
				out.WriteString(rc.RewriteCSS(raw))
			} else {
				out.WriteString(raw)
			}
		default:
			out.WriteString(raw)
		}
	}

	result := out.Bytes()
	if headEnd < 0 || hasBase {
		return result
	}

	tag := `<base href="` + html.EscapeString(rc.BaseURL) + `">`
	withBase := make([]byte, 0, len(result)+len(tag))
	withBase = append(withBase, result[:headEnd]...)
	withBase = append(withBase, tag...)
	withBase = append(withBase, result[headEnd:]...)
	return withBase
}

// rewriteTag rewrites the quoted URL attributes of a single raw start tag
func (rc *RewriteContext) rewriteTag(tag string) string {
	matches := attrURLPattern.FindAllStringSubmatchIndex(tag, -1)
	if len(matches) == 0 {
		return tag
	}

	var b strings.Builder
	b.Grow(len(tag) + 32)
	last := 0
	for _, m := range matches {
		// m[2:4] prefix, m[4:6] double-quoted value, m[6:8] single-quoted value
		quote := `"`
		start, end := m[4], m[5]
		if start < 0 {
			quote = `'`
			start, end = m[6], m[7]
		}
		value := tag[start:end]
		rewritten := rc.Rewrite(html.UnescapeString(value))
		if rewritten == html.UnescapeString(value) {
			continue
		}
		b.WriteString(tag[last:m[0]])
		b.WriteString(tag[m[2]:m[3]])
		b.WriteString(quote)
		b.WriteString(html.EscapeString(rewritten))
		b.WriteString(quote)
		last = m[1]
	}
	b.WriteString(tag[last:])
	return b.String()
}

// RewriteCSS routes every url(...) reference in a stylesheet through the proxy.
// References that stay untouched keep their original spelling.
func (rc *RewriteContext) RewriteCSS(css string) string {
	return cssURLPattern.ReplaceAllStringFunc(css, func(match string) string {
		groups := cssURLPattern.FindStringSubmatch(match)
		ref := groups[1]
		if ref == "" {
			ref = groups[2]
		}
		if ref == "" {
			ref = groups[3]
		}
		rewritten := rc.Rewrite(ref)
		if rewritten == ref {
			return match
		}
		return "url(" + rewritten + ")"
	})
}
