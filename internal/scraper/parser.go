// internal/scraper/parser.go
package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML page with the lookups providers need.
type Document struct {
	document *goquery.Document
	baseURL  string
	content  string
}

// NewDocument parses content. Relative links resolve against baseURL.
func NewDocument(content, baseURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{document: doc, baseURL: baseURL, content: content}, nil
}

// NewPageDocument parses a fetched page.
func NewPageDocument(p *Page) (*Document, error) {
	return NewDocument(p.HTML, p.URL)
}

// Content returns the raw HTML.
func (d *Document) Content() string { return d.content }

// Contains reports whether the page text contains s.
func (d *Document) Contains(s string) bool {
	return strings.Contains(d.document.Text(), s)
}

// Meta returns the content of the first meta tag whose property, name or
// itemprop equals key.
func (d *Document) Meta(key string) string {
	sel := fmt.Sprintf(`meta[property=%q], meta[name=%q], meta[itemprop=%q]`, key, key, key)
	v, _ := d.document.Find(sel).First().Attr("content")
	return strings.TrimSpace(v)
}

// Title returns og:title, falling back to the <title> element.
func (d *Document) Title() string {
	if t := d.Meta("og:title"); t != "" {
		return t
	}
	return strings.TrimSpace(d.document.Find("title").First().Text())
}

// DurationText returns the raw duration announced by the page metadata
// and whether it is ISO 8601 (itemprop) or plain seconds (music:duration).
func (d *Document) DurationText() (value string, iso bool) {
	if v := d.Meta("duration"); v != "" {
		return v, strings.HasPrefix(strings.ToUpper(v), "P")
	}
	for _, key := range []string{"music:duration", "video:duration", "og:video:duration"} {
		if v := d.Meta(key); v != "" {
			return v, false
		}
	}
	return "", false
}

// Links returns the absolute href of every anchor in document order.
func (d *Document) Links() []string {
	return d.linksIn(d.document.Selection)
}

// LinksInClasslessDivs returns links found inside div elements that carry
// no class attribute.
func (d *Document) LinksInClasslessDivs() []string {
	return d.linksIn(d.document.Find("div:not([class])"))
}

// LinksWithin returns links found inside elements matching selector.
func (d *Document) LinksWithin(selector string) []string {
	return d.linksIn(d.document.Find(selector))
}

func (d *Document) linksIn(sel *goquery.Selection) []string {
	var links []string
	sel.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href = strings.TrimSpace(href); href == "" || strings.HasPrefix(href, "#") {
			return
		}
		links = append(links, ResolveReference(d.baseURL, href))
	})
	return links
}

// CommentDocuments parses every HTML comment that contains marker as its
// own document. Some sites ship their content inside comments and reveal
// it with script.
func (d *Document) CommentDocuments(marker string) []*Document {
	var docs []*Document
	for _, n := range d.document.Nodes {
		walkComments(n, func(text string) {
			if marker != "" && !strings.Contains(text, marker) {
				return
			}
			if doc, err := NewDocument(text, d.baseURL); err == nil {
				docs = append(docs, doc)
			}
		})
	}
	return docs
}

func walkComments(n *html.Node, fn func(string)) {
	if n.Type == html.CommentNode {
		fn(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkComments(c, fn)
	}
}

var locationReplace = regexp.MustCompile(`document\.location\.replace\(\s*"((?:[^"\\]|\\.)*)"\s*\)`)

// ScriptRedirect returns the target of a document.location.replace("...")
// call in the page, with JavaScript string escapes removed.
func (d *Document) ScriptRedirect() string {
	m := locationReplace.FindStringSubmatch(d.content)
	if m == nil {
		return ""
	}
	return unescapeJS(m[1])
}

func unescapeJS(s string) string {
	s = strings.ReplaceAll(s, `\/`, "/")
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return strings.ReplaceAll(s, `\"`, `"`)
}
