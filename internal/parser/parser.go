package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a parsed product document. It is never modified after parsing,
// so getters may run against it concurrently.
type Page struct {
	doc *goquery.Document
}

func NewPage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Page{doc: doc}, nil
}

func NewPageFromString(html string) (*Page, error) {
	return NewPage(strings.NewReader(html))
}

// text returns the normalised text of the first match, or false when nothing matches.
func (p *Page) text(selector string) (string, bool) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return normalize(sel.Text()), true
}

func (p *Page) attr(selector, name string) (string, bool) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Attr(name)
}

func (p *Page) each(selector string, fn func(*goquery.Selection)) {
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		fn(s)
	})
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
