package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Document is a parsed storefront page shared by every strategy of one
// pipeline run. Strategies only read from it.
type Document struct {
	doc *goquery.Document
}

// ParseDocument parses UTF-8 markup.
func ParseDocument(markup string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// NewDocument reads markup from r, decoding it to UTF-8 using the charset
// declared in contentType or sniffed from the content.
func NewDocument(r io.Reader, contentType string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		decoded = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Scripts returns the text payload of every inline script, in document order.
func (d *Document) Scripts() []string {
	var out []string
	d.doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if text := s.Text(); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// VisibleText flattens the document to the text a reader would see: script,
// style and template contents are dropped and block elements end a line.
func (d *Document) VisibleText() string {
	var b strings.Builder
	for _, n := range d.doc.Nodes {
		collectText(&b, n)
	}
	return b.String()
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "head":
			return
		case "br":
			b.WriteByte('\n')
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}

	if n.Type == html.ElementNode && isBlock(n.Data) {
		b.WriteByte('\n')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "ol", "tr", "table", "section", "article",
		"header", "footer", "h1", "h2", "h3", "h4", "h5", "h6", "dd", "dt":
		return true
	}
	return false
}

// text returns the trimmed text of the first node in s.
func text(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(s.First().Text())
}
