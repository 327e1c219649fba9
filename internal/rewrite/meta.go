package rewrite

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Meta is the page information shown alongside a rendered view.
type Meta struct {
	// Title tag content, whitespace-trimmed
	Title string

	// Language from html lang attribute
	Language string

	// Meta description
	Description string

	// href of the first <base> tag, unresolved
	BaseURL string

	// Charset declared in the document itself (<meta charset> or the
	// http-equiv Content-Type), informational only
	DeclaredCharset string
}

// ExtractMeta parses content and returns its page metadata. Malformed markup
// is tolerated the way browsers tolerate it.
func ExtractMeta(content string) (Meta, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return Meta{}, err
	}

	var meta Meta
	traverse(doc, &meta)
	return meta, nil
}

func traverse(n *html.Node, meta *Meta) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "html":
			meta.Language = getAttr(n, "lang")

		case "base":
			if meta.BaseURL == "" {
				meta.BaseURL = getAttr(n, "href")
			}

		case "title":
			// Only the first title counts; SVG titles appear later.
			if meta.Title == "" {
				meta.Title = strings.TrimSpace(getTextContent(n))
			}

		case "meta":
			parseMeta(n, meta)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		traverse(c, meta)
	}
}

func parseMeta(n *html.Node, meta *Meta) {
	name := strings.ToLower(getAttr(n, "name"))
	httpEquiv := strings.ToLower(getAttr(n, "http-equiv"))
	content := getAttr(n, "content")

	switch {
	case hasAttr(n, "charset"):
		meta.DeclaredCharset = strings.ToLower(strings.TrimSpace(getAttr(n, "charset")))
	case httpEquiv == "content-type":
		if _, after, ok := strings.Cut(strings.ToLower(content), "charset="); ok {
			meta.DeclaredCharset = strings.Trim(strings.TrimSpace(after), `"'`)
		}
	case name == "description":
		meta.Description = content
	}
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

func getTextContent(n *html.Node) string {
	var buf bytes.Buffer
	collectText(n, &buf)
	return buf.String()
}

func collectText(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf)
	}
}
