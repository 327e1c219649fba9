// Package rewrite prepares fetched HTML for display inside the host shell:
// links are made absolute, navigation is kept in-app, and references that
// cannot load from a detached document are neutralised.
package rewrite

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrInvalidBase is returned when the base URL is not absolute.
var ErrInvalidBase = errors.New("base URL must be absolute")

// viewportStyle keeps the document scrollable inside an embedded frame.
const viewportStyle = "html, body { margin: 0; padding: 0; overflow-x: auto; height: auto !important; }"

var (
	cssSourceMap = regexp.MustCompile(`(?i)/\*\s*[#@]\s*sourceMappingURL=[^*]*\*/`)
	jsSourceMap  = regexp.MustCompile(`(?i)//\s*[#@]\s*sourceMappingURL=[^\r\n]*`)
)

// Options controls Process.
type Options struct {
	// Replace external scripts and stylesheets with comments.
	DisableExternal bool
}

// Process rewrites content for display as if it had been loaded from
// baseURL.
func Process(content, baseURL string, opts Options) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBase, baseURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// A <base> in the page still decides how its own relative links resolve.
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	doc.Find("base").Remove()

	doc.Find("meta[http-equiv]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.EqualFold(strings.TrimSpace(s.AttrOr("http-equiv", "")), "x-frame-options")
	}).Remove()

	removeSourceMaps(doc)

	resolveAttr(doc, "href", base)
	resolveAttr(doc, "src", base)

	doc.Find("[target]").RemoveAttr("target")

	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		if action, ok := s.Attr("action"); ok {
			s.SetAttr("data-original-action", resolve(base, action))
			s.RemoveAttr("action")
		}
		s.SetAttr("onsubmit", "return false;")
	})

	if opts.DisableExternal {
		disableExternal(doc)
	}

	doc.Find("head").First().PrependNodes(baseNode(base.String()), styleNode())

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return out, nil
}

// resolveAttr makes every relative attr value absolute.
func resolveAttr(doc *goquery.Document, attr string, base *url.URL) {
	doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
		val, _ := s.Attr(attr)
		if resolved := resolve(base, val); resolved != val {
			s.SetAttr(attr, resolved)
		}
	})
}

// resolve returns ref resolved against base, or ref unchanged when it is
// already absolute, protocol-relative, a fragment, or carries its own scheme
// (javascript:, data:, mailto: and so on).
func resolve(base *url.URL, ref string) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
		return ref
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme != "" {
		return ref
	}
	return base.ResolveReference(u).String()
}

// removeSourceMaps drops elements that load .map files and strips
// sourceMappingURL pragmas from inline styles and scripts.
func removeSourceMaps(doc *goquery.Document) {
	doc.Find("link[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isSourceMap(s.AttrOr("href", ""))
	}).Remove()
	doc.Find("script[src]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isSourceMap(s.AttrOr("src", ""))
	}).Remove()

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if text := s.Text(); cssSourceMap.MatchString(text) {
			s.SetText(cssSourceMap.ReplaceAllString(text, ""))
		}
	})
	doc.Find("script").Not("[src]").Each(func(_ int, s *goquery.Selection) {
		if text := s.Text(); jsSourceMap.MatchString(text) {
			s.SetText(jsSourceMap.ReplaceAllString(text, ""))
		}
	})
}

func isSourceMap(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return strings.Contains(strings.ToLower(ref), ".map")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".map")
}

// disableExternal swaps external scripts and stylesheets for comments naming
// what was removed.
func disableExternal(doc *goquery.Document) {
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(commentNode("script disabled: " + s.AttrOr("src", "")))
	})
	doc.Find("link[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		for _, rel := range strings.Fields(s.AttrOr("rel", "")) {
			if strings.EqualFold(rel, "stylesheet") {
				return true
			}
		}
		return false
	}).Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(commentNode("stylesheet disabled: " + s.AttrOr("href", "")))
	})
}

func baseNode(href string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Base,
		Data:     "base",
		Attr:     []html.Attribute{{Key: "href", Val: href}},
	}
}

func styleNode() *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: atom.Style, Data: "style"}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: viewportStyle})
	return n
}

func commentNode(text string) *html.Node {
	// "--" would end the comment early.
	return &html.Node{Type: html.CommentNode, Data: " " + strings.ReplaceAll(text, "--", "- -") + " "}
}
