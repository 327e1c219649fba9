package rewrite_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/pageview/internal/rewrite"
)

const base = "https://example.com/docs/page.html"

func process(t *testing.T, content string, opts rewrite.Options) *goquery.Document {
	t.Helper()
	out, err := rewrite.Process(content, base, opts)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	return doc
}

func TestProcessInsertsBaseAndStyle(t *testing.T) {
	doc := process(t, `<html><head><title>T</title></head><body></body></html>`, rewrite.Options{})

	head := doc.Find("head").Children()
	assert.Equal(t, "base", goquery.NodeName(head.Eq(0)))
	assert.Equal(t, base, head.Eq(0).AttrOr("href", ""))
	assert.Equal(t, "style", goquery.NodeName(head.Eq(1)))
	assert.Contains(t, head.Eq(1).Text(), "overflow-x: auto")
	assert.Equal(t, 1, doc.Find("base").Length())
}

func TestProcessFragmentGetsHead(t *testing.T) {
	doc := process(t, `<p>just a fragment</p>`, rewrite.Options{})

	assert.Equal(t, base, doc.Find("head base").AttrOr("href", ""))
	assert.Equal(t, "just a fragment", doc.Find("body p").Text())
}

func TestProcessResolvesRelativeLinks(t *testing.T) {
	doc := process(t, `<body>
		<a id="rel" href="other.html">a</a>
		<a id="root" href="/about">b</a>
		<a id="abs" href="https://other.example/x">c</a>
		<a id="proto" href="//cdn.example/x">d</a>
		<a id="frag" href="#top">e</a>
		<a id="js" href="javascript:void(0)">f</a>
		<a id="mail" href="mailto:a@example.com">g</a>
		<img id="img" src="../img/logo.png">
		<img id="data" src="data:image/png;base64,AAAA">
	</body>`, rewrite.Options{})

	tests := map[string]string{
		"rel":   "https://example.com/docs/other.html",
		"root":  "https://example.com/about",
		"abs":   "https://other.example/x",
		"proto": "//cdn.example/x",
		"frag":  "#top",
		"js":    "javascript:void(0)",
		"mail":  "mailto:a@example.com",
	}
	for id, want := range tests {
		assert.Equal(t, want, doc.Find("#"+id).AttrOr("href", ""), id)
	}
	assert.Equal(t, "https://example.com/img/logo.png", doc.Find("#img").AttrOr("src", ""))
	assert.Equal(t, "data:image/png;base64,AAAA", doc.Find("#data").AttrOr("src", ""))
}

func TestProcessHonoursDocumentBase(t *testing.T) {
	doc := process(t, `<html><head><base href="/v2/"></head><body><a href="guide">g</a></body></html>`, rewrite.Options{})

	assert.Equal(t, "https://example.com/v2/guide", doc.Find("a").AttrOr("href", ""))
	assert.Equal(t, 1, doc.Find("base").Length())
	assert.Equal(t, "https://example.com/v2/", doc.Find("base").AttrOr("href", ""))
}

func TestProcessStripsTargets(t *testing.T) {
	doc := process(t, `<body><a href="/x" target="_blank">x</a><form target="_top"></form></body>`, rewrite.Options{})

	assert.Zero(t, doc.Find("[target]").Length())
}

func TestProcessForms(t *testing.T) {
	doc := process(t, `<body><form action="search" method="get"><input name="q"></form><form></form></body>`, rewrite.Options{})

	forms := doc.Find("form")
	require.Equal(t, 2, forms.Length())

	first := forms.Eq(0)
	assert.Equal(t, "https://example.com/docs/search", first.AttrOr("data-original-action", ""))
	_, hasAction := first.Attr("action")
	assert.False(t, hasAction)
	assert.Equal(t, "return false;", first.AttrOr("onsubmit", ""))

	_, hasOriginal := forms.Eq(1).Attr("data-original-action")
	assert.False(t, hasOriginal)
	assert.Equal(t, "return false;", forms.Eq(1).AttrOr("onsubmit", ""))
}

func TestProcessRemovesFrameOptionsMeta(t *testing.T) {
	doc := process(t, `<html><head>
		<meta http-equiv="X-Frame-Options" content="deny">
		<meta http-equiv="content-type" content="text/html; charset=utf-8">
	</head></html>`, rewrite.Options{})

	metas := doc.Find("meta[http-equiv]")
	require.Equal(t, 1, metas.Length())
	assert.Equal(t, "content-type", metas.AttrOr("http-equiv", ""))
}

func TestProcessRemovesSourceMaps(t *testing.T) {
	out, err := rewrite.Process(`<html><head>
		<link rel="stylesheet" href="/css/app.css.map">
		<script src="/js/app.js.map"></script>
		<style>body{color:red}
/*# sourceMappingURL=app.css.map */</style>
		<script>var a = 1;
//# sourceMappingURL=app.js.map</script>
		<link rel="sitemap" href="/sitemap.xml">
	</head></html>`, base, rewrite.Options{})
	require.NoError(t, err)

	assert.NotContains(t, out, "sourceMappingURL")
	assert.NotContains(t, out, ".map\"")
	assert.Contains(t, out, "body{color:red}")
	assert.Contains(t, out, "var a = 1;")
	assert.Contains(t, out, "https://example.com/sitemap.xml")
}

func TestProcessDisableExternal(t *testing.T) {
	content := `<html><head>
		<link rel="stylesheet" href="/main.css">
		<link rel="icon" href="/favicon.ico">
		<script src="/app.js"></script>
		<script>inline()</script>
	</head></html>`

	kept := process(t, content, rewrite.Options{})
	assert.Equal(t, 2, kept.Find("script").Length())
	assert.Equal(t, 1, kept.Find(`link[rel="stylesheet"]`).Length())

	out, err := rewrite.Process(content, base, rewrite.Options{DisableExternal: true})
	require.NoError(t, err)
	assert.Contains(t, out, "<!-- script disabled: https://example.com/app.js -->")
	assert.Contains(t, out, "<!-- stylesheet disabled: https://example.com/main.css -->")
	assert.Contains(t, out, "inline()")
	assert.Contains(t, out, `href="https://example.com/favicon.ico"`)
}

func TestProcessKeepsUnicodeText(t *testing.T) {
	doc := process(t, `<body><p>こんにちは</p></body>`, rewrite.Options{})

	assert.Equal(t, "こんにちは", doc.Find("p").Text())
}

func TestProcessRejectsRelativeBase(t *testing.T) {
	_, err := rewrite.Process("<p>x</p>", "/relative", rewrite.Options{})

	assert.ErrorIs(t, err, rewrite.ErrInvalidBase)
}
