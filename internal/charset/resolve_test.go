package charset

import (
	"bytes"
	"math/rand"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// こんにちは
	helloShiftJIS = []byte{0x82, 0xB1, 0x82, 0xF1, 0x82, 0xC9, 0x82, 0xBF, 0x82, 0xCD}
	helloEUCJP    = []byte{0xA4, 0xB3, 0xA4, 0xF3, 0xA4, 0xCB, 0xA4, 0xC1, 0xA4, 0xCF}
	// あいう; every byte falls in 0xA1-0xDF so no Shift_JIS lead byte appears.
	aiuEUCJP = []byte{0xA4, 0xA2, 0xA4, 0xA4, 0xA4, 0xA6}
)

func TestParseCharset(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
		ok          bool
	}{
		{"simple", "text/html; charset=Shift_JIS", "shift_jis", true},
		{"upper key and spaces", "text/html;CHARSET= UTF-8 ; foo=bar", "utf-8", true},
		{"quoted", `text/html; charset="EUC-JP"`, "euc-jp", true},
		{"prefixed parameter name ignored", "text/html; x-charset=shift_jis; charset=euc-jp", "euc-jp", true},
		{"only prefixed parameter", "text/html; x-charset=shift_jis", "", false},
		{"no parameter", "text/html", "", false},
		{"empty value", "text/html; charset=", "", false},
		{"empty header", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCharset(tt.contentType)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup(t *testing.T) {
	tests := map[string]Encoding{
		"utf-8":        UTF8,
		"utf8":         UTF8,
		"shift_jis":    ShiftJIS,
		"shift-jis":    ShiftJIS,
		"sjis":         ShiftJIS,
		"euc-jp":       EUCJP,
		"eucjp":        EUCJP,
		"iso-2022-jp":  ISO2022JP,
		"windows-1252": Windows1252,
		"cp1252":       Windows1252,
		"iso-8859-1":   Windows1252,
		"latin1":       Windows1252,
	}
	for label, want := range tests {
		got, ok := Lookup(label)
		require.True(t, ok, label)
		assert.Equal(t, want, got, label)
	}

	_, ok := Lookup("koi8-r")
	assert.False(t, ok)
}

func TestResolveValidUTF8IgnoresDeclaredCharset(t *testing.T) {
	body := []byte("<p>日本語 text</p>")

	res := Resolve(body, "text/html; charset=Shift_JIS")

	assert.Equal(t, string(body), res.Text)
	assert.Equal(t, UTF8, res.Encoding)
	assert.Equal(t, SourceValidUTF8, res.Source)
	assert.False(t, res.Replaced)
}

func TestResolveDeclaredShiftJIS(t *testing.T) {
	res := Resolve(helloShiftJIS, "text/html; charset=Shift_JIS")

	assert.Equal(t, "こんにちは", res.Text)
	assert.Equal(t, ShiftJIS, res.Encoding)
	assert.Equal(t, SourceHeader, res.Source)
	assert.False(t, res.Replaced)
}

func TestResolveDeclaredEUCJP(t *testing.T) {
	assert.Equal(t, "こんにちは", ResolveAndDecode(helloEUCJP, "text/html; charset=EUC-JP"))
}

func TestResolveDeclaredLatin1(t *testing.T) {
	res := Resolve([]byte("caf\xe9"), "text/plain; charset=ISO-8859-1")

	assert.Equal(t, "café", res.Text)
	assert.Equal(t, Windows1252, res.Encoding)
}

func TestResolveLatin1UndefinedBytesAreNotReplaced(t *testing.T) {
	res := Resolve([]byte{'a', 0x81, 0x8D, 0x8F, 0x90, 0x9D, 0x80}, "text/plain; charset=latin1")

	assert.Equal(t, "a\u0081\u008D\u008F\u0090\u009D€", res.Text)
	assert.False(t, res.Replaced)
}

func TestResolveUnknownCharsetFallsBackToHeuristics(t *testing.T) {
	res := Resolve(helloShiftJIS, "text/html; charset=koi8-r")

	assert.Equal(t, ShiftJIS, res.Encoding)
	assert.Equal(t, SourceHeuristic, res.Source)
	assert.Equal(t, "こんにちは", res.Text)
}

func TestResolveHeuristicShiftJIS(t *testing.T) {
	res := Resolve(helloShiftJIS, "text/html")

	assert.Equal(t, ShiftJIS, res.Encoding)
	assert.Equal(t, "こんにちは", res.Text)
}

func TestResolveHeuristicEUCJP(t *testing.T) {
	res := Resolve(aiuEUCJP, "")

	assert.Equal(t, EUCJP, res.Encoding)
	assert.Equal(t, SourceHeuristic, res.Source)
	assert.Equal(t, "あいう", res.Text)
}

func TestResolveDefaultsToLossyUTF8(t *testing.T) {
	res := Resolve([]byte("caf\xe9"), "")

	assert.Equal(t, UTF8, res.Encoding)
	assert.Equal(t, SourceDefault, res.Source)
	assert.Equal(t, "caf\uFFFD", res.Text)
	assert.True(t, res.Replaced)
}

func TestDetectBOM(t *testing.T) {
	enc, src := Detect([]byte{0xEF, 0xBB, 0xBF, 'a', 0xFF})
	assert.Equal(t, UTF8, enc)
	assert.Equal(t, SourceBOM, src)

	enc, src = Detect([]byte{0xFF, 0xFE, 'H', 0x00})
	assert.Equal(t, UTF16LE, enc)
	assert.Equal(t, SourceBOM, src)

	// Big-endian BOM is reported as little-endian as well.
	enc, src = Detect([]byte{0xFE, 0xFF, 0x00, 'H'})
	assert.Equal(t, UTF16LE, enc)
	assert.Equal(t, SourceBOM, src)
}

func TestResolveUTF16LEStripsBOM(t *testing.T) {
	body := []byte{0xFF, 0xFE, 'H', 0x00, 'i', 0x00}

	res := Resolve(body, "")

	assert.Equal(t, UTF16LE, res.Encoding)
	assert.Equal(t, "Hi", res.Text)
}

func TestDetectPrefersShiftJISOverEUCJP(t *testing.T) {
	// The EUC-JP bytes for こんにちは contain F3 A4, which is a valid
	// Shift_JIS lead/trail pair.
	enc, src := Detect(helloEUCJP)
	assert.Equal(t, ShiftJIS, enc)
	assert.Equal(t, SourceHeuristic, src)
}

func TestDetectWindowBound(t *testing.T) {
	outside := append(bytes.Repeat([]byte("a"), DetectWindow), 0x82, 0xB1)
	enc, src := Detect(outside)
	assert.Equal(t, UTF8, enc)
	assert.Equal(t, SourceDefault, src)

	inside := append(bytes.Repeat([]byte("a"), DetectWindow-2), 0x82, 0xB1)
	enc, _ = Detect(inside)
	assert.Equal(t, ShiftJIS, enc)
}

func TestResolveNeverFails(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		body := make([]byte, rng.Intn(256))
		rng.Read(body)
		text := ResolveAndDecode(body, "")
		assert.True(t, utf8.ValidString(text), "iteration %d", i)
	}

	for b := 0; b < 256; b++ {
		for _, ct := range []string{"", "text/html; charset=iso-2022-jp", "text/html; charset=utf-8"} {
			text := ResolveAndDecode([]byte{byte(b), 0x1B, '$', 'B', byte(b)}, ct)
			assert.True(t, utf8.ValidString(text))
		}
	}
}

func TestDecodeEveryEncoding(t *testing.T) {
	for _, enc := range []Encoding{UTF8, UTF16LE, ShiftJIS, EUCJP, ISO2022JP, Windows1252} {
		text, _ := Decode([]byte{0x80, 0xFF, 0x1B, 0x41, 0x00}, enc)
		assert.True(t, utf8.ValidString(text), enc.String())
	}
}

func TestEncodingString(t *testing.T) {
	assert.Equal(t, "shift_jis", ShiftJIS.String())
	assert.Equal(t, "utf-16le", UTF16LE.String())
	assert.Equal(t, "unknown", Encoding(99).String())
	assert.Equal(t, "heuristic", SourceHeuristic.String())
}
