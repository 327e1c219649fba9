package charset

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// DetectWindow is how many leading bytes the double-byte heuristics inspect.
const DetectWindow = 1000

const replacement = "\uFFFD"

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Result is the outcome of resolving and decoding a body.
type Result struct {
	Text     string
	Encoding Encoding
	Source   Source
	// Replaced is set when the decoded text contains U+FFFD.
	Replaced bool
}

// ResolveAndDecode returns body as Unicode text. It never fails.
func ResolveAndDecode(body []byte, contentType string) string {
	return Resolve(body, contentType).Text
}

// Resolve picks an encoding for body and decodes it.
func Resolve(body []byte, contentType string) Result {
	if utf8.Valid(body) {
		return Result{Text: string(body), Encoding: UTF8, Source: SourceValidUTF8}
	}

	enc, source := UTF8, SourceHeader
	label, ok := ParseCharset(contentType)
	if ok {
		enc, ok = Lookup(label)
	}
	if !ok {
		enc, source = Detect(body)
	}

	text, replaced := Decode(body, enc)
	return Result{Text: text, Encoding: enc, Source: source, Replaced: replaced}
}

// ParseCharset extracts the charset parameter from a Content-Type value.
// Only a parameter named exactly charset matches; the returned label is
// trimmed, unquoted and lower-cased.
func ParseCharset(contentType string) (string, bool) {
	for _, param := range strings.Split(contentType, ";") {
		param = strings.TrimSpace(param)
		if len(param) < len("charset=") || !strings.EqualFold(param[:len("charset=")], "charset=") {
			continue
		}

		value := strings.TrimSpace(param[len("charset="):])
		value = strings.Trim(value, `"`)
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}

// Detect guesses the encoding of body from byte-order marks and the
// Shift_JIS / EUC-JP byte windows, defaulting to UTF-8.
//
// FE FF is reported as UTF16LE like FF FE; big-endian input is not
// distinguished.
func Detect(body []byte) (Encoding, Source) {
	switch {
	case bytes.HasPrefix(body, bomUTF8):
		return UTF8, SourceBOM
	case bytes.HasPrefix(body, bomUTF16LE), bytes.HasPrefix(body, bomUTF16BE):
		return UTF16LE, SourceBOM
	}

	window := body
	if len(window) > DetectWindow {
		window = window[:DetectWindow]
	}

	if hasPair(window, isShiftJISPair) {
		return ShiftJIS, SourceHeuristic
	}
	if hasPair(window, isEUCJPPair) {
		return EUCJP, SourceHeuristic
	}
	return UTF8, SourceDefault
}

func hasPair(window []byte, match func(a, b byte) bool) bool {
	for i := 0; i+1 < len(window); i++ {
		if match(window[i], window[i+1]) {
			return true
		}
	}
	return false
}

func isShiftJISPair(a, b byte) bool {
	lead := (a >= 0x81 && a <= 0x9F) || (a >= 0xE0 && a <= 0xFC)
	trail := (b >= 0x40 && b <= 0x7E) || (b >= 0x80 && b <= 0xFC)
	return lead && trail
}

func isEUCJPPair(a, b byte) bool {
	return a >= 0xA1 && a <= 0xFE && b >= 0xA1 && b <= 0xFE
}

// Decode converts body to a string using enc. Malformed input is replaced
// with U+FFFD; the boolean reports whether any replacement character is
// present in the output.
func Decode(body []byte, enc Encoding) (string, bool) {
	if enc == Windows1252 {
		return decodeWindows1252(body), false
	}

	out, err := enc.decoder().Bytes(body)
	if err != nil {
		text := strings.ToValidUTF8(string(body), replacement)
		return text, true
	}

	text := string(out)
	if enc == UTF16LE {
		text = strings.TrimPrefix(text, "\uFEFF")
	}
	return text, strings.Contains(text, replacement)
}
