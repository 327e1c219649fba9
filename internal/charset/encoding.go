// Package charset turns raw response bytes and a declared Content-Type into
// Unicode text.
//
// Resolution order is fixed: strict UTF-8 validation, then the charset
// parameter of the Content-Type header, then byte-order marks, then a narrow
// two-byte window heuristic for Shift_JIS and EUC-JP, then UTF-8. Decoding is
// always lossy: malformed sequences become U+FFFD and are reported, never
// returned as errors.
package charset

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// Encoding is one of the text encodings pageview knows how to decode.
type Encoding int

const (
	UTF8 Encoding = iota
	UTF16LE
	ShiftJIS
	EUCJP
	ISO2022JP
	Windows1252
)

// String returns the canonical lower-case label.
func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case UTF16LE:
		return "utf-16le"
	case ShiftJIS:
		return "shift_jis"
	case EUCJP:
		return "euc-jp"
	case ISO2022JP:
		return "iso-2022-jp"
	case Windows1252:
		return "windows-1252"
	default:
		return "unknown"
	}
}

func (e Encoding) decoder() *encoding.Decoder {
	switch e {
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case ShiftJIS:
		return japanese.ShiftJIS.NewDecoder()
	case EUCJP:
		return japanese.EUCJP.NewDecoder()
	case ISO2022JP:
		return japanese.ISO2022JP.NewDecoder()
	case Windows1252:
		return charmap.Windows1252.NewDecoder()
	default:
		return unicode.UTF8.NewDecoder()
	}
}

// aliases maps lower-case charset labels to encodings. iso-8859-1 and latin1
// are served by windows-1252, which agrees on every printable byte.
var aliases = map[string]Encoding{
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

// Lookup maps a charset label to an Encoding. The label must already be
// trimmed and lower-cased.
func Lookup(label string) (Encoding, bool) {
	enc, ok := aliases[label]
	return enc, ok
}

// Source records which resolution step chose the encoding.
type Source int

const (
	SourceValidUTF8 Source = iota
	SourceHeader
	SourceBOM
	SourceHeuristic
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourceValidUTF8:
		return "valid-utf8"
	case SourceHeader:
		return "header"
	case SourceBOM:
		return "bom"
	case SourceHeuristic:
		return "heuristic"
	case SourceDefault:
		return "default"
	default:
		return "unknown"
	}
}

// decodeWindows1252 maps the five bytes windows-1252 leaves undefined (0x81,
// 0x8D, 0x8F, 0x90, 0x9D) to the C1 controls of the same value, so no byte
// decodes to U+FFFD.
func decodeWindows1252(body []byte) string {
	var b strings.Builder
	b.Grow(len(body))
	for _, c := range body {
		r := charmap.Windows1252.DecodeByte(c)
		if r == utf8.RuneError {
			r = rune(c)
		}
		b.WriteRune(r)
	}
	return b.String()
}
