// Package fetcher retrieves a URL and returns its body decoded to Unicode
// text, whatever encoding the server used or claimed.
package fetcher

import (
	"strings"
	"time"

	"github.com/spider-crawler/pageview/internal/charset"
)

// Result is what callers of Fetch receive. Content is always valid UTF-8.
type Result struct {
	Content string `json:"content"`
	// Final URL after redirects
	URL string `json:"url"`
	// HTTP status code, passed through unmodified
	Status uint16 `json:"status"`
}

// Page is a Result plus the metadata gathered while producing it.
type Page struct {
	Result

	// Originally requested URL
	RequestURL string

	// Raw Content-Type and Content-Encoding header values ("" when absent)
	ContentType     string
	ContentEncoding string

	// Response headers keyed by lower-case name
	Headers map[string]string

	// Encoding used to decode the body and how it was chosen
	Charset       charset.Encoding
	CharsetSource charset.Source

	// Set when decoding replaced malformed bytes with U+FFFD
	DecodeWarning bool

	RedirectChain []RedirectHop

	// Raw body size in bytes, after any MaxBodySize cut
	BodySize int64

	// Set when the body was cut at MaxBodySize; the cut may split a
	// multi-byte sequence
	Truncated bool

	ResponseTime time.Duration
}

// RedirectHop represents a single redirect in the chain.
type RedirectHop struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Location   string `json:"location"`
}

// rawResponse is the undecoded response; it lives only until decode.
type rawResponse struct {
	headers   map[string]string
	body      []byte
	status    int
	finalURL  string
	truncated bool
}

// IsError returns true for 4xx and 5xx statuses. Fetch itself never treats
// these as failures.
func (r *Result) IsError() bool {
	return r.Status >= 400
}

// HasRedirects returns true if there were any redirects.
func (p *Page) HasRedirects() bool {
	return len(p.RedirectChain) > 0
}

// Header returns a response header by name, case-insensitively.
func (p *Page) Header(name string) string {
	if p.Headers == nil {
		return ""
	}
	return p.Headers[strings.ToLower(name)]
}
