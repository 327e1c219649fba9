package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Validation errors. Malformed URLs are reported wrapped in ErrMalformed.
var (
	ErrEmpty             = errors.New("URL cannot be empty")
	ErrUnsupportedScheme = errors.New("URL must start with http:// or https://")
	ErrMalformed         = errors.New("invalid URL")
)

const maxPort = 65535

// Validate checks that rawURL is a non-empty, absolute http(s) URL with an
// authority. The scheme prefix check is case-sensitive and nothing is
// normalized first.
func Validate(rawURL string) error {
	if rawURL == "" {
		return ErrEmpty
	}
	if !HasHTTPScheme(rawURL) {
		return ErrUnsupportedScheme
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return malformed(err.Error())
	}
	if u.Hostname() == "" {
		return malformed("empty host")
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n > maxPort {
			return malformed("invalid port number")
		}
	}
	return nil
}

func malformed(detail string) error {
	return fmt.Errorf("%w: %s", ErrMalformed, detail)
}

// HasHTTPScheme reports whether rawURL starts with http:// or https://.
func HasHTTPScheme(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

// EnsureScheme prefixes https:// to input typed without a scheme.
func EnsureScheme(input string) string {
	input = strings.TrimSpace(input)
	if input == "" || HasHTTPScheme(input) {
		return input
	}
	return "https://" + input
}
