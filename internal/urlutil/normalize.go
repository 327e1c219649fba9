// Package urlutil validates and normalizes page URLs.
package urlutil

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

var multiSlash = regexp.MustCompile(`/+`)

// Normalizer produces a canonical key for a URL so that visits to the same
// page group together in the visit log.
type Normalizer struct {
	// Query parameters dropped from the key (utm_*, gclid, ...).
	IgnoreParams map[string]struct{}

	RemoveTrailingSlash bool
	RemoveDefaultPort   bool
	RemoveFragment      bool
	SortQueryParams     bool
}

// DefaultIgnoreParams are tracking parameters that never change page content.
var DefaultIgnoreParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "fbclid", "msclkid",
}

// DefaultNormalizer returns a normalizer with every rule enabled.
func DefaultNormalizer(ignoreParams []string) *Normalizer {
	params := make(map[string]struct{}, len(ignoreParams))
	for _, p := range ignoreParams {
		params[strings.ToLower(p)] = struct{}{}
	}

	return &Normalizer{
		IgnoreParams:        params,
		RemoveTrailingSlash: true,
		RemoveDefaultPort:   true,
		RemoveFragment:      true,
		SortQueryParams:     true,
	}
}

// Normalize returns the canonical form of rawURL. Scheme and host are always
// lower-cased.
func (n *Normalizer) Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if n.RemoveDefaultPort {
		switch {
		case u.Scheme == "http" && u.Port() == "80":
			u.Host = strings.TrimSuffix(u.Host, ":80")
		case u.Scheme == "https" && u.Port() == "443":
			u.Host = strings.TrimSuffix(u.Host, ":443")
		}
	}

	if n.RemoveFragment {
		u.Fragment = ""
		u.RawFragment = ""
	}

	u.Path = cleanPath(u.Path, n.RemoveTrailingSlash)
	u.RawPath = ""

	if u.RawQuery != "" {
		u.RawQuery = n.filterQuery(u.Query())
	}

	return u.String(), nil
}

func (n *Normalizer) filterQuery(query url.Values) string {
	kept := url.Values{}
	for key, values := range query {
		if _, ignore := n.IgnoreParams[strings.ToLower(key)]; ignore {
			continue
		}
		kept[key] = values
	}
	if !n.SortQueryParams {
		return kept.Encode()
	}
	return sortedQuery(kept)
}

// cleanPath collapses repeated slashes and resolves "." and ".." segments.
func cleanPath(path string, trimTrailing bool) string {
	if path == "" {
		return "/"
	}
	path = multiSlash.ReplaceAllString(path, "/")

	var out []string
	for _, part := range strings.Split(path, "/") {
		switch part {
		case ".":
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}

	cleaned := strings.Join(out, "/")
	if trimTrailing && len(cleaned) > 1 {
		cleaned = strings.TrimSuffix(cleaned, "/")
	}
	if cleaned == "" {
		return "/"
	}
	return cleaned
}

// sortedQuery encodes query with keys and values in lexical order.
// url.Values.Encode sorts keys but keeps value order.
func sortedQuery(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var parts []string
	for _, k := range keys {
		values := slices.Clone(query[k])
		slices.Sort(values)
		for _, v := range values {
			if v == "" {
				parts = append(parts, url.QueryEscape(k))
				continue
			}
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

// ExtractHost returns the lower-cased host (with port) of rawURL.
func ExtractHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Host), nil
}

// ResolveURL resolves a possibly relative reference against base.
func ResolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// IsSameHost reports whether two URLs share a host.
func IsSameHost(url1, url2 string) bool {
	host1, err1 := ExtractHost(url1)
	host2, err2 := ExtractHost(url2)
	if err1 != nil || err2 != nil {
		return false
	}
	return host1 == host2
}
