package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrTooManyRedirects is wrapped by the FetchError returned when the
// redirect hop limit is exceeded.
var ErrTooManyRedirects = errors.New("too many redirects")

// ErrorKind classifies a FetchError.
type ErrorKind int

const (
	// KindRequest means the request could not be built.
	KindRequest ErrorKind = iota
	// KindNetwork covers DNS, connect, TLS, timeout, redirect-limit and body
	// read failures.
	KindNetwork
)

func (k ErrorKind) String() string {
	if k == KindRequest {
		return "request error"
	}
	return "network error"
}

// FetchError is returned by Fetch for every failure. HTTP error statuses are
// not failures and never produce a FetchError.
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetching %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// categorizeError prefixes transport errors with a short category.
func categorizeError(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("timeout: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("canceled: %w", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("DNS error: %w", err)
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostErr) ||
		strings.Contains(err.Error(), "tls:") {
		return fmt.Errorf("TLS error: %w", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("connection failed: %w", err)
	}

	return err
}
