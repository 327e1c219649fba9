package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spider-crawler/pageview/internal/charset"
	"github.com/spider-crawler/pageview/internal/config"
	"github.com/spider-crawler/pageview/internal/logger"
	"github.com/spider-crawler/pageview/internal/urlutil"
)

const defaultTimeout = 30 * time.Second

// Fetcher performs GET requests with browser-like headers and decodes the
// body. It holds no per-request state and is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	config    config.FetchConfig
	transport *http.Transport
	log       logger.Logger
}

// New creates a Fetcher. The transport negotiates and decompresses gzip on
// its own, so Accept-Encoding is never set by hand.
func New(cfg config.FetchConfig, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in via config
		},
	}

	return &Fetcher{
		config:    cfg,
		transport: transport,
		log:       log,
		client: &http.Client{
			Transport: transport,
			// Redirects are followed by FetchPage so the chain can be recorded.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Fetch retrieves rawURL and returns its decoded content, final URL and
// status. Non-2xx statuses are returned, not treated as errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	page, err := f.FetchPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	result := page.Result
	return &result, nil
}

// FetchPage is Fetch with the response metadata attached.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	start := time.Now()
	log := f.log.With(logger.String("fetch_id", uuid.NewString()), logger.String("url", rawURL))
	log.Debug("fetch started")

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	page := &Page{RequestURL: rawURL}
	raw, err := f.retrieve(ctx, rawURL, page, log)
	if err != nil {
		log.Warn("fetch failed", logger.Error(err), logger.Duration("duration", time.Since(start)))
		return nil, err
	}

	page.Headers = raw.headers
	page.ContentType = page.Header("Content-Type")
	page.ContentEncoding = page.Header("Content-Encoding")

	decoded := charset.Resolve(raw.body, page.ContentType)

	page.Result = Result{
		Content: decoded.Text,
		URL:     raw.finalURL,
		Status:  uint16(raw.status),
	}
	page.Charset = decoded.Encoding
	page.CharsetSource = decoded.Source
	page.DecodeWarning = decoded.Replaced
	page.BodySize = int64(len(raw.body))
	page.Truncated = raw.truncated
	page.ResponseTime = time.Since(start)

	log.Info("fetch completed",
		logger.String("final_url", page.URL),
		logger.Int("status", raw.status),
		logger.String("content_type", page.ContentType),
		logger.String("content_encoding", page.ContentEncoding),
		logger.String("charset", decoded.Encoding.String()),
		logger.String("charset_source", decoded.Source.String()),
		logger.Bool("decode_warning", decoded.Replaced),
		logger.Int64("bytes", page.BodySize),
		logger.Bool("truncated", page.Truncated),
		logger.Int("redirects", len(page.RedirectChain)),
		logger.Duration("duration", page.ResponseTime),
	)
	if page.Truncated {
		log.Warn("body truncated", logger.Int64("max_body_size", f.config.MaxBodySize))
	}
	if decoded.Replaced {
		log.Warn("lossy decode",
			logger.String("charset", decoded.Encoding.String()),
			logger.String("content_type", page.ContentType),
		)
	}

	return page, nil
}

// retrieve follows redirects up to MaxRedirects and buffers the final body.
func (f *Fetcher) retrieve(ctx context.Context, rawURL string, page *Page, log logger.Logger) (*rawResponse, error) {
	currentURL := rawURL

	for hops := 0; ; hops++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, currentURL, http.NoBody)
		if err != nil {
			return nil, &FetchError{Kind: KindRequest, URL: currentURL, Err: fmt.Errorf("failed to create request: %w", err)}
		}
		f.setRequestHeaders(req)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, &FetchError{Kind: KindNetwork, URL: currentURL, Err: categorizeError(err)}
		}

		location := resp.Header.Get("Location")
		if resp.StatusCode >= 300 && resp.StatusCode < 400 && location != "" {
			next, err := urlutil.ResolveURL(currentURL, location)
			if err != nil {
				resp.Body.Close()
				return nil, &FetchError{Kind: KindNetwork, URL: currentURL, Err: fmt.Errorf("invalid redirect location: %w", err)}
			}

			if f.shouldFollowRedirect(rawURL, next) {
				discard(resp)
				if hops >= f.config.MaxRedirects {
					return nil, &FetchError{
						Kind: KindNetwork,
						URL:  currentURL,
						Err:  fmt.Errorf("%w (limit %d)", ErrTooManyRedirects, f.config.MaxRedirects),
					}
				}

				page.RedirectChain = append(page.RedirectChain, RedirectHop{
					URL:        currentURL,
					StatusCode: resp.StatusCode,
					Location:   location,
				})
				log.Debug("redirect", logger.Int("status", resp.StatusCode), logger.String("location", next))
				currentURL = next
				continue
			}
		}

		raw, err := f.readResponse(resp)
		resp.Body.Close()
		if err != nil {
			return nil, &FetchError{Kind: KindNetwork, URL: currentURL, Err: err}
		}
		return raw, nil
	}
}

// setRequestHeaders sets the browser-like request headers.
func (f *Fetcher) setRequestHeaders(req *http.Request) {
	setIfPresent(req.Header, "User-Agent", f.config.UserAgent)
	setIfPresent(req.Header, "Accept", f.config.Accept)
	setIfPresent(req.Header, "Accept-Language", f.config.AcceptLanguage)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	for name, value := range f.config.CustomHeaders {
		req.Header.Set(name, value)
	}
}

func setIfPresent(h http.Header, name, value string) {
	if value != "" {
		h.Set(name, value)
	}
}

// readResponse buffers the whole body; nothing is decoded before this point.
func (f *Fetcher) readResponse(resp *http.Response) (*rawResponse, error) {
	var reader io.Reader = resp.Body
	if f.config.MaxBodySize > 0 {
		// One extra byte tells a body of exactly MaxBodySize from a longer one.
		reader = io.LimitReader(reader, f.config.MaxBodySize+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", categorizeError(err))
	}

	truncated := false
	if f.config.MaxBodySize > 0 && int64(len(body)) > f.config.MaxBodySize {
		body = body[:f.config.MaxBodySize]
		truncated = true
	}

	headers := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}

	return &rawResponse{
		headers:   headers,
		body:      body,
		status:    resp.StatusCode,
		finalURL:  resp.Request.URL.String(),
		truncated: truncated,
	}, nil
}

// shouldFollowRedirect checks if a redirect should be followed based on policy.
func (f *Fetcher) shouldFollowRedirect(originalURL, redirectURL string) bool {
	switch f.config.RedirectPolicy {
	case config.RedirectNoFollow:
		return false
	case config.RedirectFollowSame:
		return urlutil.IsSameHost(originalURL, redirectURL)
	default:
		return true
	}
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

// discard drains a little of an unused body so the connection can be reused.
func discard(resp *http.Response) {
	_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
	resp.Body.Close()
}
