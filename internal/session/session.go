// Package session drives an in-app browsing session: it fetches pages,
// prepares them for display, and keeps back/forward history. Anything that
// cannot be shown in-app is handed to the system browser.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spider-crawler/pageview/internal/fetcher"
	"github.com/spider-crawler/pageview/internal/logger"
	"github.com/spider-crawler/pageview/internal/rewrite"
	"github.com/spider-crawler/pageview/internal/storage"
	"github.com/spider-crawler/pageview/internal/urlutil"
)

var (
	// ErrOpenedExternally is wrapped by Navigate when the page failed to
	// load in-app and was opened in the system browser instead.
	ErrOpenedExternally = errors.New("opened in external browser")

	// ErrNoHistory is returned by Back, Forward and Reload when there is
	// nowhere to go.
	ErrNoHistory = errors.New("no history entry")
)

// Fetcher retrieves a page with its response metadata.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (*fetcher.Page, error)
}

// Opener hands a URL to the system browser.
type Opener interface {
	Open(url string) error
}

// Recorder persists navigation attempts.
type Recorder interface {
	RecordVisit(ctx context.Context, v *storage.Visit) error
}

// View is a page ready for display.
type View struct {
	// URL as navigated to, after scheme completion
	URL string `json:"url"`

	FinalURL string `json:"final_url"`
	Status   uint16 `json:"status"`
	Title    string `json:"title"`
	Language string `json:"language,omitempty"`

	// Rewritten document
	HTML string `json:"html"`

	Charset       string `json:"charset"`
	DecodeWarning bool   `json:"decode_warning"`
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder records every navigation attempt.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithRewriteOptions sets how fetched pages are rewritten.
func WithRewriteOptions(opts rewrite.Options) Option {
	return func(s *Session) { s.rewrite = opts }
}

// WithLogger sets the session logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Session) { s.log = log }
}

// Session is one user's browsing state. Safe for concurrent use.
type Session struct {
	fetcher    Fetcher
	opener     Opener
	recorder   Recorder
	rewrite    rewrite.Options
	normalizer *urlutil.Normalizer
	log        logger.Logger

	mu      sync.Mutex
	history []string
	index   int
}

// New creates a Session with empty history.
func New(f Fetcher, o Opener, opts ...Option) *Session {
	s := &Session{
		fetcher:    f,
		opener:     o,
		normalizer: urlutil.DefaultNormalizer(urlutil.DefaultIgnoreParams),
		rewrite:    rewrite.Options{DisableExternal: true},
		index:      -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	return s
}

// Navigate loads input, completing a missing scheme with https://, and pushes
// it onto history. Entries ahead of the current one are discarded.
func (s *Session) Navigate(ctx context.Context, input string) (*View, error) {
	target := urlutil.EnsureScheme(input)
	if err := urlutil.Validate(target); err != nil {
		return nil, err
	}

	view, err := s.load(ctx, target)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.push(target)
	s.mu.Unlock()
	return view, nil
}

// Back loads the previous history entry. History is not truncated.
func (s *Session) Back(ctx context.Context) (*View, error) {
	return s.step(ctx, -1)
}

// Forward loads the next history entry.
func (s *Session) Forward(ctx context.Context) (*View, error) {
	return s.step(ctx, 1)
}

// Reload loads the current history entry again.
func (s *Session) Reload(ctx context.Context) (*View, error) {
	return s.step(ctx, 0)
}

func (s *Session) step(ctx context.Context, delta int) (*View, error) {
	s.mu.Lock()
	next := s.index + delta
	if s.index < 0 || next < 0 || next >= len(s.history) {
		s.mu.Unlock()
		return nil, ErrNoHistory
	}
	s.index = next
	target := s.history[next]
	s.mu.Unlock()

	return s.load(ctx, target)
}

// CanGoBack reports whether Back has an entry to load.
func (s *Session) CanGoBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index > 0
}

// CanGoForward reports whether Forward has an entry to load.
func (s *Session) CanGoForward() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index < len(s.history)-1
}

// Current returns the current history entry, or "" when history is empty.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index < 0 {
		return ""
	}
	return s.history[s.index]
}

// History returns a copy of the history and the current index (-1 if empty).
func (s *Session) History() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...), s.index
}

// push must be called with mu held.
func (s *Session) push(target string) {
	if s.index < len(s.history)-1 {
		s.history = s.history[:s.index+1]
	}
	if s.index >= 0 && s.history[s.index] == target {
		return
	}
	s.history = append(s.history, target)
	s.index = len(s.history) - 1
}

// load fetches and rewrites target. Transport failures and error statuses
// send the URL to the system browser.
func (s *Session) load(ctx context.Context, target string) (*View, error) {
	start := time.Now()
	visit := &storage.Visit{
		URL:           target,
		NormalizedURL: s.normalize(target),
		VisitedAt:     start,
	}
	defer func() {
		visit.ResponseTime = time.Since(start)
		s.record(ctx, visit)
	}()

	page, err := s.fetcher.FetchPage(ctx, target)
	if err != nil {
		visit.ErrorMessage = err.Error()
		return nil, s.openExternal(target, visit, err)
	}

	visit.FinalURL = page.URL
	visit.StatusCode = int(page.Status)
	visit.ContentType = page.ContentType
	visit.Charset = page.Charset.String()

	if page.IsError() {
		return nil, s.openExternal(target, visit, fmt.Errorf("HTTP %d", page.Status))
	}

	meta, err := rewrite.ExtractMeta(page.Content)
	if err != nil {
		s.log.Warn("meta extraction failed", logger.String("url", target), logger.Error(err))
	}
	visit.Title = meta.Title

	rendered, err := rewrite.Process(page.Content, page.URL, s.rewrite)
	if err != nil {
		return nil, s.openExternal(target, visit, err)
	}

	return &View{
		URL:           target,
		FinalURL:      page.URL,
		Status:        page.Status,
		Title:         meta.Title,
		Language:      meta.Language,
		HTML:          rendered,
		Charset:       page.Charset.String(),
		DecodeWarning: page.DecodeWarning,
	}, nil
}

func (s *Session) openExternal(target string, visit *storage.Visit, reason error) error {
	s.log.Info("navigation failed, opening externally", logger.String("url", target), logger.Error(reason))
	visit.OpenedExternal = true

	if err := s.opener.Open(target); err != nil {
		visit.OpenedExternal = false
		s.log.Error("open external failed", logger.String("url", target), logger.Error(err))
		return fmt.Errorf("%v; opening externally also failed: %w", reason, err)
	}
	return fmt.Errorf("%w: %v", ErrOpenedExternally, reason)
}

func (s *Session) record(ctx context.Context, visit *storage.Visit) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordVisit(context.WithoutCancel(ctx), visit); err != nil {
		s.log.Warn("failed to record visit", logger.String("url", visit.URL), logger.Error(err))
	}
}

func (s *Session) normalize(target string) string {
	normalized, err := s.normalizer.Normalize(target)
	if err != nil {
		return target
	}
	return normalized
}
