// Package testutil provides an origin server for tests that serves raw byte
// bodies under arbitrary Content-Type headers.
package testutil

import (
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Page is a canned response.
type Page struct {
	Body        []byte
	ContentType string // omitted from the response when empty
	StatusCode  int
	Headers     map[string]string
	Gzip        bool
}

type redirect struct {
	to     string
	status int
}

// Server is a configurable httptest server.
type Server struct {
	*httptest.Server

	mu        sync.RWMutex
	pages     map[string]*Page
	redirects map[string]redirect
	delays    map[string]time.Duration
	hits      map[string]int
	requests  map[string]http.Header
}

// NewServer starts a server; callers must Close it.
func NewServer() *Server {
	s := &Server{
		pages:     make(map[string]*Page),
		redirects: make(map[string]redirect),
		delays:    make(map[string]time.Duration),
		hits:      make(map[string]int),
		requests:  make(map[string]http.Header),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handler))
	return s
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	s.mu.Lock()
	s.hits[path]++
	s.requests[path] = r.Header.Clone()
	delay := s.delays[path]
	redir, isRedirect := s.redirects[path]
	page := s.pages[path]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if isRedirect {
		w.Header().Set("Location", redir.to)
		w.WriteHeader(redir.status)
		return
	}

	if page == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	for k, v := range page.Headers {
		w.Header().Set(k, v)
	}
	if page.ContentType != "" {
		w.Header().Set("Content-Type", page.ContentType)
	} else {
		// Stop net/http from sniffing one in.
		w.Header()["Content-Type"] = nil
	}
	status := page.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	if page.Gzip {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(status)
		gz := gzip.NewWriter(w)
		_, _ = gz.Write(page.Body)
		_ = gz.Close()
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(page.Body)
}

// AddPage serves body at path with the given status and Content-Type.
func (s *Server) AddPage(path string, status int, contentType string, body []byte) {
	s.SetPage(path, &Page{Body: body, ContentType: contentType, StatusCode: status})
}

// SetPage serves page at path.
func (s *Server) SetPage(path string, page *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = page
}

// SetRedirect answers requests for from with a 302 to to.
func (s *Server) SetRedirect(from, to string) {
	s.SetRedirectWithStatus(from, to, http.StatusFound)
}

// SetRedirectWithStatus answers requests for from with status and Location to.
func (s *Server) SetRedirectWithStatus(from, to string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[from] = redirect{to: to, status: status}
}

// SetDelay delays responses for path.
func (s *Server) SetDelay(path string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = delay
}

// Hits returns how many requests path received.
func (s *Server) Hits(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits[path]
}

// LastRequestHeaders returns the headers of the most recent request for path.
func (s *Server) LastRequestHeaders(path string) http.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[path]
}
