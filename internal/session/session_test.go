package session_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/pageview/internal/config"
	"github.com/spider-crawler/pageview/internal/fetcher"
	"github.com/spider-crawler/pageview/internal/session"
	"github.com/spider-crawler/pageview/internal/storage"
	"github.com/spider-crawler/pageview/internal/testutil"
	"github.com/spider-crawler/pageview/internal/urlutil"
)

type recordingOpener struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (o *recordingOpener) Open(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, url)
	return o.err
}

type memoryRecorder struct {
	mu     sync.Mutex
	visits []storage.Visit
}

func (r *memoryRecorder) RecordVisit(_ context.Context, v *storage.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits = append(r.visits, *v)
	return nil
}

type fixture struct {
	srv      *testutil.Server
	opener   *recordingOpener
	recorder *memoryRecorder
	sess     *session.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := testutil.NewServer()
	t.Cleanup(srv.Close)
	for _, p := range []string{"/a", "/b", "/c"} {
		srv.AddPage(p, http.StatusOK, "text/html", []byte("<html><head><title>page "+p+"</title></head><body><a href=\"next\">n</a></body></html>"))
	}

	f := fetcher.New(config.DefaultConfig().Fetch, nil)
	t.Cleanup(f.Close)

	fx := &fixture{srv: srv, opener: &recordingOpener{}, recorder: &memoryRecorder{}}
	fx.sess = session.New(f, fx.opener, session.WithRecorder(fx.recorder))
	return fx
}

func (fx *fixture) url(path string) string {
	return fx.srv.URL + path
}

func TestNavigateRendersPage(t *testing.T) {
	fx := newFixture(t)

	view, err := fx.sess.Navigate(context.Background(), fx.url("/a"))

	require.NoError(t, err)
	assert.Equal(t, fx.url("/a"), view.URL)
	assert.Equal(t, fx.url("/a"), view.FinalURL)
	assert.Equal(t, uint16(200), view.Status)
	assert.Equal(t, "page /a", view.Title)
	assert.Equal(t, "utf-8", view.Charset)
	assert.Contains(t, view.HTML, `<base href="`+fx.url("/a")+`"/>`)
	assert.Contains(t, view.HTML, `href="`+fx.url("/next")+`"`)

	assert.Equal(t, fx.url("/a"), fx.sess.Current())
	assert.Empty(t, fx.opener.opened)

	require.Len(t, fx.recorder.visits, 1)
	visit := fx.recorder.visits[0]
	assert.Equal(t, 200, visit.StatusCode)
	assert.Equal(t, "page /a", visit.Title)
	assert.False(t, visit.OpenedExternal)
}

func TestNavigateDecodesLegacyEncoding(t *testing.T) {
	fx := newFixture(t)
	body := append([]byte("<html><head><title>"), 0x82, 0xB1, 0x82, 0xF1, 0x82, 0xC9, 0x82, 0xBF, 0x82, 0xCD)
	body = append(body, []byte("</title></head></html>")...)
	fx.srv.AddPage("/sjis", http.StatusOK, "text/html; charset=Shift_JIS", body)

	view, err := fx.sess.Navigate(context.Background(), fx.url("/sjis"))

	require.NoError(t, err)
	assert.Equal(t, "こんにちは", view.Title)
	assert.Equal(t, "shift_jis", view.Charset)
}

func TestNavigateHTTPErrorOpensExternally(t *testing.T) {
	fx := newFixture(t)
	fx.srv.AddPage("/missing", http.StatusNotFound, "text/plain", []byte("Not Found"))

	view, err := fx.sess.Navigate(context.Background(), fx.url("/missing"))

	assert.Nil(t, view)
	require.ErrorIs(t, err, session.ErrOpenedExternally)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Equal(t, []string{fx.url("/missing")}, fx.opener.opened)
	assert.Empty(t, fx.sess.Current())

	require.Len(t, fx.recorder.visits, 1)
	assert.True(t, fx.recorder.visits[0].OpenedExternal)
	assert.Equal(t, 404, fx.recorder.visits[0].StatusCode)
}

func TestNavigateTransportFailureOpensExternally(t *testing.T) {
	fx := newFixture(t)
	dead := testutil.NewServer()
	target := dead.URL + "/"
	dead.Close()

	_, err := fx.sess.Navigate(context.Background(), target)

	require.ErrorIs(t, err, session.ErrOpenedExternally)
	assert.Equal(t, []string{target}, fx.opener.opened)
	require.Len(t, fx.recorder.visits, 1)
	assert.NotEmpty(t, fx.recorder.visits[0].ErrorMessage)
}

func TestNavigateOpenerFailure(t *testing.T) {
	fx := newFixture(t)
	fx.opener.err = errors.New("no browser")
	fx.srv.AddPage("/gone", http.StatusGone, "text/plain", []byte("gone"))

	_, err := fx.sess.Navigate(context.Background(), fx.url("/gone"))

	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrOpenedExternally)
	assert.Contains(t, err.Error(), "no browser")
	assert.False(t, fx.recorder.visits[0].OpenedExternal)
}

func TestNavigateValidation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.sess.Navigate(context.Background(), "   ")
	assert.ErrorIs(t, err, urlutil.ErrEmpty)

	_, err = fx.sess.Navigate(context.Background(), "http://")
	assert.ErrorIs(t, err, urlutil.ErrMalformed)

	assert.Empty(t, fx.opener.opened)
	assert.Empty(t, fx.recorder.visits)
}

func TestNavigateAddsScheme(t *testing.T) {
	fx := newFixture(t)
	host := strings.TrimPrefix(fx.url(""), "http://")

	// The test server only speaks plain HTTP, so the https attempt fails
	// and is handed off.
	_, err := fx.sess.Navigate(context.Background(), host+"/a")

	require.ErrorIs(t, err, session.ErrOpenedExternally)
	assert.Equal(t, []string{"https://" + host + "/a"}, fx.opener.opened)
}

func TestHistoryNavigation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	assert.False(t, fx.sess.CanGoBack())
	assert.False(t, fx.sess.CanGoForward())
	_, err := fx.sess.Back(ctx)
	assert.ErrorIs(t, err, session.ErrNoHistory)
	_, err = fx.sess.Reload(ctx)
	assert.ErrorIs(t, err, session.ErrNoHistory)

	for _, p := range []string{"/a", "/b", "/c"} {
		_, err := fx.sess.Navigate(ctx, fx.url(p))
		require.NoError(t, err)
	}
	assert.True(t, fx.sess.CanGoBack())
	assert.False(t, fx.sess.CanGoForward())

	view, err := fx.sess.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, fx.url("/b"), view.URL)

	view, err = fx.sess.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, fx.url("/a"), view.URL)
	assert.False(t, fx.sess.CanGoBack())

	// Going back keeps the forward entries.
	history, index := fx.sess.History()
	assert.Equal(t, []string{fx.url("/a"), fx.url("/b"), fx.url("/c")}, history)
	assert.Equal(t, 0, index)

	view, err = fx.sess.Forward(ctx)
	require.NoError(t, err)
	assert.Equal(t, fx.url("/b"), view.URL)
	assert.True(t, fx.sess.CanGoForward())

	view, err = fx.sess.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, fx.url("/b"), view.URL)
	assert.Equal(t, 4, fx.srv.Hits("/b"))

	// A fresh navigation drops the forward entries.
	_, err = fx.sess.Navigate(ctx, fx.url("/a"))
	require.NoError(t, err)
	history, index = fx.sess.History()
	assert.Equal(t, []string{fx.url("/a"), fx.url("/b"), fx.url("/a")}, history)
	assert.Equal(t, 2, index)
}

func TestNavigateSameURLDoesNotDuplicate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := fx.sess.Navigate(ctx, fx.url("/a"))
		require.NoError(t, err)
	}

	history, index := fx.sess.History()
	assert.Equal(t, []string{fx.url("/a")}, history)
	assert.Equal(t, 0, index)
	assert.Len(t, fx.recorder.visits, 3)
}

func TestFailedNavigationLeavesHistoryAlone(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.srv.AddPage("/err", http.StatusInternalServerError, "text/plain", []byte("oops"))

	_, err := fx.sess.Navigate(ctx, fx.url("/a"))
	require.NoError(t, err)
	_, err = fx.sess.Navigate(ctx, fx.url("/err"))
	require.Error(t, err)

	history, index := fx.sess.History()
	assert.Equal(t, []string{fx.url("/a")}, history)
	assert.Equal(t, 0, index)
}
