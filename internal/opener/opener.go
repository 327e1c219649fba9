// Package opener hands URLs to the operating system's default handler.
package opener

import (
	"fmt"
	"io"

	"github.com/pkg/browser"

	"github.com/spider-crawler/pageview/internal/logger"
)

// Opener opens a URL outside the application.
type Opener interface {
	Open(url string) error
}

// System opens URLs with the platform's default browser.
type System struct {
	log logger.Logger
}

// NewSystem returns an Opener backed by the OS default handler.
func NewSystem(log logger.Logger) *System {
	if log == nil {
		log = logger.NewNop()
	}
	// The launched process inherits these otherwise, which garbles CLI output.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return &System{log: log}
}

// Open launches url in the default browser.
func (s *System) Open(url string) error {
	if err := browser.OpenURL(url); err != nil {
		s.log.Warn("open external failed", logger.String("url", url), logger.Error(err))
		return fmt.Errorf("failed to open URL: %w", err)
	}
	s.log.Info("opened external", logger.String("url", url))
	return nil
}

// Func adapts a function to Opener.
type Func func(url string) error

// Open calls f(url).
func (f Func) Open(url string) error {
	return f(url)
}
