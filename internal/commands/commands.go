// Package commands exposes the two host-facing operations, fetch_url and
// open_external_url. Failures cross this boundary as plain messages.
package commands

import (
	"context"

	"github.com/spider-crawler/pageview/internal/fetcher"
	"github.com/spider-crawler/pageview/internal/logger"
	"github.com/spider-crawler/pageview/internal/urlutil"
)

// Error is the single error shape returned to the host: a human-readable
// message with no structured code.
type Error string

func (e Error) Error() string {
	return string(e)
}

// Fetcher is the part of *fetcher.Fetcher the commands need.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Result, error)
}

// Opener hands a URL to the OS default handler.
type Opener interface {
	Open(url string) error
}

// Commands binds the host operations to their capabilities.
type Commands struct {
	fetcher Fetcher
	opener  Opener
	log     logger.Logger
}

// New creates Commands.
func New(f Fetcher, o Opener, log logger.Logger) *Commands {
	if log == nil {
		log = logger.NewNop()
	}
	return &Commands{fetcher: f, opener: o, log: log}
}

// FetchURL validates url and fetches it. HTTP error statuses are returned as
// results.
func (c *Commands) FetchURL(ctx context.Context, url string) (*fetcher.Result, error) {
	if err := urlutil.Validate(url); err != nil {
		c.log.Debug("fetch_url rejected", logger.String("url", url), logger.Error(err))
		return nil, toError(err)
	}

	result, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, toError(err)
	}
	return result, nil
}

// OpenExternalURL validates url and opens it outside the application.
func (c *Commands) OpenExternalURL(url string) error {
	if err := urlutil.Validate(url); err != nil {
		c.log.Debug("open_external_url rejected", logger.String("url", url), logger.Error(err))
		return toError(err)
	}
	if err := c.opener.Open(url); err != nil {
		return toError(err)
	}
	return nil
}

func toError(err error) error {
	return Error(err.Error())
}
