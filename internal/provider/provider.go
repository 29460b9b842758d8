// Package provider implements the content sources that links are resolved
// against. A terminal provider classifies a URL into an entity; a
// redirecting provider only emits further URLs.
package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/valpere/musicmanager/internal/entity"
	"github.com/valpere/musicmanager/internal/scraper"
)

var (
	// ErrNotFound reports content that is missing or blocked.
	ErrNotFound = errors.New("content not found")
	// ErrNoLinks reports a redirecting provider that found nothing to emit.
	ErrNoLinks = errors.New("no links emitted")
	// ErrUnhandled reports a URL no registered provider can handle.
	ErrUnhandled = errors.New("unhandled link")
)

// ContentProvider is the capability set every provider shares.
type ContentProvider interface {
	Name() string
	CanHandle(url string) bool
	// IsTerminal is true for media providers that classify URLs and false
	// for providers that only emit further links.
	IsTerminal() bool
	// URLMatchers are URL fragments identifying links this provider
	// recognises. They filter emitted links and are separate from CanHandle.
	URLMatchers() []string
}

// MediaProvider is a terminal provider.
type MediaProvider interface {
	ContentProvider
	Classify(ctx context.Context, url string) (entity.IntermediateEntity, error)
}

// LinkEmitter is a redirecting provider. EmitLinks returns URLs in first
// seen order without duplicates.
type LinkEmitter interface {
	ContentProvider
	EmitLinks(ctx context.Context, url string) ([]string, error)
}

// PageFetcher downloads HTML pages. *scraper.HTTPClient implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*scraper.Page, error)
}

// matchers is the substring matching shared by the providers.
type matchers []string

func (m matchers) match(url string) bool {
	for _, fragment := range m {
		if strings.Contains(url, fragment) {
			return true
		}
	}
	return false
}

func (m matchers) list() []string { return append([]string(nil), m...) }
