package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/valpere/musicmanager/internal/entity"
	apperrors "github.com/valpere/musicmanager/internal/errors"
	"github.com/valpere/musicmanager/internal/scraper"
	"github.com/valpere/musicmanager/internal/utils"
)

// MediaInfo is what a duration lookup knows about a media URL.
type MediaInfo struct {
	Title    string
	Duration entity.Duration
}

// DurationLookup finds the title and duration of a media URL. It returns
// an error wrapping ErrNotFound for missing or blocked content.
type DurationLookup interface {
	Lookup(ctx context.Context, url string) (MediaInfo, error)
}

// PageLookup reads title and duration from the metadata of the media page.
type PageLookup struct {
	Fetcher PageFetcher
	// BlockedMarkers are page texts that mean the content is unavailable.
	BlockedMarkers []string
}

// Lookup implements DurationLookup.
func (l PageLookup) Lookup(ctx context.Context, url string) (MediaInfo, error) {
	page, err := l.Fetcher.Fetch(ctx, url)
	if err != nil {
		var se *apperrors.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone) {
			return MediaInfo{}, fmt.Errorf("%s: %w", url, ErrNotFound)
		}
		return MediaInfo{}, err
	}
	doc, err := scraper.NewPageDocument(page)
	if err != nil {
		return MediaInfo{}, apperrors.Wrap(apperrors.KindParse, url, err)
	}
	for _, marker := range l.BlockedMarkers {
		if doc.Contains(marker) {
			return MediaInfo{}, fmt.Errorf("%s: page says %q: %w", url, marker, ErrNotFound)
		}
	}

	info := MediaInfo{Title: doc.Title(), Duration: entity.UnknownDuration}
	switch raw, iso := doc.DurationText(); {
	case raw == "":
	case iso:
		info.Duration = entity.ParseISO8601(raw)
	default:
		info.Duration = entity.ParseSeconds(raw)
	}
	return info, nil
}

// pageProvider is a terminal provider classifying URLs through a
// DurationLookup.
type pageProvider struct {
	name     string
	matchers matchers
	lookup   DurationLookup
	logger   utils.Logger
	// skipLookup marks URLs classified Unknown without fetching.
	skipLookup func(url string) bool
}

func newPageProvider(name string, m []string, lookup DurationLookup, logger utils.Logger) *pageProvider {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &pageProvider{
		name:     name,
		matchers: m,
		lookup:   lookup,
		logger:   logger.WithField("provider", name),
	}
}

func (p *pageProvider) Name() string              { return p.name }
func (p *pageProvider) CanHandle(url string) bool { return p.matchers.match(url) }
func (p *pageProvider) IsTerminal() bool          { return true }
func (p *pageProvider) URLMatchers() []string     { return p.matchers.list() }

// Classify implements MediaProvider. Missing content yields a NotFound
// entity rather than an error.
func (p *pageProvider) Classify(ctx context.Context, url string) (entity.IntermediateEntity, error) {
	if p.skipLookup != nil && p.skipLookup(url) {
		e := entity.NewIntermediateEntity("", entity.UnknownDuration, url)
		e.Provider = p.name
		return e, nil
	}

	info, err := p.lookup.Lookup(ctx, url)
	if errors.Is(err, ErrNotFound) {
		p.logger.Warnf("content not found: %v", err)
		e := entity.NewNotFoundEntity(url)
		e.Provider = p.name
		return e, nil
	}
	if err != nil {
		return entity.IntermediateEntity{}, fmt.Errorf("%s: classify %s: %w", p.name, url, err)
	}

	e := entity.NewIntermediateEntity(info.Title, info.Duration, url)
	e.Provider = p.name
	p.logger.Debugf("classified %s as %s (%s)", url, e.Classification, e.Duration)
	return e, nil
}
