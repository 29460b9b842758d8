// Package entity holds the classified music entities produced from parsed
// records.
package entity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/utils"
)

// Classification is the kind of a music entity.
type Classification string

const (
	Mix      Classification = "mix"
	Track    Classification = "track"
	Unknown  Classification = "unknown"
	NotFound Classification = "notfound"
)

const maxTrackMinutes = 12

// Classify derives a classification from a duration: up to 12 whole
// minutes is a Track, more is a Mix, anything else is unknown.
func Classify(d Duration) Classification {
	minutes := d.Minutes()
	switch {
	case minutes > maxTrackMinutes:
		return Mix
	case minutes > 0:
		return Track
	default:
		return Unknown
	}
}

// IntermediateEntity is one classified link.
type IntermediateEntity struct {
	Title          string         `json:"title"`
	Duration       Duration       `json:"duration"`
	Classification Classification `json:"classification"`
	ResolvedURL    string         `json:"resolved_url"`
	SourceURL      string         `json:"source_url"`
	Provider       string         `json:"provider"`
}

// NewIntermediateEntity classifies url from its duration.
func NewIntermediateEntity(title string, d Duration, url string) IntermediateEntity {
	return IntermediateEntity{
		Title:          strings.TrimSpace(title),
		Duration:       d,
		Classification: Classify(d),
		ResolvedURL:    url,
		SourceURL:      url,
	}
}

// NewNotFoundEntity marks url as blocked or missing.
func NewNotFoundEntity(url string) IntermediateEntity {
	return IntermediateEntity{Duration: UnknownDuration, Classification: NotFound, ResolvedURL: url, SourceURL: url}
}

// ValidationError reports a record whose entities disagree.
type ValidationError struct {
	LineNo int
	Title  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d (%q): %s", e.LineNo, e.Title, e.Reason)
}

// GroupedEntity is every entity derived from one Record.
type GroupedEntity struct {
	Record   parser.Record
	Entities []IntermediateEntity

	title          string
	classification Classification
	links          []string
	finalized      bool
	once           sync.Once
	err            error
}

// NewGroupedEntity groups entities resolved from rec.
func NewGroupedEntity(rec parser.Record, entities []IntermediateEntity) *GroupedEntity {
	return &GroupedEntity{Record: rec, Entities: append([]IntermediateEntity(nil), entities...)}
}

// FinalizeAndValidate derives title, classification and links. It runs
// once; later calls return the first result.
func (g *GroupedEntity) FinalizeAndValidate(logger utils.Logger) error {
	g.once.Do(func() {
		g.err = g.finalize(logger)
		g.finalized = true
	})
	return g.err
}

func (g *GroupedEntity) finalize(logger utils.Logger) error {
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	var urls []string
	for _, e := range g.Entities {
		urls = append(urls, e.ResolvedURL)
		if e.Title == "" {
			continue
		}
		if g.title == "" {
			g.title = e.Title
		} else if e.Title != g.title {
			logger.Warnf("line %d: conflicting titles %q and %q, keeping the first", g.Record.LineNo, g.title, e.Title)
		}
	}
	if g.title == "" {
		g.title = g.Record.Title()
	}
	g.links = utils.UniqueStrings(urls)

	if len(g.Entities) == 0 {
		g.classification = Unknown
		return nil
	}
	g.classification = g.Entities[0].Classification
	for _, e := range g.Entities[1:] {
		if e.Classification != g.classification {
			return &ValidationError{
				LineNo: g.Record.LineNo,
				Title:  g.title,
				Reason: fmt.Sprintf("conflicting classifications %s (%s) and %s (%s)",
					g.classification, g.Entities[0].ResolvedURL, e.Classification, e.ResolvedURL),
			}
		}
	}
	return nil
}

// Finalized reports whether FinalizeAndValidate has run.
func (g *GroupedEntity) Finalized() bool { return g.finalized }

// Title returns the derived title.
func (g *GroupedEntity) Title() string { return g.title }

// Classification returns the derived classification.
func (g *GroupedEntity) Classification() Classification { return g.classification }

// Links returns the resolved URLs in resolution order.
func (g *GroupedEntity) Links() []string { return append([]string(nil), g.links...) }

// Duration returns the duration of the first entity with a known one.
func (g *GroupedEntity) Duration() Duration {
	for _, e := range g.Entities {
		if e.Duration.IsKnown() {
			return e.Duration
		}
	}
	return UnknownDuration
}

// AllLinks returns the resolved URLs followed by the record's own links,
// without duplicates. Known rows store the links as typed, so both forms
// take part in duplicate matching.
func (g *GroupedEntity) AllLinks() []string {
	return utils.UniqueStrings(append(g.Links(), g.Record.Links()...))
}

// Field returns the value written to a sheet column: the derived title for
// the title column, the record's own value otherwise.
func (g *GroupedEntity) Field(key string) string {
	if key == parser.TitleKey {
		return g.title
	}
	return g.Record.Get(key)
}
