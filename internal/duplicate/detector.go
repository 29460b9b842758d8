// Package duplicate drops grouped entities that are already recorded.
package duplicate

import (
	"github.com/valpere/musicmanager/internal/entity"
	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/utils"
)

// Reason tells why a candidate was dropped.
type Reason string

const (
	ByTitle Reason = "title"
	ByLink  Reason = "link"
)

// Duplicate is a dropped candidate and the value it matched on.
type Duplicate struct {
	Entity *entity.GroupedEntity
	Reason Reason
	Match  string
}

// Detector matches candidates against known titles and links. Titles and
// links are compared exactly.
type Detector struct {
	titles map[string]struct{}
	links  map[string]struct{}
	logger utils.Logger
}

// NewDetector indexes the titles and links of the known records.
func NewDetector(known []parser.Record, logger utils.Logger) *Detector {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	d := &Detector{
		titles: make(map[string]struct{}, len(known)),
		links:  make(map[string]struct{}, len(known)),
		logger: logger.WithField("component", "duplicates"),
	}
	for _, rec := range known {
		d.remember(rec.Title(), rec.Links())
	}
	return d
}

func (d *Detector) remember(title string, links []string) {
	if title != "" {
		d.titles[title] = struct{}{}
	}
	for _, l := range links {
		if l != "" {
			d.links[l] = struct{}{}
		}
	}
}

// Check reports whether g duplicates a known entity. A title match wins
// without looking at the links.
func (d *Detector) Check(g *entity.GroupedEntity) (Reason, string, bool) {
	if title := g.Title(); title != "" {
		if _, ok := d.titles[title]; ok {
			return ByTitle, title, true
		}
	}
	for _, l := range g.AllLinks() {
		if _, ok := d.links[l]; ok {
			return ByLink, l, true
		}
	}
	return "", "", false
}

// Filter returns the candidates that are not duplicates, in order. Kept
// candidates are remembered, so a repeat later in the same batch is
// dropped as well.
func (d *Detector) Filter(candidates []*entity.GroupedEntity) (kept []*entity.GroupedEntity, dropped []Duplicate) {
	for _, g := range candidates {
		if reason, match, dup := d.Check(g); dup {
			d.logger.Infof("duplicate by %s: %q (line %d)", reason, match, g.Record.LineNo)
			dropped = append(dropped, Duplicate{Entity: g, Reason: reason, Match: match})
			continue
		}
		d.remember(g.Title(), g.AllLinks())
		kept = append(kept, g)
	}
	return kept, dropped
}

// KnownTitles returns the number of distinct known titles.
func (d *Detector) KnownTitles() int { return len(d.titles) }

// KnownLinks returns the number of distinct known links.
func (d *Detector) KnownLinks() int { return len(d.links) }
