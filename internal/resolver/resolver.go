// Package resolver resolves the links of parsed records into classified
// entities by walking the provider registry.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/musicmanager/internal/entity"
	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/provider"
	"github.com/valpere/musicmanager/internal/shortlink"
	"github.com/valpere/musicmanager/internal/utils"
)

// Link outcomes reported to the Observer.
const (
	OutcomeClassified = "classified"
	OutcomeNotFound   = "notfound"
	OutcomeEmitted    = "emitted"
	OutcomeUnhandled  = "unhandled"
	OutcomeError      = "error"
)

// Observer receives one call per provider attempt.
type Observer interface {
	ObserveLink(provider, outcome string)
	ObserveEmission(provider string, links int)
}

// Config tunes the resolver.
type Config struct {
	// MaxEmissionDepth is how many redirecting hops are followed. With 1,
	// links emitted by a redirecting provider are classified but never
	// emit again.
	MaxEmissionDepth int
	// LinkTimeout bounds each provider call. Zero means no timeout.
	LinkTimeout time.Duration
}

// DefaultConfig follows one emission hop with a 90 second budget per link.
func DefaultConfig() Config {
	return Config{MaxEmissionDepth: 1, LinkTimeout: 90 * time.Second}
}

// UnhandledLink is a link that contributed no entity.
type UnhandledLink struct {
	URL       string `json:"url"`
	SourceURL string `json:"source_url,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Reason    string `json:"reason"`
}

// Result is the outcome of resolving one set of links.
type Result struct {
	Entities  []entity.IntermediateEntity `json:"entities"`
	Unhandled []UnhandledLink             `json:"unhandled,omitempty"`
}

// Resolver dispatches links to providers. It holds no per-run state and
// is safe for concurrent use when its providers are.
type Resolver struct {
	registry    *provider.Registry
	indirection shortlink.Resolver
	config      Config
	observer    Observer
	logger      utils.Logger
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithObserver reports every provider attempt to o.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// WithIndirection sets the service expanding shortened links.
func WithIndirection(ir shortlink.Resolver) Option {
	return func(r *Resolver) { r.indirection = ir }
}

// New creates a Resolver over registry.
func New(registry *provider.Registry, config Config, logger utils.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if config.MaxEmissionDepth < 0 {
		config.MaxEmissionDepth = 0
	}
	r := &Resolver{
		registry: registry,
		config:   config,
		logger:   logger.WithField("component", "resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveRecord resolves the links of rec and folds the entities into a
// finalized GroupedEntity. A *entity.ValidationError is returned alongside
// the group when its entities disagree.
func (r *Resolver) ResolveRecord(ctx context.Context, rec parser.Record) (*entity.GroupedEntity, Result, error) {
	res := r.Resolve(ctx, rec.Links())
	group := entity.NewGroupedEntity(rec, res.Entities)
	err := group.FinalizeAndValidate(r.logger.WithField("line", rec.LineNo))
	return group, res, err
}

// Resolve classifies links in order. Empty and repeated links are
// skipped. Failures never abort the walk; they end up in Unhandled.
func (r *Resolver) Resolve(ctx context.Context, links []string) Result {
	var res Result
	r.resolve(ctx, utils.UniqueStrings(links), "", 0, &res)
	return res
}

func (r *Resolver) resolve(ctx context.Context, links []string, sourceURL string, depth int, res *Result) {
	for _, url := range links {
		source := sourceURL
		if source == "" {
			source = url
		}
		if ctx.Err() != nil {
			res.unhandled(url, source, "", ctx.Err().Error())
			continue
		}

		providers := r.registry.Handling(url)
		if len(providers) == 0 && depth == 0 && r.indirection != nil {
			if target, ok := r.indirection.Resolve(ctx, url); ok {
				r.logger.Debugf("dispatching %s as %s", url, target)
				url, source = target, target
				providers = r.registry.Handling(url)
			}
		}
		if len(providers) == 0 {
			r.logger.Errorf("no provider can handle %s", url)
			r.observe("", OutcomeUnhandled)
			res.unhandled(url, source, "", provider.ErrUnhandled.Error())
			continue
		}

		for _, p := range providers {
			if !p.IsTerminal() && depth < r.config.MaxEmissionDepth {
				r.emit(ctx, p.(provider.LinkEmitter), url, source, depth, res)
				continue
			}
			r.classify(ctx, p, url, source, res)
		}
	}
}

func (r *Resolver) emit(ctx context.Context, p provider.LinkEmitter, url, source string, depth int, res *Result) {
	linkCtx, cancel := r.linkContext(ctx)
	emitted, err := p.EmitLinks(linkCtx, url)
	cancel()
	if err == nil && len(emitted) == 0 {
		err = provider.ErrNoLinks
	}
	if err != nil {
		r.logger.Errorf("%s emitted no links for %s: %v", p.Name(), url, err)
		r.observe(p.Name(), outcomeOf(err))
		res.unhandled(url, source, p.Name(), err.Error())
		return
	}

	emitted = r.expand(ctx, emitted)
	r.logger.Infof("%s emitted %d links for %s", p.Name(), len(emitted), url)
	r.observe(p.Name(), OutcomeEmitted)
	if r.observer != nil {
		r.observer.ObserveEmission(p.Name(), len(emitted))
	}
	r.resolve(ctx, emitted, url, depth+1, res)
}

// expand replaces emitted short links with their destination and drops
// the duplicates this creates.
func (r *Resolver) expand(ctx context.Context, links []string) []string {
	if r.indirection == nil {
		return utils.UniqueStrings(links)
	}
	out := make([]string, 0, len(links))
	for _, link := range links {
		if target, ok := r.indirection.Resolve(ctx, link); ok {
			link = target
		}
		out = append(out, link)
	}
	return utils.UniqueStrings(out)
}

func (r *Resolver) classify(ctx context.Context, p provider.ContentProvider, url, source string, res *Result) {
	mp, ok := p.(provider.MediaProvider)
	if !ok {
		r.logger.Errorf("%s cannot classify %s and the emission depth of %d is reached", p.Name(), url, r.config.MaxEmissionDepth)
		r.observe(p.Name(), OutcomeUnhandled)
		res.unhandled(url, source, p.Name(), "emission depth reached")
		return
	}

	linkCtx, cancel := r.linkContext(ctx)
	e, err := mp.Classify(linkCtx, url)
	cancel()
	if err != nil {
		r.logger.Errorf("%s failed on %s: %v", p.Name(), url, err)
		r.observe(p.Name(), outcomeOf(err))
		res.unhandled(url, source, p.Name(), err.Error())
		return
	}

	e.SourceURL = source
	if e.Provider == "" {
		e.Provider = p.Name()
	}
	if e.Classification == entity.NotFound {
		r.observe(p.Name(), OutcomeNotFound)
	} else {
		r.observe(p.Name(), OutcomeClassified)
	}
	res.Entities = append(res.Entities, e)
}

func (r *Resolver) linkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.LinkTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.config.LinkTimeout)
}

func (r *Resolver) observe(name, outcome string) {
	if r.observer != nil {
		r.observer.ObserveLink(name, outcome)
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, provider.ErrNoLinks) {
		return OutcomeUnhandled
	}
	return OutcomeError
}

func (res *Result) unhandled(url, source, providerName, reason string) {
	res.Unhandled = append(res.Unhandled, UnhandledLink{URL: url, SourceURL: source, Provider: providerName, Reason: reason})
}

// String summarises the result for logs.
func (res Result) String() string {
	return fmt.Sprintf("%d entities, %d unhandled", len(res.Entities), len(res.Unhandled))
}
