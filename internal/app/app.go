// internal/app/app.go

// Package app wires the musicmanager components from runtime settings.
package app

import (
	"io"
	"net/http"
	"time"

	"github.com/valpere/musicmanager/internal/browser"
	"github.com/valpere/musicmanager/internal/config"
	apperrors "github.com/valpere/musicmanager/internal/errors"
	"github.com/valpere/musicmanager/internal/monitoring"
	"github.com/valpere/musicmanager/internal/output"
	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/pipeline"
	"github.com/valpere/musicmanager/internal/provider"
	"github.com/valpere/musicmanager/internal/proxy"
	"github.com/valpere/musicmanager/internal/resolver"
	"github.com/valpere/musicmanager/internal/scraper"
	"github.com/valpere/musicmanager/internal/shortlink"
	"github.com/valpere/musicmanager/internal/utils"
)

// App holds the components shared by the CLI and the API server.
type App struct {
	Settings     *config.Settings
	ParserConfig *config.ParserConfig
	Parser       *parser.LineParser
	HTTP         *scraper.HTTPClient
	Proxies      *proxy.Manager
	Browser      *browser.BrowserManager
	Registry     *provider.Registry
	Expander     *shortlink.Expander
	Resolver     *resolver.Resolver
	Metrics      *monitoring.Metrics
	Logger       utils.Logger
}

// New builds every component. The parser configuration is loaded and
// validated first; its errors are fatal.
func New(settings *config.Settings, logger utils.Logger) (*App, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	pc, err := config.LoadParserConfig(settings.ParserConfig)
	if err != nil {
		return nil, err
	}
	g, err := pc.Grammar()
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics(monitoring.MetricsConfig{EnableGoMetrics: true})

	var (
		proxies   *proxy.Manager
		transport http.RoundTripper
	)
	if settings.HTTP.Proxy.Enabled {
		proxies, err = proxy.NewManager(settings.HTTP.Proxy, nil, logger)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindConfig, "proxy pool", err)
		}
		transport = proxies.Transport()
	}

	client := scraper.NewHTTPClient(scraper.ClientConfig{
		Timeout:            settings.HTTP.Timeout,
		RetryAttempts:      settings.HTTP.RetryAttempts,
		RetryDelay:         settings.HTTP.RetryDelay,
		UserAgents:         settings.HTTP.UserAgents,
		Headers:            settings.HTTP.Headers,
		RateLimit:          settings.HTTP.RequestsPerSecond,
		RateBurst:          settings.HTTP.Burst,
		PerHostConcurrency: settings.HTTP.PerHostConcurrency,
		Observer:           metrics,
		Logger:             logger,
		Transport:          transport,
	})

	bm := browser.NewBrowserManager(&browser.BrowserConfig{
		Enabled:           settings.Browser.Enabled,
		Headless:          settings.Browser.Headless,
		SessionProfileDir: settings.Browser.SessionProfileDir,
		Timeout:           settings.Browser.Timeout,
		WaitDelay:         settings.Browser.WaitDelay,
		UserAgent:         settings.Browser.UserAgent,
		DisableImages:     true,
	}, logger)

	registry, err := NewRegistry(client, bm, settings.Facebook.RedirectLinkLimit, logger)
	if err != nil {
		bm.Close()
		return nil, err
	}

	retry := apperrors.NewService(apperrors.RetryConfig{
		MaxRetries:    settings.ShortLinks.MaxRetries,
		BaseDelay:     settings.HTTP.RetryDelay,
		BackoffFactor: 2,
		MaxDelay:      30 * time.Second,
	})
	// The expander retries through retry; its requests must not retry again.
	expander := shortlink.NewExpander(client.WithRetryAttempts(0), settings.ShortLinks.Hosts, retry, logger)

	r := resolver.New(registry, resolver.Config{
		MaxEmissionDepth: settings.Resolver.MaxEmissionDepth,
		LinkTimeout:      settings.Resolver.LinkTimeout,
	}, logger, resolver.WithObserver(metrics), resolver.WithIndirection(expander))

	logger.Debugf("providers: %v", registry.Names())
	return &App{
		Settings:     settings,
		ParserConfig: pc,
		Parser:       parser.NewLineParser(g, logger),
		HTTP:         client,
		Proxies:      proxies,
		Browser:      bm,
		Registry:     registry,
		Expander:     expander,
		Resolver:     r,
		Metrics:      metrics,
		Logger:       logger,
	}, nil
}

// NewRegistry registers the media providers and the Facebook provider,
// which emits links matching any media provider.
func NewRegistry(fetcher provider.PageFetcher, bm *browser.BrowserManager, redirectLimit int, logger utils.Logger) (*provider.Registry, error) {
	youtube := provider.PageLookup{Fetcher: fetcher, BlockedMarkers: provider.YouTubeBlockedMarkers}
	media := []provider.ContentProvider{
		provider.NewYouTube(youtube, logger),
		provider.NewSoundCloud(fetcher, logger),
		provider.NewMixcloud(fetcher, logger),
		provider.NewBeatport(fetcher, logger),
	}
	var matchers []string
	for _, p := range media {
		matchers = append(matchers, p.URLMatchers()...)
	}

	fb := provider.NewFacebook(provider.FacebookConfig{
		Fetcher:           fetcher,
		Anonymous:         bm.Anonymous(),
		Session:           bm.Session(),
		URLMatchers:       matchers,
		RedirectLinkLimit: redirectLimit,
		Logger:            logger,
	})
	return provider.NewRegistry(append(media, fb)...)
}

// OpenStore opens the configured output store.
func (a *App) OpenStore() (output.Store, error) {
	return output.Open(a.Settings.Output)
}

// NewPipeline creates a pipeline over the app's components. store may be
// nil in dry-run mode.
func (a *App) NewPipeline(store output.Store, out io.Writer) *pipeline.Pipeline {
	opts := []pipeline.Option{pipeline.WithObserver(a.Metrics)}
	if store != nil {
		opts = append(opts, pipeline.WithStore(store))
	}
	if out != nil {
		opts = append(opts, pipeline.WithOutput(out))
	}
	return pipeline.New(a.Parser, a.Resolver, a.ParserConfig, pipeline.ConfigFromSettings(a.Settings), a.Logger, opts...)
}

// Close releases the browser.
func (a *App) Close() error {
	return a.Browser.Close()
}
