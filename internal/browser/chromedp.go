// internal/browser/chromedp.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/valpere/musicmanager/internal/utils"
)

// ChromeRenderer implements Renderer using chromedp. Chrome starts on the
// first Render call; page loads are serialized on a single tab.
type ChromeRenderer struct {
	config     BrowserConfig
	profileDir string
	logger     utils.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	closed      bool
	stats       BrowserStats
}

// NewChromeRenderer creates a renderer. An empty profileDir starts Chrome
// with a throwaway profile.
func NewChromeRenderer(config BrowserConfig, profileDir string, logger utils.Logger) *ChromeRenderer {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &ChromeRenderer{
		config:     config,
		profileDir: profileDir,
		logger:     logger.WithField("component", "browser"),
	}
}

func allocatorOptions(config BrowserConfig, profileDir string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	}
	if config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if profileDir != "" {
		opts = append(opts, chromedp.UserDataDir(profileDir))
	}
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	return opts
}

func (r *ChromeRenderer) start() error {
	if r.closed {
		return fmt.Errorf("renderer is closed")
	}
	if r.browserCtx != nil {
		return nil
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(r.config, r.profileDir)...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}
	r.allocCancel, r.browserCtx, r.cancel = allocCancel, browserCtx, cancel
	r.logger.Debugf("browser started (profile=%q)", r.profileDir)
	return nil
}

// Render navigates to url, waits for the body plus the configured delay
// and returns the outer HTML.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (*RenderedPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.start(); err != nil {
		return nil, err
	}

	timeout := r.config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(r.browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	tasks := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	}
	if r.config.WaitForElement != "" {
		tasks = append(tasks, chromedp.WaitVisible(r.config.WaitForElement))
	}
	if r.config.WaitDelay > 0 {
		tasks = append(tasks, chromedp.Sleep(r.config.WaitDelay))
	}

	var html, location string
	tasks = append(tasks, chromedp.OuterHTML("html", &html), chromedp.Location(&location))

	start := time.Now()
	if err := chromedp.Run(runCtx, tasks...); err != nil {
		r.stats.Errors++
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("render %s: %w", url, err)
	}
	r.recordLoad(time.Since(start))
	return &RenderedPage{URL: location, HTML: html}, nil
}

func (r *ChromeRenderer) recordLoad(d time.Duration) {
	r.stats.PagesLoaded++
	if r.stats.PagesLoaded == 1 {
		r.stats.AverageLoadTime = d
	} else {
		r.stats.AverageLoadTime = (r.stats.AverageLoadTime + d) / 2
	}
}

// Stats returns a snapshot of the renderer statistics.
func (r *ChromeRenderer) Stats() BrowserStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Close stops Chrome if it was started.
func (r *ChromeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.cancel != nil {
		r.cancel()
		r.allocCancel()
		r.browserCtx, r.cancel, r.allocCancel = nil, nil, nil
	}
	return nil
}

// BrowserManager hands out the anonymous and the session renderer.
type BrowserManager struct {
	config  *BrowserConfig
	anon    Renderer
	session Renderer
}

// NewBrowserManager creates a manager. With the browser disabled both
// renderers return ErrDisabled.
func NewBrowserManager(config *BrowserConfig, logger utils.Logger) *BrowserManager {
	if config == nil {
		config = DefaultBrowserConfig()
	}
	bm := &BrowserManager{config: config}
	if config.Enabled {
		bm.anon = NewChromeRenderer(*config, "", logger)
		if config.SessionProfileDir != "" {
			bm.session = NewChromeRenderer(*config, config.SessionProfileDir, logger)
		}
	}
	return bm
}

// IsEnabled returns whether browser automation is enabled
func (bm *BrowserManager) IsEnabled() bool {
	return bm.config.Enabled
}

// Anonymous returns the renderer without a signed-in profile.
func (bm *BrowserManager) Anonymous() Renderer {
	if bm.anon == nil {
		return disabled{}
	}
	return bm.anon
}

// Session returns the renderer using the signed-in profile.
func (bm *BrowserManager) Session() Renderer {
	if bm.session == nil {
		return disabled{}
	}
	return bm.session
}

// Close closes the browser manager
func (bm *BrowserManager) Close() error {
	for _, r := range []Renderer{bm.anon, bm.session} {
		if r != nil {
			r.Close()
		}
	}
	return nil
}

type disabled struct{}

func (disabled) Render(context.Context, string) (*RenderedPage, error) { return nil, ErrDisabled }
func (disabled) Close() error                                         { return nil }
