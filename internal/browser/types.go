// internal/browser/types.go
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrDisabled is returned when rendering is requested but the browser is
// turned off in the configuration.
var ErrDisabled = errors.New("browser automation is not enabled")

// BrowserConfig defines browser automation configuration
type BrowserConfig struct {
	Enabled  bool
	Headless bool
	// SessionProfileDir is a Chrome profile that already holds a logged-in
	// session. It is only read; nothing here signs in.
	SessionProfileDir string
	Timeout           time.Duration
	WaitForElement    string
	WaitDelay         time.Duration
	UserAgent         string
	DisableImages     bool
}

// DefaultBrowserConfig returns default browser configuration
func DefaultBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Enabled:       false,
		Headless:      true,
		Timeout:       60 * time.Second,
		WaitDelay:     2 * time.Second,
		DisableImages: true,
	}
}

// RenderedPage is the DOM of a page after scripts ran.
type RenderedPage struct {
	URL  string
	HTML string
}

// Renderer loads a URL in a browser and returns the rendered DOM.
type Renderer interface {
	Render(ctx context.Context, url string) (*RenderedPage, error)
	Close() error
}

// BrowserStats contains browser automation statistics
type BrowserStats struct {
	PagesLoaded     int64
	Errors          int64
	AverageLoadTime time.Duration
}
