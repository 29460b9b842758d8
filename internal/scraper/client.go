// internal/scraper/client.go
package scraper

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	apperrors "github.com/valpere/musicmanager/internal/errors"
	"github.com/valpere/musicmanager/internal/utils"
)

// maxBodySize bounds how much of a page is read.
const maxBodySize = 8 << 20

// FetchObserver receives one call per finished request.
type FetchObserver interface {
	ObserveFetch(host, outcome string, d time.Duration)
}

// Page is a fetched HTML page.
type Page struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	HTML        string
}

// HTTPClient fetches pages with per-host limits, retries and user agent
// rotation.
type HTTPClient struct {
	httpClient    *http.Client
	limiter       *HostLimiter
	userAgents    []string
	currentUA     int
	uaMutex       sync.Mutex
	retryAttempts int
	retryDelay    time.Duration
	headers       map[string]string
	observer      FetchObserver
	logger        utils.Logger
}

// ClientConfig defines configuration options for the HTTP client
type ClientConfig struct {
	Timeout            time.Duration
	RetryAttempts      int
	RetryDelay         time.Duration
	UserAgents         []string
	Headers            map[string]string
	RateLimit          float64 // requests per second per host
	RateBurst          int
	PerHostConcurrency int
	Observer           FetchObserver
	Logger             utils.Logger
	// Transport overrides the default transport, mainly for tests.
	Transport http.RoundTripper
}

// NewHTTPClient creates a new HTTP client with the specified configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = 0
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if len(config.UserAgents) == 0 {
		config.UserAgents = getDefaultUserAgents()
	}
	if config.Logger == nil {
		config.Logger = utils.NewNopLogger()
	}
	transport := config.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &HTTPClient{
		httpClient:    &http.Client{Timeout: config.Timeout, Transport: transport},
		limiter:       NewHostLimiter(config.RateLimit, config.RateBurst, config.PerHostConcurrency),
		userAgents:    config.UserAgents,
		retryAttempts: config.RetryAttempts,
		retryDelay:    config.RetryDelay,
		headers:       config.Headers,
		observer:      config.Observer,
		logger:        config.Logger.WithField("component", "http"),
	}
}

// Limiter returns the per-host limiter shared by every request of the client.
func (c *HTTPClient) Limiter() *HostLimiter { return c.limiter }

// WithRetryAttempts returns a client sharing c's transport, limiter and
// observer that retries transient errors at most n times.
func (c *HTTPClient) WithRetryAttempts(n int) *HTTPClient {
	if n < 0 {
		n = 0
	}
	return &HTTPClient{
		httpClient:    c.httpClient,
		limiter:       c.limiter,
		userAgents:    c.userAgents,
		retryAttempts: n,
		retryDelay:    c.retryDelay,
		headers:       c.headers,
		observer:      c.observer,
		logger:        c.logger,
	}
}

// Get performs a GET request with retry logic. Non-2xx responses are
// returned as *errors.StatusError after retries are spent.
func (c *HTTPClient) Get(ctx context.Context, targetURL string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, targetURL)
}

// Head performs a HEAD request with the same retry policy as Get.
func (c *HTTPClient) Head(ctx context.Context, targetURL string) (*http.Response, error) {
	return c.do(ctx, http.MethodHead, targetURL)
}

func (c *HTTPClient) do(ctx context.Context, method, targetURL string) (*http.Response, error) {
	if !utils.IsValidURL(targetURL) {
		return nil, fmt.Errorf("invalid URL: %q", targetURL)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		resp, err := c.once(ctx, method, targetURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !apperrors.IsTransient(err) || attempt == c.retryAttempts {
			break
		}
		c.logger.Debugf("retrying %s %s after attempt %d: %v", method, targetURL, attempt+1, err)
		if err := c.waitForRetry(ctx, attempt); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *HTTPClient) once(ctx context.Context, method, targetURL string) (*http.Response, error) {
	release, err := c.limiter.Acquire(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, method, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setRequestHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	host := utils.ExtractHost(targetURL)
	if err != nil {
		c.observe(host, "error", start)
		return nil, apperrors.Wrap(apperrors.KindNetwork, method+" "+targetURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		c.observe(host, fmt.Sprintf("%dxx", resp.StatusCode/100), start)
		return nil, &apperrors.StatusError{URL: targetURL, StatusCode: resp.StatusCode}
	}
	c.observe(host, "2xx", start)
	return resp, nil
}

func (c *HTTPClient) observe(host, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveFetch(host, outcome, time.Since(start))
	}
}

// Fetch downloads targetURL and decodes the body using the charset
// announced by the server.
func (c *HTTPClient) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	resp, err := c.Get(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	var body io.Reader = io.LimitReader(resp.Body, maxBodySize)
	if cs := utils.DetectCharset(contentType); cs != "utf-8" {
		if enc, err := htmlindex.Get(cs); err == nil {
			body = enc.NewDecoder().Reader(body)
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, "read "+targetURL, err)
	}
	return &Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        string(data),
	}, nil
}

// FinalURL follows redirects of targetURL and returns where they end. It
// tries HEAD first and falls back to GET when the server rejects HEAD.
func (c *HTTPClient) FinalURL(ctx context.Context, targetURL string) (string, error) {
	resp, err := c.Head(ctx, targetURL)
	var se *apperrors.StatusError
	if stderrors.As(err, &se) && (se.StatusCode == http.StatusMethodNotAllowed || se.StatusCode == http.StatusNotImplemented) {
		resp, err = c.Get(ctx, targetURL)
	}
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return resp.Request.URL.String(), nil
}

// setRequestHeaders configures request headers including user agent rotation
func (c *HTTPClient) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.getNextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}

// getNextUserAgent returns the next user agent in rotation
func (c *HTTPClient) getNextUserAgent() string {
	c.uaMutex.Lock()
	defer c.uaMutex.Unlock()

	userAgent := c.userAgents[c.currentUA]
	c.currentUA = (c.currentUA + 1) % len(c.userAgents)
	return userAgent
}

// waitForRetry implements exponential backoff with jitter
func (c *HTTPClient) waitForRetry(ctx context.Context, attempt int) error {
	backoffDelay := c.retryDelay * time.Duration(1<<uint(attempt))
	var jitter time.Duration
	if half := int64(backoffDelay / 2); half > 0 {
		jitter = time.Duration(rand.Int63n(half))
	}
	totalDelay := backoffDelay + jitter
	if totalDelay > 30*time.Second {
		totalDelay = 30 * time.Second
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(totalDelay):
		return nil
	}
}

// ResolveReference returns href made absolute against base.
func ResolveReference(base, href string) string {
	href = strings.TrimSpace(href)
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// getDefaultUserAgents returns a set of realistic user agent strings
func getDefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	}
}
