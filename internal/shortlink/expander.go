// Package shortlink expands shortened URLs before they are dispatched to
// content providers.
package shortlink

import (
	"context"
	"strings"

	apperrors "github.com/valpere/musicmanager/internal/errors"
	"github.com/valpere/musicmanager/internal/utils"
)

// DefaultHosts are the shorteners expanded when none are configured.
var DefaultHosts = []string{"bit.ly", "tinyurl.com", "t.co", "goo.gl"}

// Resolver turns an indirect URL into its destination. ok is false when
// the URL is not indirect or could not be resolved.
type Resolver interface {
	Resolve(ctx context.Context, url string) (target string, ok bool)
}

// RedirectFollower reports where a URL's redirects end.
// *scraper.HTTPClient implements it.
type RedirectFollower interface {
	FinalURL(ctx context.Context, url string) (string, error)
}

// Expander resolves links on known shortener hosts by following their
// redirects.
type Expander struct {
	follower RedirectFollower
	hosts    []string
	retry    *apperrors.Service
	logger   utils.Logger
}

// NewExpander creates an Expander. A nil retry service means a single
// attempt.
func NewExpander(follower RedirectFollower, hosts []string, retry *apperrors.Service, logger utils.Logger) *Expander {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	if retry == nil {
		retry = apperrors.NewService(apperrors.RetryConfig{})
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		normalized = append(normalized, strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "www."))
	}
	return &Expander{
		follower: follower,
		hosts:    utils.UniqueStrings(normalized),
		retry:    retry,
		logger:   logger.WithField("component", "shortlink"),
	}
}

// Handles reports whether url is on a shortener host or one of its
// subdomains.
func (e *Expander) Handles(url string) bool {
	host := utils.ExtractHost(url)
	if host == "" {
		return false
	}
	for _, h := range e.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Resolve implements Resolver. Failures are logged and reported as not
// resolved.
func (e *Expander) Resolve(ctx context.Context, url string) (string, bool) {
	if !e.Handles(url) {
		return "", false
	}

	var target string
	err := e.retry.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		var err error
		target, err = e.follower.FinalURL(ctx, url)
		return err
	}, "expand "+url)
	if err != nil {
		e.logger.Warnf("cannot expand %s: %v", url, err)
		return "", false
	}
	if target == "" || target == url {
		return "", false
	}
	e.logger.Debugf("expanded %s to %s", url, target)
	return target, true
}

// Hosts returns the shortener hosts.
func (e *Expander) Hosts() []string { return append([]string(nil), e.hosts...) }
