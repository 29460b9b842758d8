// internal/scraper/ratelimiter.go
package scraper

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/valpere/musicmanager/internal/utils"
)

// HostLimiter caps request rate and concurrency per host. Every host gets
// its own token bucket and semaphore on first use.
type HostLimiter struct {
	rps         rate.Limit
	burst       int
	concurrency int64

	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// NewHostLimiter creates a limiter allowing requestsPerSecond (burst) and
// at most concurrency in-flight requests per host. A non-positive rate
// disables rate limiting.
func NewHostLimiter(requestsPerSecond float64, burst, concurrency int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &HostLimiter{
		rps:         limit,
		burst:       burst,
		concurrency: int64(concurrency),
		hosts:       make(map[string]*hostSlot),
	}
}

func (h *HostLimiter) slot(host string) *hostSlot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.hosts[host]
	if !ok {
		s = &hostSlot{
			limiter: rate.NewLimiter(h.rps, h.burst),
			sem:     semaphore.NewWeighted(h.concurrency),
		}
		h.hosts[host] = s
	}
	return s
}

// Acquire blocks until a request to rawURL's host may start. The returned
// release function must be called when the request is done.
func (h *HostLimiter) Acquire(ctx context.Context, rawURL string) (release func(), err error) {
	s := h.slot(utils.ExtractHost(rawURL))
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.sem.Release(1)
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { s.sem.Release(1) }) }, nil
}

// Hosts returns how many hosts have been seen.
func (h *HostLimiter) Hosts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hosts)
}
