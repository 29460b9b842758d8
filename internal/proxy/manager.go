// internal/proxy/manager.go
package proxy

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/valpere/musicmanager/internal/utils"
)

// ErrNoHealthyProxy is returned when every proxy is in its recovery period.
var ErrNoHealthyProxy = errors.New("no healthy proxies available")

// Instance is a runtime proxy with its own transport.
type Instance struct {
	Name      string
	URL       *url.URL
	transport *http.Transport

	// guarded by Manager.mu
	consecutiveFailures int
	lastFailure         time.Time
	uses                int64
	successes           int64
	failures            int64
}

// Manager hands out proxies according to the rotation strategy.
type Manager struct {
	config  Config
	proxies []*Instance
	next    int
	mu      sync.Mutex
	now     func() time.Time
	logger  utils.Logger
}

// NewManager builds the pool. base is cloned for every proxy; nil uses
// a default transport.
func NewManager(config Config, base *http.Transport, logger utils.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Rotation == "" {
		config.Rotation = RotationRoundRobin
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.RecoveryTime <= 0 {
		config.RecoveryTime = 10 * time.Minute
	}
	if base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	m := &Manager{
		config: config,
		now:    time.Now,
		logger: logger.WithField("component", "proxy"),
	}
	for i, p := range config.Providers {
		u := buildProxyURL(p)
		name := p.Name
		if name == "" {
			name = "proxy-" + strconv.Itoa(i+1)
		}
		t := base.Clone()
		t.Proxy = http.ProxyURL(u)
		m.proxies = append(m.proxies, &Instance{Name: name, URL: u, transport: t})
	}
	return m, nil
}

// buildProxyURL constructs a proxy URL from provider configuration
func buildProxyURL(p Provider) *url.URL {
	scheme := string(p.Type)
	if scheme == "" {
		scheme = string(ProxyTypeHTTP)
	}
	u := &url.URL{Scheme: scheme, Host: fmt.Sprintf("%s:%d", p.Host, p.Port)}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// available reports whether p may be used. A proxy past its recovery
// period gets another chance.
func (m *Manager) available(p *Instance, now time.Time) bool {
	if p.consecutiveFailures < m.config.FailureThreshold {
		return true
	}
	if now.Sub(p.lastFailure) >= m.config.RecoveryTime {
		p.consecutiveFailures = 0
		return true
	}
	return false
}

// Next returns the next proxy according to the rotation strategy.
func (m *Manager) Next() (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var picked *Instance
	switch m.config.Rotation {
	case RotationRandom:
		var healthy []*Instance
		for _, p := range m.proxies {
			if m.available(p, now) {
				healthy = append(healthy, p)
			}
		}
		if len(healthy) > 0 {
			picked = healthy[rand.Intn(len(healthy))]
		}
	default:
		for i := range m.proxies {
			idx := (m.next + i) % len(m.proxies)
			if m.available(m.proxies[idx], now) {
				picked = m.proxies[idx]
				m.next = (idx + 1) % len(m.proxies)
				break
			}
		}
	}
	if picked == nil {
		return nil, ErrNoHealthyProxy
	}
	picked.uses++
	return picked, nil
}

// ReportSuccess resets the failure streak of p.
func (m *Manager) ReportSuccess(p *Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.successes++
	p.consecutiveFailures = 0
}

// ReportFailure counts a failure of p; reaching the threshold takes it
// out of rotation.
func (m *Manager) ReportFailure(p *Instance, err error) {
	m.mu.Lock()
	p.failures++
	p.consecutiveFailures++
	p.lastFailure = m.now()
	tripped := p.consecutiveFailures == m.config.FailureThreshold
	m.mu.Unlock()

	if tripped {
		m.logger.Warnf("proxy %s out of rotation for %s: %v", p.Name, m.config.RecoveryTime, err)
	}
}

// Stats returns a snapshot of the pool.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stats := Stats{TotalProxies: len(m.proxies)}
	for _, p := range m.proxies {
		healthy := p.consecutiveFailures < m.config.FailureThreshold ||
			now.Sub(p.lastFailure) >= m.config.RecoveryTime
		if healthy {
			stats.HealthyProxies++
		}
		stats.Proxies = append(stats.Proxies, InstanceStats{
			Name:         p.Name,
			URL:          p.URL.Redacted(),
			Healthy:      healthy,
			UseCount:     p.uses,
			SuccessCount: p.successes,
			FailureCount: p.failures,
			LastFailure:  p.lastFailure,
		})
	}
	return stats
}

// Transport returns a RoundTripper sending every request through the
// next proxy and reporting the outcome back to the pool.
func (m *Manager) Transport() http.RoundTripper {
	return &rotatingTransport{manager: m}
}

type rotatingTransport struct {
	manager *Manager
}

func (t *rotatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	p, err := t.manager.Next()
	if err != nil {
		return nil, err
	}
	resp, err := p.transport.RoundTrip(req)
	switch {
	case err != nil:
		t.manager.ReportFailure(p, err)
	case resp.StatusCode == http.StatusProxyAuthRequired:
		t.manager.ReportFailure(p, errors.New(resp.Status))
	default:
		t.manager.ReportSuccess(p)
	}
	return resp, err
}
