// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// CheckFunc reports a component problem as an error.
type CheckFunc func(ctx context.Context) error

// HealthCheck is the last result of one check.
type HealthCheck struct {
	Name     string        `json:"name"`
	Status   HealthStatus  `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Critical bool          `json:"critical"`
}

// SystemHealth represents overall system health information
type SystemHealth struct {
	Status     HealthStatus  `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	Version    string        `json:"version,omitempty"`
	Uptime     time.Duration `json:"uptime"`
	Goroutines int           `json:"goroutines"`
	Checks     []HealthCheck `json:"checks,omitempty"`
}

type registeredCheck struct {
	name     string
	critical bool
	fn       CheckFunc
}

// HealthManager runs the registered checks on demand.
type HealthManager struct {
	mu      sync.RWMutex
	checks  []registeredCheck
	version string
	timeout time.Duration
	started time.Time
}

// NewHealthManager creates a health manager. Each check runs under
// timeout, 5 seconds when zero.
func NewHealthManager(version string, timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthManager{version: version, timeout: timeout, started: time.Now()}
}

// RegisterCheck adds a check. A failing critical check makes the system
// unhealthy; any other failure only degrades it.
func (hm *HealthManager) RegisterCheck(name string, critical bool, fn CheckFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks = append(hm.checks, registeredCheck{name: name, critical: critical, fn: fn})
}

// Check runs every check concurrently and aggregates the results.
func (hm *HealthManager) Check(ctx context.Context) SystemHealth {
	hm.mu.RLock()
	checks := append([]registeredCheck(nil), hm.checks...)
	hm.mu.RUnlock()

	results := make([]HealthCheck, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = hm.run(ctx, c)
		}()
	}
	wg.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	health := SystemHealth{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Version:    hm.version,
		Uptime:     time.Since(hm.started),
		Goroutines: runtime.NumGoroutine(),
		Checks:     results,
	}
	for _, r := range results {
		switch {
		case r.Status == HealthStatusHealthy:
		case r.Critical:
			health.Status = HealthStatusUnhealthy
		case health.Status == HealthStatusHealthy:
			health.Status = HealthStatusDegraded
		}
	}
	return health
}

func (hm *HealthManager) run(ctx context.Context, c registeredCheck) HealthCheck {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()

	result := HealthCheck{Name: c.name, Status: HealthStatusHealthy, Critical: c.critical}
	if err := c.fn(checkCtx); err != nil {
		result.Status = HealthStatusUnhealthy
		result.Error = err.Error()
	}
	result.Duration = time.Since(start)
	return result
}

// HealthHandler serves the aggregated health as JSON. Unhealthy answers
// 503; degraded still answers 200.
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(health)
	}
}

// GoroutineHealthCheck fails when more than limit goroutines are running.
func GoroutineHealthCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return fmt.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}
