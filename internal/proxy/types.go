// internal/proxy/types.go

// Package proxy rotates outbound page fetches over a pool of proxies and
// takes failing proxies out of rotation for a recovery period.
package proxy

import (
	"fmt"
	"time"
)

// ProxyType represents the type of proxy
type ProxyType string

const (
	ProxyTypeHTTP   ProxyType = "http"
	ProxyTypeHTTPS  ProxyType = "https"
	ProxyTypeSOCKS5 ProxyType = "socks5"
)

// RotationStrategy defines how proxies are rotated
type RotationStrategy string

const (
	RotationRoundRobin RotationStrategy = "round_robin"
	RotationRandom     RotationStrategy = "random"
)

// Config defines proxy configuration
type Config struct {
	Enabled          bool             `yaml:"enabled" json:"enabled"`
	Rotation         RotationStrategy `yaml:"rotation" json:"rotation"`
	FailureThreshold int              `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTime     time.Duration    `yaml:"recovery_time" json:"recovery_time"`
	Providers        []Provider       `yaml:"providers" json:"providers"`
}

// Provider is one configured proxy endpoint.
type Provider struct {
	Name     string    `yaml:"name" json:"name"`
	Type     ProxyType `yaml:"type" json:"type"`
	Host     string    `yaml:"host" json:"host"`
	Port     int       `yaml:"port" json:"port"`
	Username string    `yaml:"username,omitempty" json:"username,omitempty"`
	Password string    `yaml:"password,omitempty" json:"-"`
}

// Validate checks an enabled configuration.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("proxy rotation enabled without providers")
	}
	switch c.Rotation {
	case "", RotationRoundRobin, RotationRandom:
	default:
		return fmt.Errorf("unknown rotation strategy %q", c.Rotation)
	}
	for i, p := range c.Providers {
		if p.Host == "" || p.Port <= 0 {
			return fmt.Errorf("providers[%d]: host and port are required", i)
		}
		switch p.Type {
		case "", ProxyTypeHTTP, ProxyTypeHTTPS, ProxyTypeSOCKS5:
		default:
			return fmt.Errorf("providers[%d]: unsupported proxy type %q", i, p.Type)
		}
	}
	return nil
}

// Stats is a snapshot of the pool.
type Stats struct {
	TotalProxies   int             `json:"total_proxies"`
	HealthyProxies int             `json:"healthy_proxies"`
	Proxies        []InstanceStats `json:"proxies"`
}

// InstanceStats represents statistics for a single proxy instance
type InstanceStats struct {
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Healthy      bool      `json:"healthy"`
	UseCount     int64     `json:"use_count"`
	SuccessCount int64     `json:"success_count"`
	FailureCount int64     `json:"failure_count"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
}
