// internal/config/types.go

// Package config loads the runtime settings (YAML) and the parser
// configuration (JSON) that drives line parsing and sheet layout.
package config

import (
	"time"

	"github.com/valpere/musicmanager/internal/proxy"
	"github.com/valpere/musicmanager/internal/utils"
)

// Settings is the runtime configuration of a musicmanager run.
type Settings struct {
	// ParserConfig is the path of the JSON parser configuration. Empty
	// selects the built-in configuration.
	ParserConfig string `yaml:"parser_config" json:"parser_config"`

	Input              InputConfig     `yaml:"input" json:"input"`
	Resolver           ResolverConfig  `yaml:"resolver" json:"resolver"`
	HTTP               HTTPConfig      `yaml:"http" json:"http"`
	Browser            BrowserConfig   `yaml:"browser" json:"browser"`
	Facebook           FacebookConfig  `yaml:"facebook" json:"facebook"`
	ShortLinks         ShortLinkConfig `yaml:"shortlinks" json:"shortlinks"`
	Output             OutputConfig    `yaml:"output" json:"output"`
	DuplicateDetection *bool           `yaml:"duplicate_detection,omitempty" json:"duplicate_detection,omitempty"`
	Logging            utils.LogConfig `yaml:"logging" json:"logging"`
	Server             ServerConfig    `yaml:"server" json:"server"`
}

// DuplicateDetectionEnabled reports whether known rows filter new entities.
func (s *Settings) DuplicateDetectionEnabled() bool {
	return s.DuplicateDetection == nil || *s.DuplicateDetection
}

// InputConfig selects the text files to parse.
type InputConfig struct {
	Files    []string `yaml:"files" json:"files"`
	Dir      string   `yaml:"dir" json:"dir"`
	Encoding string   `yaml:"encoding" json:"encoding"`
}

// ResolverConfig tunes link resolution.
type ResolverConfig struct {
	Workers          int           `yaml:"workers" json:"workers"`
	LinkTimeout      time.Duration `yaml:"link_timeout" json:"link_timeout"`
	MaxEmissionDepth int           `yaml:"max_emission_depth" json:"max_emission_depth"`
}

// HTTPConfig configures outbound page fetches.
type HTTPConfig struct {
	Timeout            time.Duration     `yaml:"timeout" json:"timeout"`
	RetryAttempts      int               `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay         time.Duration     `yaml:"retry_delay" json:"retry_delay"`
	RequestsPerSecond  float64           `yaml:"requests_per_second" json:"requests_per_second"`
	Burst              int               `yaml:"burst" json:"burst"`
	PerHostConcurrency int               `yaml:"per_host_concurrency" json:"per_host_concurrency"`
	UserAgents         []string          `yaml:"user_agents" json:"user_agents"`
	Headers            map[string]string `yaml:"headers" json:"headers"`
	Proxy              proxy.Config      `yaml:"proxy" json:"proxy"`
}

// BrowserConfig configures the headless browser used for rendered pages.
type BrowserConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	Headless          bool          `yaml:"headless" json:"headless"`
	SessionProfileDir string        `yaml:"session_profile_dir" json:"session_profile_dir"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	WaitDelay         time.Duration `yaml:"wait_delay" json:"wait_delay"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
}

// FacebookConfig tunes the social-network provider.
type FacebookConfig struct {
	RedirectLinkLimit int `yaml:"redirect_link_limit" json:"redirect_link_limit"`
}

// ShortLinkConfig lists the hosts whose links are expanded before dispatch.
type ShortLinkConfig struct {
	Hosts      []string `yaml:"hosts" json:"hosts"`
	MaxRetries int      `yaml:"max_retries" json:"max_retries"`
}

// OutputConfig selects where new rows go.
type OutputConfig struct {
	// Mode is "dry-run" (print only) or "sheet" (append to the store).
	Mode    string `yaml:"mode" json:"mode"`
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
	DSN     string `yaml:"dsn" json:"dsn"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address" json:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" json:"write_timeout"`
	// APIKey enables bearer authentication of /api/v1 when set.
	APIKey            string  `yaml:"api_key" json:"-"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// Output modes.
const (
	ModeDryRun = "dry-run"
	ModeSheet  = "sheet"
)

// Output backends.
const (
	BackendXLSX     = "xlsx"
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)
