// internal/config/config.go
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads runtime settings from a YAML file
func LoadFromFile(filename string) (*Settings, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", filename)
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads runtime settings from YAML bytes
func LoadFromBytes(data []byte) (*Settings, error) {
	expandedData := expandEnvironmentVariables(string(data))

	var settings Settings
	if err := yaml.Unmarshal([]byte(expandedData), &settings); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(&settings)

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

// LoadFromReader loads runtime settings from an io.Reader
func LoadFromReader(reader io.Reader) (*Settings, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// Default returns settings with every default applied.
func Default() *Settings {
	var s Settings
	applyDefaults(&s)
	return &s
}

// expandEnvironmentVariables substitutes ${VAR} references
func expandEnvironmentVariables(content string) string {
	return os.ExpandEnv(content)
}

// applyDefaults applies default values to the settings
func applyDefaults(s *Settings) {
	if s.Resolver.Workers == 0 {
		s.Resolver.Workers = 4
	}
	if s.Resolver.LinkTimeout == 0 {
		s.Resolver.LinkTimeout = 90 * time.Second
	}
	if s.Resolver.MaxEmissionDepth == 0 {
		s.Resolver.MaxEmissionDepth = 1
	}

	if s.HTTP.Timeout == 0 {
		s.HTTP.Timeout = 30 * time.Second
	}
	if s.HTTP.RetryAttempts == 0 {
		s.HTTP.RetryAttempts = 2
	}
	if s.HTTP.RetryDelay == 0 {
		s.HTTP.RetryDelay = time.Second
	}
	if s.HTTP.RequestsPerSecond == 0 {
		s.HTTP.RequestsPerSecond = 1
	}
	if s.HTTP.Burst == 0 {
		s.HTTP.Burst = 1
	}
	if s.HTTP.PerHostConcurrency == 0 {
		s.HTTP.PerHostConcurrency = 2
	}
	if s.HTTP.Headers == nil {
		s.HTTP.Headers = map[string]string{"Accept-Language": "en-US,en;q=0.9"}
	}

	if s.Browser.Timeout == 0 {
		s.Browser.Timeout = 60 * time.Second
	}
	if s.Browser.WaitDelay == 0 {
		s.Browser.WaitDelay = 2 * time.Second
	}

	if s.Facebook.RedirectLinkLimit == 0 {
		s.Facebook.RedirectLinkLimit = 10
	}

	if len(s.ShortLinks.Hosts) == 0 {
		s.ShortLinks.Hosts = []string{"bit.ly", "tinyurl.com", "t.co", "goo.gl"}
	}
	if s.ShortLinks.MaxRetries == 0 {
		s.ShortLinks.MaxRetries = 2
	}

	if s.Output.Mode == "" {
		s.Output.Mode = ModeDryRun
	}
	if s.Output.Backend == "" {
		s.Output.Backend = BackendXLSX
	}

	if s.Logging.Level == "" {
		s.Logging.Level = "info"
	}
	if s.Logging.Format == "" {
		s.Logging.Format = "text"
	}
	if s.Logging.File != "" {
		if s.Logging.MaxSizeMB == 0 {
			s.Logging.MaxSizeMB = 50
		}
		if s.Logging.MaxBackups == 0 {
			s.Logging.MaxBackups = 5
		}
		if s.Logging.MaxAgeDays == 0 {
			s.Logging.MaxAgeDays = 30
		}
	}

	if s.Server.ListenAddress == "" {
		s.Server.ListenAddress = ":8080"
	}
	if s.Server.ReadTimeout == 0 {
		s.Server.ReadTimeout = 15 * time.Second
	}
	if s.Server.WriteTimeout == 0 {
		s.Server.WriteTimeout = 5 * time.Minute
	}
	if s.Server.RequestsPerSecond == 0 {
		s.Server.RequestsPerSecond = 10
	}
	if s.Server.Burst == 0 {
		s.Server.Burst = 20
	}
}
