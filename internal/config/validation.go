// internal/config/validation.go - validation with detailed error messages
package config

import (
	"fmt"
	"strings"

	apperrors "github.com/valpere/musicmanager/internal/errors"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

func newValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}
}

func (r *ValidationResult) addError(field, value, format string, args ...interface{}) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
	r.Valid = false
}

func (r *ValidationResult) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Err returns nil for a valid result, otherwise a configuration error
// listing every problem.
func (r *ValidationResult) Err(what string) error {
	if len(r.Errors) == 0 {
		return nil
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "%s validation failed:\n", what)
	for i, err := range r.Errors {
		fmt.Fprintf(&msg, "  %d. %s", i+1, err.Message)
		if err.Field != "" {
			fmt.Fprintf(&msg, " (field: %s)", err.Field)
		}
		if err.Value != "" {
			fmt.Fprintf(&msg, " (value: %s)", err.Value)
		}
		msg.WriteString("\n")
	}
	return apperrors.Wrap(apperrors.KindConfig, "", fmt.Errorf("%s", strings.TrimRight(msg.String(), "\n")))
}

// Validate checks the runtime settings.
func (s *Settings) Validate() error {
	return s.ValidateWithDetails().Err("configuration")
}

// ValidateWithDetails returns every problem found in the settings.
func (s *Settings) ValidateWithDetails() *ValidationResult {
	result := newValidationResult()

	if s.Resolver.Workers < 1 {
		result.addError("resolver.workers", fmt.Sprint(s.Resolver.Workers), "must be at least 1")
	}
	if s.Resolver.MaxEmissionDepth < 0 {
		result.addError("resolver.max_emission_depth", fmt.Sprint(s.Resolver.MaxEmissionDepth), "must not be negative")
	}
	if s.Resolver.LinkTimeout < 0 {
		result.addError("resolver.link_timeout", s.Resolver.LinkTimeout.String(), "must not be negative")
	}
	if s.HTTP.RequestsPerSecond < 0 {
		result.addError("http.requests_per_second", fmt.Sprint(s.HTTP.RequestsPerSecond), "must not be negative")
	}
	if s.HTTP.PerHostConcurrency < 1 {
		result.addError("http.per_host_concurrency", fmt.Sprint(s.HTTP.PerHostConcurrency), "must be at least 1")
	}
	if err := s.HTTP.Proxy.Validate(); err != nil {
		result.addError("http.proxy", "", "%v", err)
	}
	if s.Facebook.RedirectLinkLimit < 1 {
		result.addError("facebook.redirect_link_limit", fmt.Sprint(s.Facebook.RedirectLinkLimit), "must be at least 1")
	}

	switch s.Output.Mode {
	case ModeDryRun, ModeSheet:
	default:
		result.addError("output.mode", s.Output.Mode, "must be %q or %q", ModeDryRun, ModeSheet)
	}
	switch s.Output.Backend {
	case BackendXLSX, BackendCSV, BackendSQLite:
		if s.Output.Mode == ModeSheet && s.Output.Path == "" {
			result.addError("output.path", "", "required for backend %s", s.Output.Backend)
		}
	case BackendPostgres, BackendMySQL:
		if s.Output.Mode == ModeSheet && s.Output.DSN == "" {
			result.addError("output.dsn", "", "required for backend %s", s.Output.Backend)
		}
	default:
		result.addError("output.backend", s.Output.Backend, "unknown backend")
	}

	if s.Browser.Enabled && s.Browser.SessionProfileDir == "" {
		result.addWarning("browser.session_profile_dir is empty; login-gated posts will not be readable")
	}
	if s.Input.Encoding != "" {
		if _, err := lookupEncoding(s.Input.Encoding); err != nil {
			result.addError("input.encoding", s.Input.Encoding, "%v", err)
		}
	}

	return result
}
