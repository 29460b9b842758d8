// internal/errors/service.go - retry and CLI error reporting
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"
)

// Kind classifies an error for exit codes and user messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindNetwork
	KindParse
	KindOutput
	KindValidation
	KindRateLimit
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindOutput:
		return "output"
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error attaches a Kind and operation name to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err annotated with kind and op. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	var se *StatusError
	if stderrors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return KindRateLimit
		case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
			return KindAuth
		default:
			return KindNetwork
		}
	}
	return KindUnknown
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// IsTransient reports whether err is worth retrying: timeouts, refused
// connections, 429 and 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if stderrors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var ne net.Error
	if stderrors.As(err, &ne) && ne.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, retryable := range []string{"timeout", "connection refused", "connection reset", "temporary", "eof"} {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}
	return false
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DefaultRetryConfig returns a small bounded retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		BaseDelay:     500 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Second,
	}
}

// Service retries operations and renders errors for the command line.
type Service struct {
	retryConfig   RetryConfig
	showTechnical bool
}

// NewService creates a Service with the given retry policy.
func NewService(cfg RetryConfig) *Service {
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = time.Minute
	}
	return &Service{retryConfig: cfg}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.showTechnical = verbose
	return s
}

// ExecuteWithRetry runs operation until it succeeds, fails with a
// non-transient error, or the retry budget is spent.
func (s *Service) ExecuteWithRetry(ctx context.Context, operation func(ctx context.Context) error, operationName string) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		attempts++
		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !s.shouldRetry(err, attempt) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.calculateDelay(attempt)):
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, attempts, lastErr)
}

func (s *Service) shouldRetry(err error, attempt int) bool {
	if attempt >= s.retryConfig.MaxRetries {
		return false
	}
	return IsTransient(err)
}

// calculateDelay computes exponential backoff delay
func (s *Service) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(s.retryConfig.BaseDelay) * math.Pow(s.retryConfig.BackoffFactor, float64(attempt)))
	if delay > s.retryConfig.MaxDelay {
		delay = s.retryConfig.MaxDelay
	}
	return delay
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	switch KindOf(err) {
	case KindConfig:
		return "Configuration Error",
			"The parser or runtime configuration is invalid.",
			[]string{
				"Run 'musicmanager config validate' to see every problem",
				"Check that the generic and extended field sets match",
			}
	case KindParse:
		return "Input Error",
			"An input file could not be read or decoded.",
			[]string{"Check the input path and the configured encoding"}
	case KindOutput:
		return "Output Error",
			"Rows could not be read from or written to the sheet store.",
			[]string{"Check the output backend, path and DSN"}
	case KindValidation:
		return "Validation Error",
			"One or more records produced inconsistent entities.",
			nil
	case KindRateLimit:
		return "Rate Limit Exceeded",
			"A content provider is throttling requests.",
			[]string{"Lower http.requests_per_second", "Lower http.per_host_concurrency"}
	case KindAuth:
		return "Access Denied",
			"A content provider refused the request.",
			[]string{"Check the browser session profile directory"}
	case KindNetwork:
		return "Network Error",
			"A content provider could not be reached.",
			[]string{"Check your internet connection", "Increase http.timeout"}
	}

	return "Unexpected Error",
		"An unexpected error occurred during the operation.",
		[]string{"Try running the command again with --verbose"}
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindConfig:
		return 2
	case KindNetwork:
		return 3
	case KindParse:
		return 4
	case KindOutput:
		return 5
	case KindValidation:
		return 6
	case KindRateLimit:
		return 7
	case KindAuth:
		return 8
	default:
		return 1
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n%s\n", title, message)
	if s.showTechnical {
		fmt.Fprintf(&b, "\nTechnical details: %s\n", err.Error())
	}
	if len(suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(&b, "  - %s\n", suggestion)
		}
	}
	return b.String()
}
