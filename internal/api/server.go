// internal/api/server.go

// Package api serves parsing and link resolution over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/valpere/musicmanager/internal/monitoring"
	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/resolver"
	"github.com/valpere/musicmanager/internal/utils"
)

const maxBodyBytes = 1 << 20

// Config tunes the API.
type Config struct {
	// APIKey enables bearer authentication of /api/v1 when set.
	APIKey            string
	RequestsPerSecond float64
	Burst             int
	// MaxLines caps the lines of one parse request.
	MaxLines int
}

// Server routes API requests.
type Server struct {
	router   *mux.Router
	parser   *parser.LineParser
	resolver *resolver.Resolver
	health   *monitoring.HealthManager
	metrics  *monitoring.Metrics
	config   Config
	logger   utils.Logger
}

// NewServer builds the router. metrics and health may be nil, which
// leaves their endpoints out.
func NewServer(lp *parser.LineParser, r *resolver.Resolver, health *monitoring.HealthManager, metrics *monitoring.Metrics, config Config, logger utils.Logger) *Server {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if config.MaxLines <= 0 {
		config.MaxLines = 1000
	}
	s := &Server{
		router:   mux.NewRouter(),
		parser:   lp,
		resolver: r,
		health:   health,
		metrics:  metrics,
		config:   config,
		logger:   logger.WithField("component", "api"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	if s.health != nil {
		s.router.HandleFunc("/health", s.health.HealthHandler()).Methods(http.MethodGet)
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	if s.config.APIKey != "" {
		api.Use(s.authMiddleware)
	}
	if s.config.RequestsPerSecond > 0 {
		api.Use(rateLimitMiddleware(s.config.RequestsPerSecond, s.config.Burst))
	}
	api.HandleFunc("/parse", s.parseHandler).Methods(http.MethodPost)
	api.HandleFunc("/resolve", s.resolveHandler).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}
		if strings.TrimPrefix(authHeader, "Bearer ") != s.config.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitMiddleware(rps float64, burst int) mux.MiddlewareFunc {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) parseHandler(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Lines) > s.config.MaxLines {
		writeError(w, http.StatusRequestEntityTooLarge, "too many lines")
		return
	}

	records, err := s.parser.Parse(r.Context(), strings.NewReader(strings.Join(req.Lines, "\n")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if records == nil {
		records = []parser.Record{}
	}
	writeJSON(w, http.StatusOK, ParseResponse{Records: records, Count: len(records)})
}

func (s *Server) resolveHandler(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	line := strings.TrimSpace(req.Line)
	if line == "" {
		if len(req.Links) == 0 {
			writeError(w, http.StatusBadRequest, "line or links required")
			return
		}
		res := s.resolver.Resolve(r.Context(), req.Links)
		writeJSON(w, http.StatusOK, ResolveResponse{Entities: res.Entities, Unhandled: res.Unhandled})
		return
	}

	rec := s.parser.ParseLine(line)
	group, res, err := s.resolver.ResolveRecord(r.Context(), rec)
	resp := ResolveResponse{
		Record:         &rec,
		Title:          group.Title(),
		Classification: group.Classification(),
		Links:          group.Links(),
		Entities:       res.Entities,
		Unhandled:      res.Unhandled,
	}
	status := http.StatusOK
	if err != nil {
		s.logger.Warnf("resolve %q: %v", line, err)
		resp.Error = err.Error()
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
