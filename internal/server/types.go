package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/bankocr/internal/pipeline"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

// Extractor runs one extraction. *pipeline.Runner implements it.
type Extractor interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// ExtractorFactory builds an Extractor that reads from loc. It is used for
// uploaded screenshots.
type ExtractorFactory func(loc window.Locator) Extractor

// Server holds the HTTP server state and dependencies.
type Server struct {
	live        Extractor
	images      ExtractorFactory
	base        pipeline.Request
	separator   string
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	rateLimiter *RateLimiter
	logger      *slog.Logger

	// runs against the desktop must not overlap
	mu sync.Mutex
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int

	// Request is the template for every run; WindowTitle may be empty when
	// callers always supply one.
	Request   pipeline.Request
	Separator string

	RateLimit RateLimitConfig
	Logger    *slog.Logger
}

// RateLimitConfig enables per-client request limits.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Busy    bool   `json:"busy"`
}

// ExtractRequest is the optional JSON body of POST /extract.
type ExtractRequest struct {
	Title  string `json:"title,omitempty"`
	Format string `json:"format,omitempty"`
}

// ExtractResponse wraps a run result. Success is false when any field failed
// or the run could not start.
type ExtractResponse struct {
	Success bool             `json:"success"`
	Text    string           `json:"text,omitempty"`
	Result  *pipeline.Result `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Error codes used in ExtractResponse.Error and websocket error messages.
const (
	ErrCodeWindowNotFound = "window_not_found"
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeBusy           = "busy"
	ErrCodeTimeout        = "timeout"
	ErrCodeInternal       = "internal_error"
)

// NewServer creates a server. images may be nil, which disables
// POST /extract/image.
func NewServer(config Config, live Extractor, images ExtractorFactory) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	separator := config.Separator
	if separator == "" {
		separator = pipeline.DefaultSeparator
	}
	s := &Server{
		live:        live,
		images:      images,
		base:        config.Request,
		separator:   separator,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		logger:      logger,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit.RequestsPerMinute, config.RateLimit.RequestsPerHour)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/extract", s.corsMiddleware(s.rateLimitMiddleware(s.extractHandler)))
	mux.HandleFunc("/extract/image", s.corsMiddleware(s.rateLimitMiddleware(s.extractImageHandler)))
	mux.HandleFunc("/ws", s.extractWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
