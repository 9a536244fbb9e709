package renderserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"imagery-timeline/internal/animation"
	"imagery-timeline/internal/gibs"
	"imagery-timeline/internal/render"
)

// Animator renders one job (render.Renderer in production)
type Animator interface {
	Render(ctx context.Context, job render.Job) (*render.Result, error)
	VideosDir() string
}

// FrameSource serves raw WMS frames for the map preview proxy
type FrameSource interface {
	FetchMap(ctx context.Context, r gibs.MapRequest) ([]byte, error)
}

// Config configures the render HTTP server
type Config struct {
	ListenAddr           string // "127.0.0.1:0" picks a free port
	AllowedOrigins       []string
	MaxConcurrentRenders int
	RenderTimeout        time.Duration
	RateLimitRequests    int
	RateLimitWindow      time.Duration
}

// wailsOrigins are the frontend origins: wails://wails on macOS/Linux,
// http://wails.localhost on Windows, localhost in dev mode
var wailsOrigins = []string{"wails://wails", "http://wails.localhost", "http://localhost:*", "http://127.0.0.1:*"}

// DefaultConfig returns defaults suited to the embedded desktop server
func DefaultConfig() Config {
	return Config{
		ListenAddr:           "127.0.0.1:0",
		AllowedOrigins:       wailsOrigins,
		MaxConcurrentRenders: 1,
		RenderTimeout:        10 * time.Minute,
		RateLimitRequests:    10,
		RateLimitWindow:      time.Minute,
	}
}

// Server exposes the render service over HTTP
type Server struct {
	animator Animator
	frames   FrameSource
	cfg      Config
	validate *validator.Validate
	renders  chan struct{} // semaphore bounding concurrent renders

	httpServer *http.Server
	url        string
}

// NewServer creates a render server. frames may be nil to disable the frame proxy.
func NewServer(animator Animator, frames FrameSource, cfg Config) *Server {
	defaults := DefaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaults.ListenAddr
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = defaults.AllowedOrigins
	}
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = defaults.MaxConcurrentRenders
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = defaults.RenderTimeout
	}
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = defaults.RateLimitRequests
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = defaults.RateLimitWindow
	}

	return &Server{
		animator: animator,
		frames:   frames,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		renders:  make(chan struct{}, cfg.MaxConcurrentRenders),
	}
}

// Handler builds the chi router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.With(httprate.LimitByIP(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow)).
		Post(animation.Endpoint, s.handleGenerate)

	r.Get("/static/videos/{file}", s.handleVideo)
	r.Get("/videos/{file}", s.handleVideo)

	if s.frames != nil {
		r.Get("/frames/{layer}/{date}", s.handleFrame)
	}

	return r
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to start render server: %w", err)
	}

	s.url = "http://" + listener.Addr().String()
	log.Printf("[RenderServer] Started on %s (videos in %s)", s.url, s.animator.VideosDir())

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[RenderServer] Stopped: %v", err)
		}
	}()

	return nil
}

// URL returns the base URL once Start has succeeded
func (s *Server) URL() string {
	return s.url
}

// Shutdown stops accepting requests and waits for running ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
