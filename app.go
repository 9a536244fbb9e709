package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"imagery-timeline/internal/animation"
	"imagery-timeline/internal/cache"
	"imagery-timeline/internal/common"
	"imagery-timeline/internal/config"
	"imagery-timeline/internal/gibs"
	"imagery-timeline/internal/handlers/renderserver"
	"imagery-timeline/internal/mapview"
	"imagery-timeline/internal/playback"
	"imagery-timeline/internal/ratelimit"
	"imagery-timeline/internal/render"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// App struct
type App struct {
	ctx              context.Context
	settings         *config.UserSettings
	mu               sync.Mutex
	devMode          bool // Enable verbose logging in dev mode only
	phClient         posthog.Client
	frameCache       *cache.FrameCache
	rateLimitHandler *ratelimit.Handler
	gibsClient       *gibs.Client

	// Render service: embedded unless settings.RendererURL is set
	renderer     *render.Renderer
	renderServer *renderserver.Server
	rendererURL  string

	mapView  *mapview.Map
	playback *playback.Controller
	workflow *animation.Workflow
}

// NewApp creates a new App application struct
func NewApp() *App {
	// Load user settings
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	// Initialize frame cache with settings
	cacheDir := cache.GetCacheDir()
	frameCache, err := cache.NewFrameCache(cacheDir, settings.CacheMaxSizeMB, settings.CacheTTLDays)
	if err != nil {
		log.Printf("Failed to initialize frame cache: %v", err)
		frameCache = nil // Continue without cache
	} else {
		log.Printf("Frame cache initialized at %s (max %d MB)", cacheDir, settings.CacheMaxSizeMB)
	}

	rateLimitHandler := ratelimit.NewHandler(nil)
	rateLimitHandler.SetAutoRetry(settings.AutoRetryOnRateLimit)

	gibsOpts := gibs.Options{
		BaseURL:           settings.WMSURL,
		RequestsPerSecond: settings.WMSRequestsPerSecond,
		RateLimit:         rateLimitHandler,
	}
	if frameCache != nil {
		gibsOpts.Cache = frameCache
	}

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		client, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	return &App{
		settings:         settings,
		phClient:         phClient,
		frameCache:       frameCache,
		rateLimitHandler: rateLimitHandler,
		gibsClient:       gibs.NewClient(gibsOpts),
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	a.rateLimitHandler.SetOnRateLimit(func(event ratelimit.RateLimitEvent) {
		wailsRuntime.EventsEmit(ctx, "rate-limit", event)
	})
	a.rateLimitHandler.SetOnRetry(func(event ratelimit.RateLimitEvent) {
		wailsRuntime.EventsEmit(ctx, "rate-limit-retry", event)
	})
	a.rateLimitHandler.SetOnRecovered(func(provider string) {
		wailsRuntime.EventsEmit(ctx, "rate-limit-recovered", provider)
	})

	a.startRenderService()

	a.mapView = mapview.New(wailsEmitter{ctx: ctx}, a.settings.WMSURL, a.settings.DefaultLayer)
	a.playback = playback.NewController(a.mapView, a.mapView, playback.Options{})

	a.workflow = animation.NewWorkflow(animation.NewClient(a.rendererURL, clientTimeout(a.settings)), a, a, a)

	// Push the initial TIME so the map shows today's imagery
	a.playback.SetDay(a.playback.State().Current)

	// Track app start
	a.TrackEvent("app_started", map[string]interface{}{
		"version":  a.GetAppVersion(),
		"os":       goruntime.GOOS,
		"arch":     goruntime.GOARCH,
		"embedded": a.renderServer != nil,
	})
}

// renderClientMargin is added to the server's render timeout so the server
// answers with its own timeout error before the client gives up
const renderClientMargin = 2 * time.Minute

func clientTimeout(s *config.UserSettings) time.Duration {
	return time.Duration(s.RenderTimeoutSeconds)*time.Second + renderClientMargin
}

// startRenderService starts the embedded render server, or points the
// workflow at an external one when configured
func (a *App) startRenderService() {
	if url := strings.TrimSpace(a.settings.RendererURL); url != "" {
		a.rendererURL = strings.TrimRight(url, "/")
		wailsRuntime.LogInfo(a.ctx, fmt.Sprintf("Using external render service at %s", a.rendererURL))
		return
	}

	if err := os.MkdirAll(a.settings.VideosPath, 0755); err != nil {
		wailsRuntime.LogError(a.ctx, fmt.Sprintf("Failed to create videos directory: %v", err))
	}

	a.renderer = render.NewRenderer(a.gibsClient, render.Options{
		VideosDir:       a.settings.VideosPath,
		Layer:           a.settings.RenderLayer,
		FramesBetween:   a.settings.FramesBetween,
		ShowDateOverlay: a.settings.ShowDateOverlay,
		DatePosition:    a.settings.DatePosition,
		DateFontPath:    a.settings.DateFontPath,
		OutputFormat:    a.settings.OutputFormat,
		UseH264:         true,
		Progress:        a.emitRenderProgress,
	})

	cfg := renderserver.DefaultConfig()
	cfg.ListenAddr = a.settings.RenderListenAddr
	cfg.MaxConcurrentRenders = a.settings.MaxConcurrentRenders
	cfg.RenderTimeout = time.Duration(a.settings.RenderTimeoutSeconds) * time.Second

	server := renderserver.NewServer(a.renderer, a.gibsClient, cfg)
	if err := server.Start(); err != nil {
		wailsRuntime.LogError(a.ctx, fmt.Sprintf("Failed to start render service: %v", err))
		return
	}
	a.renderServer = server
	a.rendererURL = server.URL()
	wailsRuntime.LogInfo(a.ctx, fmt.Sprintf("Render service started on %s", a.rendererURL))
}

// shutdown is called when the app closes
func (a *App) shutdown(ctx context.Context) {
	if a.playback != nil {
		a.playback.Close()
	}

	if a.renderServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.renderServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Render service shutdown: %v", err)
		}
	}

	if a.rateLimitHandler != nil {
		a.rateLimitHandler.Close()
	}

	a.mu.Lock()
	if err := config.SaveSettings(a.settings); err != nil {
		log.Printf("Failed to save settings: %v", err)
	}
	a.mu.Unlock()

	if a.phClient != nil {
		a.phClient.Close()
	}
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: "backend_user",
			Event:      event,
			Properties: props,
		})
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// OpenVideosFolder opens the videos folder in the OS file explorer
func (a *App) OpenVideosFolder() error {
	path := a.settings.VideosPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("folder does not exist: %s", path)
	}

	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", path)
	default: // Linux and others
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}

// emitLog sends a log message to the frontend (only in dev mode)
func (a *App) emitLog(message string) {
	if a.devMode {
		wailsRuntime.EventsEmit(a.ctx, "log", message)
	}
}

func (a *App) emitRenderProgress(done, total int, status string) {
	percent := 0
	if total > 0 {
		percent = done * 100 / total
	}
	wailsRuntime.EventsEmit(a.ctx, "animation:progress", map[string]interface{}{
		"done":    done,
		"total":   total,
		"percent": percent,
		"status":  status,
	})
	a.emitLog(fmt.Sprintf("[Render] %s (%d/%d)", status, done, total))
}

// wailsEmitter forwards map view events to the frontend
type wailsEmitter struct {
	ctx context.Context
}

func (e wailsEmitter) Emit(event string, data ...interface{}) {
	wailsRuntime.EventsEmit(e.ctx, event, data...)
}

// GetProviderName returns the display name of the imagery provider
func (a *App) GetProviderName() string {
	return common.DisplayNameGIBS
}
