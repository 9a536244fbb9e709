package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"imagery-timeline/internal/cache"
	"imagery-timeline/internal/config"
	"imagery-timeline/internal/handlers/renderserver"
	"imagery-timeline/internal/ratelimit"
	"imagery-timeline/internal/render"
	"imagery-timeline/internal/video"
)

type serveOptions struct {
	addr          string
	videoDir      string
	cacheDir      string
	layer         string
	wmsURL        string
	framesBetween int
	maxRenders    int
	timeout       time.Duration
	overlay       bool
	datePosition  string
	fontPath      string
	format        string
	noCache       bool
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the render service until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, &opts, settings)

			if err := settings.Validate(); err != nil {
				return err
			}
			if err := os.MkdirAll(settings.VideosPath, 0755); err != nil {
				return fmt.Errorf("failed to create videos directory: %w", err)
			}

			if _, ok := video.CheckFFmpeg(); !ok {
				log.Printf("[Serve] ffmpeg not found, videos will be written as MJPEG AVI")
			}

			rl := ratelimit.NewHandler(nil)
			defer rl.Close()
			rl.SetAutoRetry(settings.AutoRetryOnRateLimit)
			rl.SetOnRateLimit(func(event ratelimit.RateLimitEvent) {
				log.Printf("[Serve] %s", event.Message)
			})

			var fc *cache.FrameCache
			if !opts.noCache {
				fc, err = ctx.openCache(settings, opts.cacheDir)
				if err != nil {
					log.Printf("[Serve] Frame cache disabled: %v", err)
					fc = nil
				} else {
					log.Printf("[Serve] Frame cache at %s (max %d MB)", fc.Path(), settings.CacheMaxSizeMB)
				}
			}
			client := ctx.newGIBSClient(settings, fc, rl)

			renderer := render.NewRenderer(client, render.Options{
				VideosDir:       settings.VideosPath,
				Layer:           settings.RenderLayer,
				FramesBetween:   settings.FramesBetween,
				ShowDateOverlay: settings.ShowDateOverlay,
				DatePosition:    settings.DatePosition,
				DateFontPath:    settings.DateFontPath,
				OutputFormat:    settings.OutputFormat,
				UseH264:         true,
				Progress: func(done, total int, status string) {
					log.Printf("[Render] %d/%d %s", done, total, status)
				},
			})

			cfg := renderserver.DefaultConfig()
			cfg.ListenAddr = settings.RenderListenAddr
			cfg.MaxConcurrentRenders = settings.MaxConcurrentRenders
			cfg.RenderTimeout = time.Duration(settings.RenderTimeoutSeconds) * time.Second

			server := renderserver.NewServer(renderer, client, cfg)
			if err := server.Start(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Render service listening on %s\n", server.URL())

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-sigCtx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "127.0.0.1:5000", "Listen address")
	flags.StringVar(&opts.videoDir, "video-dir", "", "Directory generated videos are written to")
	flags.StringVar(&opts.cacheDir, "cache-dir", "", "Frame cache directory")
	flags.StringVar(&opts.layer, "layer", "", "GIBS layer used for renders")
	flags.StringVar(&opts.wmsURL, "wms-url", "", "WMS endpoint")
	flags.IntVar(&opts.framesBetween, "frames-between", 0, "Interpolated frames between two days")
	flags.IntVar(&opts.maxRenders, "max-renders", 0, "Concurrent renders")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Per-render timeout")
	flags.BoolVar(&opts.overlay, "overlay", false, "Draw the date on every frame")
	flags.StringVar(&opts.datePosition, "date-position", "", "Where the date is drawn: top-left, top-right, bottom-left, bottom-right or center")
	flags.StringVar(&opts.fontPath, "font", "", "TrueType/OpenType font for the date")
	flags.StringVar(&opts.format, "format", "", "Output format: mp4, avi or gif")
	flags.BoolVar(&opts.noCache, "no-cache", false, "Disable the frame cache")

	return cmd
}

// applyServeFlags overrides settings with the flags the user actually set
func applyServeFlags(cmd *cobra.Command, opts *serveOptions, s *config.UserSettings) {
	flags := cmd.Flags()
	if flags.Changed("addr") || s.RenderListenAddr == "127.0.0.1:0" {
		s.RenderListenAddr = opts.addr
	}
	if flags.Changed("video-dir") {
		s.VideosPath = opts.videoDir
	}
	if flags.Changed("layer") {
		s.RenderLayer = opts.layer
	}
	if flags.Changed("wms-url") {
		s.WMSURL = opts.wmsURL
	}
	if flags.Changed("frames-between") {
		s.FramesBetween = opts.framesBetween
	}
	if flags.Changed("max-renders") {
		s.MaxConcurrentRenders = opts.maxRenders
	}
	if flags.Changed("timeout") {
		s.RenderTimeoutSeconds = int(opts.timeout / time.Second)
	}
	if flags.Changed("overlay") {
		s.ShowDateOverlay = opts.overlay
	}
	if flags.Changed("date-position") {
		s.DatePosition = opts.datePosition
	}
	if flags.Changed("font") {
		s.DateFontPath = opts.fontPath
	}
	if flags.Changed("format") {
		s.OutputFormat = opts.format
	}
}
