package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"imagery-timeline/internal/common"
	"imagery-timeline/internal/gibs"
	"imagery-timeline/internal/video"
)

const (
	// DefaultFramesBetween is how many cross-faded frames go between two days
	DefaultFramesBetween = 15

	// DefaultFPS is used when a job leaves the frame rate unset
	DefaultFPS = 60

	// MaxDays bounds a single render
	MaxDays = 366

	// MaxFrameBytes bounds the pixels a render holds at once: every key frame
	// for mp4 and avi, every paletted frame for gif
	MaxFrameBytes = 2 << 30

	// FilePrefix starts every generated video name
	FilePrefix = "rife_animation"
)

var (
	// ErrNoImages is returned when no day in the range produced an image
	ErrNoImages = errors.New("No valid images found for the selected dates")

	// ErrInvalidJob is returned for jobs that cannot be rendered
	ErrInvalidJob = errors.New("invalid render job")
)

// Fetcher returns the image of one day (gibs.Client in production)
type Fetcher interface {
	GetMap(ctx context.Context, r gibs.MapRequest) (image.Image, error)
}

// ProgressCallback reports render progress
type ProgressCallback func(done, total int, status string)

// Job describes one animation
type Job struct {
	BBox   gibs.BBox
	Start  time.Time
	End    time.Time
	Width  int
	Height int
	FPS    int
	Layer  string // optional, falls back to Options.Layer
}

// Result describes a finished animation
type Result struct {
	FileName    string   `json:"fileName"`
	Path        string   `json:"path"`
	KeyFrames   int      `json:"keyFrames"`
	Frames      int      `json:"frames"`
	SkippedDays []string `json:"skippedDays,omitempty"`
}

// Options configures a Renderer
type Options struct {
	VideosDir        string
	Layer            string
	FramesBetween    int
	FetchConcurrency int
	ShowDateOverlay  bool
	DatePosition     string // empty keeps the exporter default
	DateFontPath     string
	OutputFormat     string // "mp4" (default), "avi" or "gif"
	UseH264          bool
	Progress         ProgressCallback
}

// Renderer turns a date range into a smooth animation
type Renderer struct {
	fetcher Fetcher
	opts    Options
}

// NewRenderer creates a renderer writing videos to opts.VideosDir
func NewRenderer(fetcher Fetcher, opts Options) *Renderer {
	if opts.FramesBetween < 0 {
		opts.FramesBetween = DefaultFramesBetween
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 4
	}
	return &Renderer{fetcher: fetcher, opts: opts}
}

// VideosDir returns where videos are written
func (r *Renderer) VideosDir() string {
	return r.opts.VideosDir
}

// FileName builds rife_animation_{start}_{end}_{id}.mp4
func FileName(start, end time.Time, id string) string {
	return fmt.Sprintf("%s_%s_%s_%s.mp4", FilePrefix, common.FormatCompact(start), common.FormatCompact(end), id)
}

// Days returns every day from start to end inclusive
func Days(start, end time.Time) []time.Time {
	start = truncateDay(start)
	end = truncateDay(end)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayCount returns how many days Days(start, end) would yield without
// building the slice
func DayCount(start, end time.Time) int64 {
	n := (truncateDay(end).Unix()-truncateDay(start).Unix())/86400 + 1
	return max(n, 0)
}

// Validate checks a job before any network traffic happens
func (j Job) Validate() error {
	if j.Width <= 0 || j.Height <= 0 {
		return fmt.Errorf("%w: size must be positive", ErrInvalidJob)
	}
	if j.End.Before(j.Start) {
		return fmt.Errorf("%w: end_date is before start_date", ErrInvalidJob)
	}
	n := DayCount(j.Start, j.End)
	if n > MaxDays {
		return fmt.Errorf("%w: range of %d days exceeds %d", ErrInvalidJob, n, MaxDays)
	}
	if size := n * int64(j.Width) * int64(j.Height) * 4; size > MaxFrameBytes {
		return fmt.Errorf("%w: %d days at %dx%d need %d MiB of key frames, limit is %d MiB",
			ErrInvalidJob, n, j.Width, j.Height, size>>20, MaxFrameBytes>>20)
	}
	if !gibs.AdjustBBox(j.BBox).Valid() {
		return fmt.Errorf("%w: bbox %s does not intersect the world", ErrInvalidJob, j.BBox)
	}
	return nil
}

// Render fetches, enhances, interpolates and encodes one animation
func (r *Renderer) Render(ctx context.Context, job Job) (*Result, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if r.opts.OutputFormat == "gif" {
		frames := DayCount(job.Start, job.End) * int64(r.opts.FramesBetween+1)
		if size := frames * int64(job.Width) * int64(job.Height); size > MaxFrameBytes {
			return nil, fmt.Errorf("%w: gif of %d frames at %dx%d is too large", ErrInvalidJob, frames, job.Width, job.Height)
		}
	}
	if job.FPS <= 0 {
		job.FPS = DefaultFPS
	}
	layer := job.Layer
	if layer == "" {
		layer = r.opts.Layer
	}

	days := Days(job.Start, job.End)
	log.Printf("[Render] %s %s..%s: %d days, bbox=%s, %dx%d @ %d fps",
		layer, common.FormatISO8601(job.Start), common.FormatISO8601(job.End),
		len(days), job.BBox, job.Width, job.Height, job.FPS)

	keys, skipped, err := r.fetchDays(ctx, job, layer, days)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNoImages
	}

	keyCount := len(keys)
	frames := video.NewCrossfade(keys, r.opts.FramesBetween)
	r.progress(len(days), len(days), fmt.Sprintf("Encoding %d frames...", frames.Len()))

	exportOpts := video.DefaultExportOptions()
	exportOpts.Width = job.Width
	exportOpts.Height = job.Height
	exportOpts.FrameRate = job.FPS
	exportOpts.UseH264 = r.opts.UseH264
	exportOpts.ShowDateOverlay = r.opts.ShowDateOverlay
	exportOpts.DateFontPath = r.opts.DateFontPath
	if r.opts.DatePosition != "" {
		exportOpts.DatePosition = r.opts.DatePosition
	}
	if r.opts.OutputFormat != "" {
		exportOpts.OutputFormat = r.opts.OutputFormat
	}

	exporter, err := video.NewExporter(exportOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create video exporter: %w", err)
	}
	defer exporter.Close()

	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := FileName(job.Start, job.End, id)
	if exportOpts.OutputFormat != "mp4" {
		name = strings.TrimSuffix(name, ".mp4") + "." + exportOpts.OutputFormat
	}
	outputPath := filepath.Join(r.opts.VideosDir, name)

	written, err := exporter.Export(ctx, frames, outputPath)
	if err != nil {
		removePartial(outputPath, written)
		return nil, fmt.Errorf("failed to export video: %w", err)
	}

	log.Printf("[Render] Wrote %s (%d key frames, %d frames, %d days skipped)",
		filepath.Base(written), keyCount, frames.Len(), len(skipped))

	return &Result{
		FileName:    filepath.Base(written),
		Path:        written,
		KeyFrames:   keyCount,
		Frames:      frames.Len(),
		SkippedDays: skipped,
	}, nil
}

// fetchDays downloads and enhances every day concurrently. Days that fail are
// skipped; only cancellation aborts the whole render.
func (r *Renderer) fetchDays(ctx context.Context, job Job, layer string, days []time.Time) ([]video.Frame, []string, error) {
	images := make([]image.Image, len(days))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.FetchConcurrency)

	for i, day := range days {
		g.Go(func() error {
			iso := common.FormatISO8601(day)
			img, err := r.fetcher.GetMap(gctx, gibs.MapRequest{
				Layer:  layer,
				BBox:   job.BBox,
				Width:  job.Width,
				Height: job.Height,
				Time:   iso,
			})
			n := int(done.Add(1))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("[Render] Skipping %s: %v", iso, err)
				r.progress(n, len(days), fmt.Sprintf("Skipped %s", iso))
				return nil
			}
			images[i] = gibs.Enhance(img)
			r.progress(n, len(days), fmt.Sprintf("Fetched %s", iso))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var keys []video.Frame
	var skipped []string
	for i, img := range images {
		if img == nil {
			skipped = append(skipped, common.FormatISO8601(days[i]))
			continue
		}
		keys = append(keys, video.Frame{Image: img, Date: days[i]})
	}
	return keys, skipped, nil
}

func (r *Renderer) progress(done, total int, status string) {
	if r.opts.Progress != nil {
		r.opts.Progress(done, total, status)
	}
}

// removePartial deletes whatever an aborted export left behind
func removePartial(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			os.Remove(p)
		}
	}
}
