package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/icza/mjpeg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"imagery-timeline/internal/common"
)

// ExportOptions contains all options for video export
type ExportOptions struct {
	// Dimensions. Zero keeps the size of the first frame.
	Width  int
	Height int

	// Date overlay
	ShowDateOverlay bool
	DateFontSize    float64
	DatePosition    string // "top-left", "top-right", "bottom-left", "bottom-right", "center"
	DateColor       color.RGBA
	DateShadow      bool
	DateFontPath    string // Optional TrueType/OpenType font, basic bitmap font otherwise

	// Video settings
	FrameRate     int
	OutputFormat  string // "mp4", "avi", "gif"
	Quality       int    // 0-100 (for lossy formats)
	UseH264       bool   // Try to use H.264 encoding via FFmpeg
	EncodeTimeout time.Duration
}

// DefaultExportOptions returns sensible defaults
func DefaultExportOptions() *ExportOptions {
	return &ExportOptions{
		ShowDateOverlay: false,
		DateFontSize:    32,
		DatePosition:    "bottom-right",
		DateColor:       color.RGBA{255, 255, 255, 255},
		DateShadow:      true,
		FrameRate:       60,
		OutputFormat:    "mp4",
		Quality:         90,
		UseH264:         true,
		EncodeTimeout:   5 * time.Minute,
	}
}

// Frame represents a single frame of the animation
type Frame struct {
	Image image.Image
	Date  time.Time
}

// Exporter handles video export operations
type Exporter struct {
	options    *ExportOptions
	font       font.Face
	ffmpegPath string
}

// CheckFFmpeg checks if FFmpeg is available - first checks bundled, then system
func CheckFFmpeg() (string, bool) {
	if bundledPath := getBundledFFmpegPath(); bundledPath != "" {
		return bundledPath, true
	}

	names := []string{"ffmpeg"}
	if runtime.GOOS == "windows" {
		names = []string{"ffmpeg.exe", "ffmpeg"}
	}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}

	// Check common installation directories
	var commonPaths []string
	switch runtime.GOOS {
	case "darwin":
		commonPaths = []string{
			"/usr/local/bin/ffmpeg",
			"/opt/homebrew/bin/ffmpeg",
			"/opt/local/bin/ffmpeg",
		}
	case "linux":
		commonPaths = []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
		}
	case "windows":
		commonPaths = []string{
			"C:\\ffmpeg\\bin\\ffmpeg.exe",
			"C:\\Program Files\\ffmpeg\\bin\\ffmpeg.exe",
		}
	}

	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}

	return "", false
}

// getBundledFFmpegPath returns the path to a bundled FFmpeg next to the executable
func getBundledFFmpegPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	var possiblePaths []string
	switch runtime.GOOS {
	case "darwin":
		// MyApp.app/Contents/MacOS/MyApp -> MyApp.app/Contents/Resources/ffmpeg
		possiblePaths = []string{
			filepath.Join(execDir, "..", "Resources", "ffmpeg"),
			filepath.Join(execDir, "ffmpeg"),
		}
	case "windows":
		possiblePaths = []string{
			filepath.Join(execDir, "ffmpeg.exe"),
			filepath.Join(execDir, "FFmpeg", "ffmpeg.exe"),
		}
	default:
		possiblePaths = []string{
			filepath.Join(execDir, "ffmpeg"),
			filepath.Join(execDir, "lib", "ffmpeg"),
		}
	}

	for _, p := range possiblePaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// NewExporter creates a new video exporter
func NewExporter(opts *ExportOptions) (*Exporter, error) {
	if opts == nil {
		opts = DefaultExportOptions()
	}
	if opts.FrameRate <= 0 {
		return nil, fmt.Errorf("invalid frame rate: %d", opts.FrameRate)
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 90
	}
	if opts.EncodeTimeout <= 0 {
		opts.EncodeTimeout = 5 * time.Minute
	}

	e := &Exporter{
		options: opts,
	}

	if opts.UseH264 {
		if path, found := CheckFFmpeg(); found {
			e.ffmpegPath = path
			log.Printf("[VideoExport] FFmpeg found at: %s", path)
		} else {
			log.Printf("[VideoExport] FFmpeg not found, will use fallback encoder")
		}
	}

	if opts.ShowDateOverlay {
		e.font = basicfont.Face7x13
		if opts.DateFontPath != "" {
			if err := e.loadFont(); err != nil {
				// Keep the bitmap font
				log.Printf("[VideoExport] Warning: failed to load font: %v", err)
			}
		}
	}

	return e, nil
}

// HasFFmpeg returns true if FFmpeg is available
func (e *Exporter) HasFFmpeg() bool {
	return e.ffmpegPath != ""
}

// loadFont loads the font for date overlay
func (e *Exporter) loadFont() error {
	fontBytes, err := os.ReadFile(e.options.DateFontPath)
	if err != nil {
		return fmt.Errorf("failed to read font file: %w", err)
	}

	f, err := opentype.Parse(fontBytes)
	if err != nil {
		return fmt.Errorf("failed to parse font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    e.options.DateFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to create font face: %w", err)
	}

	e.font = face
	return nil
}

// frameSize returns the output size for a source frame
func (e *Exporter) frameSize(src image.Image) (int, int) {
	w, h := e.options.Width, e.options.Height
	if w <= 0 || h <= 0 {
		b := src.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	// H.264 with yuv420p needs even dimensions
	return w &^ 1, h &^ 1
}

// ProcessFrame scales the source to the output size and adds the date overlay
func (e *Exporter) ProcessFrame(src image.Image, date time.Time) *image.RGBA {
	w, h := e.frameSize(src)
	output := image.NewRGBA(image.Rect(0, 0, w, h))

	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		draw.Draw(output, output.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(output, output.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	if e.options.ShowDateOverlay && e.font != nil && !date.IsZero() {
		e.drawDateOverlay(output, date)
	}

	return output
}

// drawDateOverlay draws the date text on the frame
func (e *Exporter) drawDateOverlay(dst *image.RGBA, date time.Time) {
	dateStr := common.FormatVideoOverlay(date)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(e.options.DateColor),
		Face: e.font,
	}

	bounds, _ := drawer.BoundString(dateStr)
	textWidth := (bounds.Max.X - bounds.Min.X).Ceil()
	textHeight := (bounds.Max.Y - bounds.Min.Y).Ceil()

	width, height := dst.Bounds().Dx(), dst.Bounds().Dy()
	padding := 12

	var x, y int
	switch e.options.DatePosition {
	case "top-left":
		x = padding
		y = padding + textHeight
	case "top-right":
		x = width - textWidth - padding
		y = padding + textHeight
	case "bottom-left":
		x = padding
		y = height - padding
	case "center":
		x = (width - textWidth) / 2
		y = (height + textHeight) / 2
	default: // bottom-right
		x = width - textWidth - padding
		y = height - padding
	}

	if e.options.DateShadow {
		shadowDrawer := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.RGBA{0, 0, 0, 180}),
			Face: e.font,
			Dot:  fixed.P(x+2, y+2),
		}
		shadowDrawer.DrawString(dateStr)
	}

	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(dateStr)
}

// Export writes frames to outputPath and returns the path actually written,
// which differs from outputPath when the MJPEG fallback changes the extension.
// Frames are pulled one at a time for mp4 and avi.
func (e *Exporter) Export(ctx context.Context, frames Sequence, outputPath string) (string, error) {
	if frames == nil || frames.Len() == 0 {
		return "", fmt.Errorf("no frames to export")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	switch e.options.OutputFormat {
	case "mp4", "":
		if e.ffmpegPath != "" && e.options.UseH264 {
			return outputPath, e.exportH264(ctx, frames, outputPath)
		}
		aviPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".avi"
		log.Printf("[VideoExport] FFmpeg not available, falling back to MJPEG AVI: %s", aviPath)
		return aviPath, e.exportMotionJPEG(ctx, frames, aviPath)
	case "avi":
		return outputPath, e.exportMotionJPEG(ctx, frames, outputPath)
	case "gif":
		return outputPath, e.exportGIF(frames, outputPath)
	default:
		return "", fmt.Errorf("unsupported output format: %s (supported: mp4, avi, gif)", e.options.OutputFormat)
	}
}

// exportH264 creates an MP4 file with H.264 codec using FFmpeg
func (e *Exporter) exportH264(ctx context.Context, frames Sequence, outputPath string) error {
	log.Printf("[VideoExport] Exporting H.264 video with %d frames at %d fps", frames.Len(), e.options.FrameRate)

	tempDir, err := os.MkdirTemp("", "animation_frames_*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	for i := 0; i < frames.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame := frames.Frame(i)
		processed := e.ProcessFrame(frame.Image, frame.Date)

		framePath := filepath.Join(tempDir, fmt.Sprintf("frame_%05d.png", i))
		f, err := os.Create(framePath)
		if err != nil {
			return fmt.Errorf("failed to create frame file: %w", err)
		}
		if err := png.Encode(f, processed); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
		f.Close()
	}

	// Map quality 0-100 to CRF 51-0
	crf := min(max(51-(e.options.Quality*51/100), 0), 51)

	args := []string{
		"-y",
		"-framerate", fmt.Sprintf("%d", e.options.FrameRate),
		"-i", filepath.Join(tempDir, "frame_%05d.png"),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", fmt.Sprintf("%d", crf),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outputPath,
	}

	ctx, cancel := context.WithTimeout(ctx, e.options.EncodeTimeout)
	defer cancel()

	log.Printf("[VideoExport] Running FFmpeg: %s %v", e.ffmpegPath, args)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("FFmpeg encoding timed out after %s", e.options.EncodeTimeout)
		}
		log.Printf("[VideoExport] FFmpeg stderr: %s", stderr.String())
		return fmt.Errorf("FFmpeg encoding failed: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file is empty")
	}

	log.Printf("[VideoExport] H.264 video exported successfully: %s (%d bytes)", outputPath, info.Size())
	return nil
}

// exportMotionJPEG creates an AVI file with Motion JPEG codec (plays everywhere)
func (e *Exporter) exportMotionJPEG(ctx context.Context, frames Sequence, outputPath string) error {
	w, h := e.frameSize(frames.Frame(0).Image)

	writer, err := mjpeg.New(outputPath, int32(w), int32(h), int32(e.options.FrameRate))
	if err != nil {
		return fmt.Errorf("failed to create video writer: %w", err)
	}

	for i := 0; i < frames.Len(); i++ {
		if err := ctx.Err(); err != nil {
			writer.Close()
			return err
		}
		frame := frames.Frame(i)
		processed := e.ProcessFrame(frame.Image, frame.Date)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: e.options.Quality}); err != nil {
			writer.Close()
			return fmt.Errorf("failed to encode frame %d as JPEG: %w", i, err)
		}

		if err := writer.AddFrame(buf.Bytes()); err != nil {
			writer.Close()
			return fmt.Errorf("failed to add frame %d: %w", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize video: %w", err)
	}

	log.Printf("[VideoExport] MJPEG video exported: %s", outputPath)
	return nil
}

// exportGIF creates an animated GIF. The encoder needs every frame at once,
// so paletted frames (one byte per pixel) are held until the end.
func (e *Exporter) exportGIF(frames Sequence, outputPath string) error {
	palettedImages := make([]*image.Paletted, 0, frames.Len())
	delays := make([]int, 0, frames.Len())

	// Delay in 100ths of a second
	delay := max(100/e.options.FrameRate, 1)

	for i := 0; i < frames.Len(); i++ {
		frame := frames.Frame(i)
		processed := e.ProcessFrame(frame.Image, frame.Date)

		bounds := processed.Bounds()
		palettedImg := image.NewPaletted(bounds, palette())
		draw.FloydSteinberg.Draw(palettedImg, bounds, processed, image.Point{})

		palettedImages = append(palettedImages, palettedImg)
		delays = append(delays, delay)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	b := palettedImages[0].Bounds()
	return gif.EncodeAll(f, &gif.GIF{
		Image: palettedImages,
		Delay: delays,
		Config: image.Config{
			Width:  b.Dx(),
			Height: b.Dy(),
		},
	})
}

// palette is a 6x7x6 color cube plus grays, close enough for imagery previews
func palette() color.Palette {
	p := make(color.Palette, 0, 256)
	for r := 0; r < 6; r++ {
		for g := 0; g < 7; g++ {
			for b := 0; b < 6; b++ {
				p = append(p, color.RGBA{uint8(r * 51), uint8(g * 255 / 6), uint8(b * 51), 255})
			}
		}
	}
	for len(p) < 256 {
		v := uint8((len(p) - 252) * 64)
		p = append(p, color.RGBA{v, v, v, 255})
	}
	return p
}

// Close releases resources
func (e *Exporter) Close() error {
	if e.font != nil {
		return e.font.Close()
	}
	return nil
}
