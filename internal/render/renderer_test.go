package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagery-timeline/internal/gibs"
)

type fakeFetcher struct {
	mu       sync.Mutex
	failDays map[string]bool
	requests []gibs.MapRequest
}

func (f *fakeFetcher) GetMap(ctx context.Context, r gibs.MapRequest) (image.Image, error) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()

	if f.failDays[r.Time] {
		return nil, errors.New("upstream failure")
	}
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(i % 251)
		img.Pix[i+3] = 255
	}
	img.Set(0, 0, color.White)
	return img, nil
}

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func testJob() Job {
	return Job{
		BBox:   gibs.BBox{-10, -10, 10, 10},
		Start:  date("2024-01-01"),
		End:    date("2024-01-03"),
		Width:  32,
		Height: 16,
		FPS:    30,
	}
}

func newTestRenderer(t *testing.T, f Fetcher) *Renderer {
	t.Helper()
	return NewRenderer(f, Options{
		VideosDir:     t.TempDir(),
		Layer:         "VIIRS_SNPP_CorrectedReflectance_TrueColor",
		FramesBetween: 15,
		UseH264:       false,
	})
}

func TestRender_FetchesEveryDayAndInterpolates(t *testing.T) {
	f := &fakeFetcher{}
	r := newTestRenderer(t, f)

	res, err := r.Render(context.Background(), testJob())
	require.NoError(t, err)

	assert.Equal(t, 3, res.KeyFrames)
	assert.Equal(t, 3+2*15, res.Frames)
	assert.Empty(t, res.SkippedDays)
	assert.FileExists(t, res.Path)
	assert.Equal(t, r.VideosDir(), filepath.Dir(res.Path))
	assert.Regexp(t, regexp.MustCompile(`^rife_animation_20240101_20240103_[0-9a-f]{8}\.(mp4|avi)$`), res.FileName)

	require.Len(t, f.requests, 3)
	seen := map[string]bool{}
	for _, req := range f.requests {
		seen[req.Time] = true
		assert.Equal(t, "VIIRS_SNPP_CorrectedReflectance_TrueColor", req.Layer)
		assert.Equal(t, 32, req.Width)
	}
	assert.Equal(t, map[string]bool{"2024-01-01": true, "2024-01-02": true, "2024-01-03": true}, seen)
}

func TestRender_SkipsFailedDays(t *testing.T) {
	f := &fakeFetcher{failDays: map[string]bool{"2024-01-02": true}}
	r := newTestRenderer(t, f)

	res, err := r.Render(context.Background(), testJob())
	require.NoError(t, err)

	assert.Equal(t, 2, res.KeyFrames)
	assert.Equal(t, 2+15, res.Frames)
	assert.Equal(t, []string{"2024-01-02"}, res.SkippedDays)
}

func TestRender_NoImages(t *testing.T) {
	f := &fakeFetcher{failDays: map[string]bool{"2024-01-01": true, "2024-01-02": true, "2024-01-03": true}}
	r := newTestRenderer(t, f)

	_, err := r.Render(context.Background(), testJob())
	require.ErrorIs(t, err, ErrNoImages)

	entries, _ := os.ReadDir(r.VideosDir())
	assert.Empty(t, entries, "nothing is written")
}

func TestRender_SingleDay(t *testing.T) {
	r := newTestRenderer(t, &fakeFetcher{})
	job := testJob()
	job.End = job.Start

	res, err := r.Render(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Frames)
}

func TestRender_LayerOverride(t *testing.T) {
	f := &fakeFetcher{}
	r := newTestRenderer(t, f)
	job := testJob()
	job.End = job.Start
	job.Layer = "MODIS_Terra_CorrectedReflectance_TrueColor"

	_, err := r.Render(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "MODIS_Terra_CorrectedReflectance_TrueColor", f.requests[0].Layer)
}

func TestRender_Cancelled(t *testing.T) {
	r := newTestRenderer(t, &fakeFetcher{failDays: map[string]bool{"2024-01-01": true}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, testJob())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJobValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Job)
	}{
		{"zero size", func(j *Job) { j.Width = 0 }},
		{"reversed dates", func(j *Job) { j.Start, j.End = j.End, j.Start }},
		{"too many days", func(j *Job) { j.End = j.Start.AddDate(2, 0, 0) }},
		{"range spanning millennia", func(j *Job) {
			j.Start = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
			j.End = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
		}},
		{"key frames too large", func(j *Job) {
			j.End = j.Start.AddDate(0, 0, 99)
			j.Width, j.Height = 4096, 4096
		}},
		{"bbox outside world", func(j *Job) { j.BBox = gibs.BBox{190, 0, 200, 10} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := testJob()
			tc.mutate(&job)
			assert.ErrorIs(t, job.Validate(), ErrInvalidJob)
		})
	}

	assert.NoError(t, testJob().Validate())
}

func TestDayCount(t *testing.T) {
	assert.EqualValues(t, 3, DayCount(date("2024-02-28"), date("2024-03-01")))
	assert.EqualValues(t, 1, DayCount(date("2024-01-01"), date("2024-01-01").Add(23*time.Hour)))
	assert.EqualValues(t, 0, DayCount(date("2024-03-02"), date("2024-03-01")))
	assert.EqualValues(t, 3652059, DayCount(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)))

	for _, end := range []string{"2024-01-01", "2024-01-31", "2024-12-31"} {
		assert.EqualValues(t, len(Days(date("2024-01-01"), date(end))), DayCount(date("2024-01-01"), date(end)), end)
	}
}

func TestRender_GIFOutput(t *testing.T) {
	r := NewRenderer(&fakeFetcher{}, Options{
		VideosDir:     t.TempDir(),
		Layer:         "VIIRS_SNPP_CorrectedReflectance_TrueColor",
		FramesBetween: 1,
		OutputFormat:  "gif",
		DatePosition:  "top-left",
	})

	res, err := r.Render(context.Background(), testJob())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^rife_animation_20240101_20240103_[0-9a-f]{8}\.gif$`), res.FileName)

	f, err := os.Open(res.Path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, 5)
}

func TestRender_AVIOutput(t *testing.T) {
	r := NewRenderer(&fakeFetcher{}, Options{VideosDir: t.TempDir(), OutputFormat: "avi"})
	job := testJob()
	job.End = job.Start

	res, err := r.Render(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, ".avi", filepath.Ext(res.FileName))
}

func TestRender_GIFTooLarge(t *testing.T) {
	f := &fakeFetcher{}
	r := NewRenderer(f, Options{VideosDir: t.TempDir(), FramesBetween: 15, OutputFormat: "gif"})
	job := testJob()
	job.End = job.Start.AddDate(0, 0, 299)
	job.Width, job.Height = 1000, 1000

	require.NoError(t, job.Validate(), "key frames alone fit")
	_, err := r.Render(context.Background(), job)
	assert.ErrorIs(t, err, ErrInvalidJob)
	assert.Empty(t, f.requests, "rejected before fetching")
}

func TestDaysAndFileName(t *testing.T) {
	days := Days(date("2024-02-28"), date("2024-03-01"))
	require.Len(t, days, 3)
	assert.Equal(t, date("2024-02-29"), days[1])

	assert.Empty(t, Days(date("2024-03-02"), date("2024-03-01")))
	assert.Equal(t, "rife_animation_20240101_20240107_abcd1234.mp4",
		FileName(date("2024-01-01"), date("2024-01-07"), "abcd1234"))
}
