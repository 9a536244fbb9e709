package animation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUI struct {
	mu       sync.Mutex
	busy     bool
	messages []string
	hides    int
	videoURL string
	loads    int
	failures []string
}

func (f *fakeUI) ShowBusy(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = true
	f.messages = append(f.messages, message)
}

func (f *fakeUI) HideBusy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	f.hides++
}

func (f *fakeUI) LoadVideo(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoURL = url
	f.loads++
}

func (f *fakeUI) NotifyFailure(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, message)
}

var (
	testBoundaries = Boundaries{StartDate: "2024-01-01", EndDate: "2024-01-07"}
	testViewport   = Viewport{Extent: [4]float64{-10, -10, 10, 10}, Size: [2]int{800, 600}}
)

func newWorkflow(t *testing.T, handler http.HandlerFunc) (*Workflow, *fakeUI) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ui := &fakeUI{videoURL: "/videos/previous.mp4"}
	client := NewClient(srv.URL, 5*time.Second)
	return NewWorkflow(client, ui, ui, ui), ui
}

func TestRequestAnimation_Success(t *testing.T) {
	var got map[string]interface{}
	var method, path, contentType string

	w, ui := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) {
		method, path, contentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(`{"video_url":"/videos/abc.mp4"}`))
	})

	url, err := w.RequestAnimation(context.Background(), testBoundaries, testViewport)
	require.NoError(t, err)

	assert.Equal(t, "/videos/abc.mp4", url)
	assert.Equal(t, "/videos/abc.mp4", ui.videoURL)
	assert.Equal(t, 1, ui.loads)
	assert.False(t, ui.busy)
	assert.Equal(t, []string{BusyMessage}, ui.messages)
	assert.Equal(t, 1, ui.hides)
	assert.Empty(t, ui.failures)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, Endpoint, path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, []interface{}{-10.0, -10.0, 10.0, 10.0}, got["bbox"])
	assert.Equal(t, "2024-01-01", got["start_date"])
	assert.Equal(t, "2024-01-07", got["end_date"])
	assert.Equal(t, []interface{}{800.0, 600.0}, got["size"])
	assert.Equal(t, 30.0, got["fps"])
}

func TestRequestAnimation_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: ErrBadStatus,
		},
		{
			name: "bad request with error body",
			handler: func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(http.StatusBadRequest)
				_, _ = rw.Write([]byte(`{"error":"No valid images found for the selected dates"}`))
			},
			wantErr: ErrBadStatus,
		},
		{
			name: "body is not json",
			handler: func(rw http.ResponseWriter, r *http.Request) {
				_, _ = rw.Write([]byte(`<html>oops</html>`))
			},
			wantErr: ErrMalformedResponse,
		},
		{
			name: "missing video_url",
			handler: func(rw http.ResponseWriter, r *http.Request) {
				_, _ = rw.Write([]byte(`{"url":"/videos/abc.mp4"}`))
			},
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, ui := newWorkflow(t, tc.handler)

			_, err := w.RequestAnimation(context.Background(), testBoundaries, testViewport)

			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, []string{FailureMessage}, ui.failures)
			assert.False(t, ui.busy)
			assert.Equal(t, 1, ui.hides)
			assert.Equal(t, "/videos/previous.mp4", ui.videoURL, "video surface is untouched")
			assert.Zero(t, ui.loads)
		})
	}
}

func TestRequestAnimation_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	ui := &fakeUI{}
	w := NewWorkflow(NewClient(base, time.Second), ui, ui, ui)

	_, err := w.RequestAnimation(context.Background(), testBoundaries, testViewport)

	assert.Error(t, err)
	assert.Equal(t, []string{FailureMessage}, ui.failures)
	assert.False(t, ui.busy)
	assert.Zero(t, ui.loads)
}

func TestRequestAnimation_AtMostOneInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	w, ui := newWorkflow(t, func(rw http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		_, _ = rw.Write([]byte(`{"video_url":"/videos/first.mp4"}`))
	})

	done := make(chan error, 1)
	go func() {
		_, err := w.RequestAnimation(context.Background(), testBoundaries, testViewport)
		done <- err
	}()

	<-started
	assert.True(t, w.InFlight())

	_, err := w.RequestAnimation(context.Background(), testBoundaries, testViewport)
	assert.ErrorIs(t, err, ErrInFlight)

	close(release)
	require.NoError(t, <-done)

	assert.False(t, w.InFlight())
	assert.Equal(t, 1, calls)
	assert.Equal(t, "/videos/first.mp4", ui.videoURL)
	assert.Len(t, ui.messages, 1)
	assert.Equal(t, 1, ui.hides)
	assert.Empty(t, ui.failures)
}

func TestNewRequest_DoesNotReorderDates(t *testing.T) {
	r := NewRequest(Boundaries{StartDate: "2024-02-01", EndDate: "2024-01-01"}, testViewport)

	assert.Equal(t, "2024-02-01", r.StartDate)
	assert.Equal(t, "2024-01-01", r.EndDate)
	assert.Equal(t, FPS, r.FPS)
}
