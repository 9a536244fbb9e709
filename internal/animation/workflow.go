package animation

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
)

// ErrInFlight is returned when a request is made while another is still running.
var ErrInFlight = errors.New("an animation request is already in flight")

// Renderer produces a video location for a request (Client in production).
type Renderer interface {
	Generate(ctx context.Context, r Request) (string, error)
}

// BusyIndicator shows a message while the request runs.
type BusyIndicator interface {
	ShowBusy(message string)
	HideBusy()
}

// VideoSurface plays the generated video. LoadVideo replaces the source,
// reloads the player and reveals it.
type VideoSurface interface {
	LoadVideo(url string)
}

// Notifier shows a user-facing failure message.
type Notifier interface {
	NotifyFailure(message string)
}

// Workflow drives one animation request from click to result.
type Workflow struct {
	renderer Renderer
	busy     BusyIndicator
	video    VideoSurface
	notifier Notifier
	inFlight atomic.Bool
}

// NewWorkflow wires the workflow to its collaborators.
func NewWorkflow(renderer Renderer, busy BusyIndicator, video VideoSurface, notifier Notifier) *Workflow {
	return &Workflow{
		renderer: renderer,
		busy:     busy,
		video:    video,
		notifier: notifier,
	}
}

// RequestAnimation issues a single render request and updates the UI.
//
// Every failure is reported through the Notifier with FailureMessage and the
// video surface is left untouched; the returned error is for logging only.
// The busy indicator is always cleared. A call made while another request is
// running returns ErrInFlight and does nothing else.
func (w *Workflow) RequestAnimation(ctx context.Context, b Boundaries, v Viewport) (string, error) {
	if !w.inFlight.CompareAndSwap(false, true) {
		log.Printf("[Animation] Ignoring request for %s..%s: another request is running", b.StartDate, b.EndDate)
		return "", ErrInFlight
	}
	defer w.inFlight.Store(false)

	w.busy.ShowBusy(BusyMessage)
	defer w.busy.HideBusy()

	log.Printf("[Animation] Requesting %s..%s bbox=%v size=%v", b.StartDate, b.EndDate, v.Extent, v.Size)

	url, err := w.renderer.Generate(ctx, NewRequest(b, v))
	if err != nil {
		log.Printf("[Animation] Failed to generate animation: %v", err)
		w.notifier.NotifyFailure(FailureMessage)
		return "", err
	}

	w.video.LoadVideo(url)
	log.Printf("[Animation] Video ready: %s", url)
	return url, nil
}

// InFlight reports whether a request is currently running.
func (w *Workflow) InFlight() bool {
	return w.inFlight.Load()
}
