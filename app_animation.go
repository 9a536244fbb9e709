package main

import (
	"errors"
	"net/url"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"imagery-timeline/internal/animation"
)

// ===================
// Animation (Wails-exported)
// ===================

// GenerateAnimation requests a smooth animation between two dates for the
// current viewport. Failures are shown through system-notification; the
// returned error is only informational.
func (a *App) GenerateAnimation(b animation.Boundaries, v animation.Viewport) (string, error) {
	a.TrackEvent("animation_requested", map[string]interface{}{
		"startDate": b.StartDate,
		"endDate":   b.EndDate,
		"width":     v.Size[0],
		"height":    v.Size[1],
		"mapLayer":  a.mapView.Layer(),
	})

	videoURL, err := a.workflow.RequestAnimation(a.ctx, b, v)
	if err != nil {
		if !errors.Is(err, animation.ErrInFlight) {
			a.TrackEvent("animation_failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return "", err
	}
	return resolveVideoURL(a.rendererURL, videoURL), nil
}

// IsAnimationInFlight reports whether a render request is running
func (a *App) IsAnimationInFlight() bool {
	return a.workflow != nil && a.workflow.InFlight()
}

// GetRendererURL returns the base URL of the render service in use
func (a *App) GetRendererURL() string {
	return a.rendererURL
}

// ShowBusy implements animation.BusyIndicator
func (a *App) ShowBusy(message string) {
	wailsRuntime.EventsEmit(a.ctx, "animation:busy", map[string]interface{}{
		"busy":    true,
		"message": message,
	})
}

// HideBusy implements animation.BusyIndicator
func (a *App) HideBusy() {
	wailsRuntime.EventsEmit(a.ctx, "animation:busy", map[string]interface{}{
		"busy": false,
	})
}

// LoadVideo implements animation.VideoSurface
func (a *App) LoadVideo(videoURL string) {
	wailsRuntime.EventsEmit(a.ctx, "animation:video", resolveVideoURL(a.rendererURL, videoURL))
}

// NotifyFailure implements animation.Notifier
func (a *App) NotifyFailure(message string) {
	wailsRuntime.EventsEmit(a.ctx, "system-notification", map[string]interface{}{
		"title":   "Animation",
		"message": message,
		"type":    "error",
	})
}

// resolveVideoURL turns a server-relative video path into an absolute URL the
// webview can load. Absolute URLs are returned unchanged.
func resolveVideoURL(base, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil || refURL.IsAbs() || base == "" {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
