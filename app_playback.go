package main

import (
	"imagery-timeline/internal/mapview"
	"imagery-timeline/internal/playback"
)

// ===================
// Playback & Map (Wails-exported)
// ===================

// PlaybackState is the controller snapshot sent to the frontend
type PlaybackState struct {
	Current        string `json:"current"`
	CurrentDisplay string `json:"currentDisplay"`
	Min            string `json:"min"`
	Max            string `json:"max"`
	Days           int    `json:"days"`
	Playing        bool   `json:"playing"`
}

// GetPlaybackState returns the current date, range and playing flag
func (a *App) GetPlaybackState() PlaybackState {
	s := a.playback.State()
	return PlaybackState{
		Current:        s.Current.String(),
		CurrentDisplay: s.Current.Display(),
		Min:            s.Min.String(),
		Max:            s.Max.String(),
		Days:           a.playback.Range().Days(),
		Playing:        s.Playing,
	}
}

// SetDate moves the map to a YYYY-MM-DD date without touching playback
func (a *App) SetDate(isoDate string) error {
	d, err := playback.ParseDate(isoDate)
	if err != nil {
		return err
	}
	a.playback.SetDay(d)
	return nil
}

// ScrubTo handles a slider drag; playback stops first
func (a *App) ScrubTo(isoDate string) error {
	d, err := playback.ParseDate(isoDate)
	if err != nil {
		return err
	}
	a.playback.Scrub(d.In(a.playback.Location()))
	return nil
}

// StepForward moves one day ahead and stops playback
func (a *App) StepForward() {
	a.playback.StepForward()
}

// StepBackward moves one day back and stops playback
func (a *App) StepBackward() {
	a.playback.StepBackward()
}

// TogglePlay starts or pauses playback and returns whether it is now playing
func (a *App) TogglePlay() bool {
	playing := a.playback.TogglePlay()
	a.TrackEvent("playback_toggled", map[string]interface{}{
		"playing": playing,
	})
	return playing
}

// GetImageryLayers lists the selectable imagery layers
func (a *App) GetImageryLayers() []mapview.ImageryLayer {
	return mapview.ImageryLayers
}

// GetReferenceLayers lists the reference overlays
func (a *App) GetReferenceLayers() []mapview.ReferenceLayer {
	return mapview.ReferenceLayers
}

// SelectImageryLayer switches the primary imagery layer
func (a *App) SelectImageryLayer(nameOrID string) error {
	return a.mapView.SelectLayer(nameOrID)
}

// SetReferenceLayerVisible shows or hides a reference overlay by map index
func (a *App) SetReferenceLayerVisible(index int, visible bool) error {
	return a.mapView.SetLayerVisible(index, visible)
}

// GetMapSource returns the WMS parameters the frontend builds its layers from
func (a *App) GetMapSource() mapview.SourceParams {
	return a.mapView.Source()
}

// MapView is the map state sent to the frontend
type MapView struct {
	mapview.View
	HiddenLayers []int `json:"hiddenLayers"`
}

// GetMapView returns the current layer, TIME and overlay visibility
func (a *App) GetMapView() MapView {
	return MapView{
		View:         a.mapView.Snapshot(),
		HiddenLayers: a.mapView.HiddenLayers(),
	}
}
