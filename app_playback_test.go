package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagery-timeline/internal/mapview"
	"imagery-timeline/internal/playback"
)

type recordingEmitter struct {
	events []string
}

func (e *recordingEmitter) Emit(event string, data ...interface{}) {
	e.events = append(e.events, event)
}

func newPlaybackApp(t *testing.T) *App {
	t.Helper()
	m := mapview.New(&recordingEmitter{}, "http://wms", "")
	c := playback.NewController(m, m, playback.Options{Location: time.UTC})
	t.Cleanup(c.Close)
	return &App{mapView: m, playback: c}
}

func TestSetDate_MovesMapAndSlider(t *testing.T) {
	a := newPlaybackApp(t)
	iso := time.Now().UTC().AddDate(0, 0, -10).Format("2006-01-02")

	require.NoError(t, a.SetDate(iso))
	assert.Equal(t, iso, a.GetPlaybackState().Current)
	assert.Equal(t, iso, a.GetMapView().Time)

	assert.Error(t, a.SetDate("10/01/2024"))
	assert.Equal(t, iso, a.GetPlaybackState().Current, "a bad date changes nothing")
}

func TestScrubTo_StopsPlayback(t *testing.T) {
	a := newPlaybackApp(t)
	iso := time.Now().UTC().AddDate(0, -2, 0).Format("2006-01-02")

	require.NoError(t, a.ScrubTo(iso))
	state := a.GetPlaybackState()
	assert.Equal(t, iso, state.Current)
	assert.False(t, state.Playing)

	assert.Error(t, a.ScrubTo(""))
}

func TestGetMapView_ReportsHiddenLayers(t *testing.T) {
	a := newPlaybackApp(t)
	assert.Empty(t, a.GetMapView().HiddenLayers)

	require.NoError(t, a.SetReferenceLayerVisible(2, false))
	view := a.GetMapView()
	assert.Equal(t, []int{2}, view.HiddenLayers)
	assert.False(t, view.Visibility[2])
	assert.Equal(t, mapview.DefaultImageryLayer, view.Layer)
}
