// Package mapview is the Go side of the map surface. It keeps the state the
// frontend map must reflect and forwards every change as an event.
package mapview

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"imagery-timeline/internal/playback"
)

// Events emitted to the frontend
const (
	EventLayerTime    = "map:layer-time"
	EventLayerVisible = "map:layer-visible"
	EventLayerName    = "map:layer-name"
	EventDate         = "playback:date"
	EventPlaying      = "playback:state"
)

// Emitter delivers an event to the frontend (wailsRuntime.EventsEmit in the app).
type Emitter interface {
	Emit(event string, data ...interface{})
}

// DateView is the payload of EventDate.
type DateView struct {
	ISO     string `json:"iso"`
	Display string `json:"display"`
}

// LayerVisibility is the payload of EventLayerVisible.
type LayerVisibility struct {
	Index   int  `json:"index"`
	Visible bool `json:"visible"`
}

// SourceParams describes the WMS source the frontend builds its tile layers from.
type SourceParams struct {
	URL        string     `json:"url"`
	Version    string     `json:"version"`
	Projection string     `json:"projection"`
	Format     string     `json:"format"`
	TileSize   int        `json:"tileSize"`
	Extent     [4]float64 `json:"extent"`
	MinZoom    int        `json:"minZoom"`
	MaxZoom    int        `json:"maxZoom"`
}

// View is a snapshot of the map state.
type View struct {
	Layer      string       `json:"layer"`
	Time       string       `json:"time"`
	Visibility map[int]bool `json:"visibility"`
}

// Map implements playback.TimeLayer and playback.Display.
type Map struct {
	mu      sync.Mutex
	emitter Emitter
	wmsURL  string
	layer   string
	time    string
	visible map[int]bool
}

// New creates a map model with every reference layer visible.
func New(emitter Emitter, wmsURL, layer string) *Map {
	if _, ok := FindImageryLayer(layer); !ok {
		layer = DefaultImageryLayer
	}
	visible := make(map[int]bool, len(ReferenceLayers))
	for _, ref := range ReferenceLayers {
		visible[ref.Index] = true
	}
	return &Map{
		emitter: emitter,
		wmsURL:  wmsURL,
		layer:   layer,
		visible: visible,
	}
}

// SetLayerTime pushes the TIME parameter to the primary imagery layer.
func (m *Map) SetLayerTime(isoDate string) {
	m.mu.Lock()
	m.time = isoDate
	m.mu.Unlock()

	m.emitter.Emit(EventLayerTime, isoDate)
}

// SetLayerVisible toggles a reference layer.
func (m *Map) SetLayerVisible(index int, visible bool) error {
	if _, ok := FindReferenceLayer(index); !ok {
		log.Printf("[Map] Ignoring visibility change for unknown layer index %d", index)
		return fmt.Errorf("no reference layer at index %d", index)
	}

	m.mu.Lock()
	m.visible[index] = visible
	m.mu.Unlock()

	m.emitter.Emit(EventLayerVisible, LayerVisibility{Index: index, Visible: visible})
	return nil
}

// SelectLayer switches the primary imagery layer.
func (m *Map) SelectLayer(nameOrID string) error {
	layer, ok := FindImageryLayer(nameOrID)
	if !ok {
		return fmt.Errorf("unknown imagery layer: %s", nameOrID)
	}

	m.mu.Lock()
	m.layer = layer.Identifier
	m.mu.Unlock()

	m.emitter.Emit(EventLayerName, layer.Identifier)
	return nil
}

// ShowDate refreshes the date display.
func (m *Map) ShowDate(d playback.Date) {
	m.emitter.Emit(EventDate, DateView{ISO: d.String(), Display: d.Display()})
}

// ShowPlaying updates the play/pause button.
func (m *Map) ShowPlaying(playing bool) {
	m.emitter.Emit(EventPlaying, playing)
}

// Layer returns the active imagery layer identifier.
func (m *Map) Layer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.layer
}

// Snapshot returns a copy of the map state.
func (m *Map) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	vis := make(map[int]bool, len(m.visible))
	for k, v := range m.visible {
		vis[k] = v
	}
	return View{Layer: m.layer, Time: m.time, Visibility: vis}
}

// HiddenLayers lists the reference layers currently switched off, by index.
func (m *Map) HiddenLayers() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var hidden []int
	for idx, v := range m.visible {
		if !v {
			hidden = append(hidden, idx)
		}
	}
	sort.Ints(hidden)
	return hidden
}

// Source returns the WMS parameters shared by all map layers.
func (m *Map) Source() SourceParams {
	return SourceParams{
		URL:        m.wmsURL,
		Version:    "1.3.0",
		Projection: "EPSG:4326",
		Format:     "image/jpeg",
		TileSize:   512,
		Extent:     [4]float64{-180, -90, 180, 90},
		MinZoom:    1,
		MaxZoom:    12,
	}
}
