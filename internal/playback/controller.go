// Package playback owns the map's current date and the three ways of changing
// it: slider scrubbing, timed playback and single-day steps.
package playback

import (
	"log"
	"sync"
	"time"
)

const (
	// TickInterval is the fixed playback period; each tick advances one day.
	TickInterval = time.Second

	// RangeYears is how far back the slider reaches from today.
	RangeYears = 5
)

// TimeLayer receives the TIME parameter of the primary imagery layer.
type TimeLayer interface {
	SetLayerTime(isoDate string)
}

// Display shows the current date and whether playback is running.
type Display interface {
	ShowDate(d Date)
	ShowPlaying(playing bool)
}

// Options configures a Controller. Zero values select the system clock and time.Local.
type Options struct {
	Clock    Clock
	Location *time.Location
}

// State is a snapshot of the controller.
type State struct {
	Current Date
	Min     Date
	Max     Date
	Playing bool
}

// Controller is the Idle/Playing state machine. All mutations, including
// timer ticks, are serialized by mu; layer and display callbacks run under
// it and must not call back into the controller.
type Controller struct {
	mu      sync.Mutex
	layer   TimeLayer
	display Display
	clock   Clock
	loc     *time.Location
	bounds  Range

	current Date
	playing bool
	timer   Timer
	// generation changes on every start and stop so that a tick already
	// dispatched by a stopped timer is discarded.
	generation uint64
}

// NewController creates an idle controller positioned on today, with a range
// of [today - RangeYears, today].
func NewController(layer TimeLayer, display Display, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	today := Normalize(opts.Clock.Now(), opts.Location)
	c := &Controller{
		layer:   layer,
		display: display,
		clock:   opts.Clock,
		loc:     opts.Location,
		bounds:  YearsBack(today, RangeYears),
		current: today,
	}
	c.display.ShowDate(today)

	log.Printf("[Playback] Date range %s to %s", c.bounds.Min, c.bounds.Max)
	return c
}

// SetDate moves to the calendar day of t, clamped to the range. The layer and
// display are refreshed even when the day does not change.
func (c *Controller) SetDate(t time.Time) {
	c.SetDay(Normalize(t, c.loc))
}

// SetDay is SetDate for an already normalized day.
func (c *Controller) SetDay(d Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setDayLocked(d)
}

// Scrub handles a slider drag: playback stops before the date changes.
func (c *Controller) Scrub(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.setDayLocked(Normalize(t, c.loc))
}

// StepForward stops playback and moves one day ahead unless already at the end.
func (c *Controller) StepForward() {
	c.step(1)
}

// StepBackward stops playback and moves one day back unless already at the start.
func (c *Controller) StepBackward() {
	c.step(-1)
}

func (c *Controller) step(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	next := c.current.AddDays(delta)
	if !c.bounds.Contains(next) {
		return
	}
	c.setDayLocked(next)
}

// TogglePlay flips between Idle and Playing and returns the new playing state.
func (c *Controller) TogglePlay() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing {
		c.stopLocked()
		return false
	}
	c.startLocked()
	return true
}

// Stop pauses playback if it is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Close is called when the host surface goes away. It shares the stop path,
// so a running timer is always released.
func (c *Controller) Close() {
	c.Stop()
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Current: c.current,
		Min:     c.bounds.Min,
		Max:     c.bounds.Max,
		Playing: c.playing,
	}
}

// Range returns the fixed date range.
func (c *Controller) Range() Range {
	return c.bounds
}

// Location returns the zone dates are normalized in.
func (c *Controller) Location() *time.Location {
	return c.loc
}

func (c *Controller) setDayLocked(d Date) {
	d = c.bounds.Clamp(d)
	c.current = d
	c.layer.SetLayerTime(d.String())
	c.display.ShowDate(d)
}

func (c *Controller) startLocked() {
	if c.timer != nil {
		// Unreachable from Idle; release it so at most one timer ever exists.
		log.Printf("[Playback] Releasing stray timer before starting playback")
		c.timer.Stop()
		c.timer = nil
	}

	c.generation++
	gen := c.generation
	c.playing = true
	c.timer = c.clock.Every(TickInterval, func() { c.tick(gen) })
	c.display.ShowPlaying(true)
}

func (c *Controller) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	if c.playing {
		c.playing = false
		c.display.ShowPlaying(false)
	}
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing || gen != c.generation {
		return
	}

	next := c.current.AddDays(1)
	if next > c.bounds.Max {
		next = c.bounds.Min
	}
	c.setDayLocked(next)
}
