package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.October, 16, 15, 30, 0, 0, time.UTC)

func newTestController(t *testing.T) (*Controller, *fakeClock, *recordingSurface) {
	t.Helper()
	clock := newFakeClock(testNow)
	surface := &recordingSurface{}
	c := NewController(surface, surface, Options{Clock: clock, Location: time.UTC})
	t.Cleanup(c.Close)
	return c, clock, surface
}

func TestNewController_InitialState(t *testing.T) {
	c, clock, surface := newTestController(t)

	s := c.State()
	assert.Equal(t, "2026-10-16", s.Current.String())
	assert.Equal(t, "2021-10-16", s.Min.String())
	assert.Equal(t, s.Current, s.Max)
	assert.False(t, s.Playing)
	assert.Zero(t, clock.Active())
	assert.Equal(t, []Date{s.Current}, surface.shown)
}

func TestSetDate_NormalizesAndClamps(t *testing.T) {
	c, _, surface := newTestController(t)
	r := c.Range()

	cases := []struct {
		name string
		in   time.Time
		want Date
	}{
		{"within range with time of day", time.Date(2024, 5, 10, 18, 42, 7, 0, time.UTC), DateOf(2024, 5, 10)},
		{"before min", time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), r.Min},
		{"after max", time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC), r.Max},
		{"exactly min", r.Min.In(time.UTC), r.Min},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c.SetDate(tc.in)
			assert.Equal(t, tc.want, c.State().Current)
			times := surface.layerTimes()
			require.NotEmpty(t, times)
			assert.Equal(t, tc.want.String(), times[len(times)-1])
		})
	}
}

func TestSetDate_RepeatedSameDateIsSafe(t *testing.T) {
	c, _, surface := newTestController(t)
	d := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)

	c.SetDate(d)
	before := c.State()
	c.SetDate(d)

	assert.Equal(t, before, c.State())
	assert.Equal(t, []string{"2024-01-07", "2024-01-07"}, surface.layerTimes())
}

func TestTogglePlay_TwiceLeavesNoTimer(t *testing.T) {
	c, clock, surface := newTestController(t)
	c.SetDay(DateOf(2024, 1, 1))

	assert.True(t, c.TogglePlay())
	assert.False(t, c.TogglePlay())

	assert.False(t, c.State().Playing)
	assert.Zero(t, clock.Active())

	clock.Advance(5 * TickInterval)
	assert.Equal(t, "2024-01-01", c.State().Current.String())
	assert.Equal(t, []bool{true, false}, surface.playing)
}

func TestPlaying_AdvancesOneDayPerTick(t *testing.T) {
	c, clock, surface := newTestController(t)
	c.SetDay(DateOf(2024, 1, 1))

	c.TogglePlay()
	assert.Equal(t, 1, clock.Active())

	clock.Advance(3 * TickInterval)

	assert.Equal(t, "2024-01-04", c.State().Current.String())
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"}, surface.layerTimes())

	clock.Advance(TickInterval / 2)
	assert.Equal(t, "2024-01-04", c.State().Current.String())
}

func TestPlaying_WrapsFromMaxToMin(t *testing.T) {
	c, clock, _ := newTestController(t)
	r := c.Range()
	c.SetDay(r.Max)

	c.TogglePlay()
	clock.Advance(TickInterval)

	s := c.State()
	assert.Equal(t, r.Min, s.Current)
	assert.True(t, s.Playing, "playback keeps looping after the wrap")

	clock.Advance(TickInterval)
	assert.Equal(t, r.Min.AddDays(1), c.State().Current)
}

func TestStep_AtBoundsIsNoop(t *testing.T) {
	c, _, surface := newTestController(t)
	r := c.Range()

	c.SetDay(r.Max)
	calls := len(surface.layerTimes())
	c.StepForward()
	assert.Equal(t, r.Max, c.State().Current)
	assert.Len(t, surface.layerTimes(), calls, "a blocked step does not refresh the layer")

	c.SetDay(r.Min)
	c.StepBackward()
	assert.Equal(t, r.Min, c.State().Current)
}

func TestStep_MovesOneDay(t *testing.T) {
	c, _, _ := newTestController(t)
	c.SetDay(DateOf(2024, 3, 1))

	c.StepBackward()
	assert.Equal(t, "2024-02-29", c.State().Current.String())

	c.StepForward()
	c.StepForward()
	assert.Equal(t, "2024-03-02", c.State().Current.String())
}

func TestStepForward_WhilePlayingStopsAndAdvancesOnce(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.SetDay(DateOf(2024, 6, 1))
	c.TogglePlay()

	c.StepForward()

	s := c.State()
	assert.False(t, s.Playing)
	assert.Equal(t, "2024-06-02", s.Current.String())
	assert.Zero(t, clock.Active())

	clock.Advance(10 * TickInterval)
	assert.Equal(t, "2024-06-02", c.State().Current.String())
}

func TestScrub_StopsPlayback(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.TogglePlay()

	c.Scrub(time.Date(2023, 8, 15, 13, 0, 0, 0, time.UTC))

	s := c.State()
	assert.False(t, s.Playing)
	assert.Equal(t, "2023-08-15", s.Current.String())
	assert.Zero(t, clock.Active())
}

func TestClose_ReleasesTimer(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.SetDay(DateOf(2024, 1, 1))
	c.TogglePlay()

	c.Close()

	assert.False(t, c.State().Playing)
	assert.Zero(t, clock.Active())
	clock.Advance(3 * TickInterval)
	assert.Equal(t, "2024-01-01", c.State().Current.String())
}

func TestTick_FromStoppedTimerIsDiscarded(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.SetDay(DateOf(2024, 1, 1))

	c.TogglePlay()
	staleTick := clock.lastCallback()
	require.NotNil(t, staleTick)
	c.TogglePlay()

	staleTick()
	assert.Equal(t, "2024-01-01", c.State().Current.String())

	// A new playback session ignores ticks from the previous one.
	c.TogglePlay()
	staleTick()
	assert.Equal(t, "2024-01-01", c.State().Current.String())
	clock.Advance(TickInterval)
	assert.Equal(t, "2024-01-02", c.State().Current.String())
}

func TestRestartPlayback_SingleTimer(t *testing.T) {
	c, clock, _ := newTestController(t)

	for i := 0; i < 5; i++ {
		c.TogglePlay()
		c.TogglePlay()
	}
	c.TogglePlay()

	assert.Equal(t, 1, clock.Active())
}

func TestSystemClock_EveryStops(t *testing.T) {
	fired := make(chan struct{}, 16)
	timer := SystemClock().Every(5*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	timer.Stop()
	timer.Stop()
}
