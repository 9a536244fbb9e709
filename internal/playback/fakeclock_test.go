package playback

import (
	"sync"
	"time"
)

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	period  time.Duration
	next    time.Time
	fn      func()
	stopped bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Every(period time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, period: period, next: f.now.Add(period), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (t *fakeTimer) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

// Advance moves time forward, firing each due timer once per elapsed period.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var due *fakeTimer
		for _, t := range f.timers {
			if t.stopped || t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = due.next
		due.next = due.next.Add(due.period)
		fn := due.fn
		f.mu.Unlock()

		fn()
	}
}

// Active counts timers that have not been stopped.
func (f *fakeClock) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// lastCallback returns the callback of the most recently created timer.
func (f *fakeClock) lastCallback() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		return nil
	}
	return f.timers[len(f.timers)-1].fn
}

type recordingSurface struct {
	mu      sync.Mutex
	times   []string
	shown   []Date
	playing []bool
}

func (r *recordingSurface) SetLayerTime(isoDate string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, isoDate)
}

func (r *recordingSurface) ShowDate(d Date) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, d)
}

func (r *recordingSurface) ShowPlaying(playing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = append(r.playing, playing)
}

func (r *recordingSurface) layerTimes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.times...)
}
