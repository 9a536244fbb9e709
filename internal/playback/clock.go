package playback

import (
	"sync"
	"time"
)

// Timer is a handle to a recurring callback. Stop must be safe to call more than once.
type Timer interface {
	Stop()
}

// Clock abstracts wall time and recurring timers so playback can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	// Every calls fn once per period until the returned Timer is stopped.
	Every(period time.Duration, fn func()) Timer
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Every(period time.Duration, fn func()) Timer {
	t := &tickerTimer{
		ticker: time.NewTicker(period),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.ticker.C:
				fn()
			case <-t.done:
				return
			}
		}
	}()
	return t
}

type tickerTimer struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// Stop does not wait for a callback that is already running.
func (t *tickerTimer) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
