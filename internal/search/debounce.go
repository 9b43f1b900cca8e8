package search

import (
	"sync"
	"time"
)

const DefaultDebounce = 300 * time.Millisecond

// Debouncer calls fn with the latest input once no new input has arrived for
// the quiet window.
type Debouncer struct {
	window time.Duration
	fn     func(string)

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	stopped    bool
	running    sync.WaitGroup
}

func NewDebouncer(window time.Duration, fn func(string)) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{window: window, fn: fn}
}

func (d *Debouncer) Input(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil && d.timer.Stop() {
		d.running.Done()
	}

	d.generation++
	gen := d.generation
	d.running.Add(1)
	d.timer = time.AfterFunc(d.window, func() {
		defer d.running.Done()

		d.mu.Lock()
		current := gen == d.generation && !d.stopped
		d.mu.Unlock()

		if current {
			d.fn(term)
		}
	})
}

// Stop drops pending input and waits for a running callback to return.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil && d.timer.Stop() {
		d.running.Done()
	}
	d.timer = nil
	d.mu.Unlock()

	d.running.Wait()
}
