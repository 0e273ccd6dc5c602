package clock

import (
	"context"
	"sync"
	"time"
)

// Fake is a manually driven Clock for tests.
//
// Sleep does not block: it records the requested duration and advances the
// fake time by that amount, which fires any tickers that come due.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	sleeps  []time.Duration
}

var _ Clock = (*Fake)(nil)

// NewFake creates a Fake clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker registers a ticker that fires when Advance crosses its next deadline.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{
		clock:  f,
		period: d,
		next:   f.now.Add(d),
		ch:     make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, t)
	return t
}

// Sleep records d and advances the clock.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	if d > 0 {
		f.Advance(d)
	}
	return nil
}

// Advance moves the clock forward and fires due tickers. A ticker whose
// channel is full drops the tick, matching time.Ticker.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	active := make([]*fakeTicker, 0, len(f.tickers))
	for _, t := range f.tickers {
		if !t.stopped {
			active = append(active, t)
		}
	}
	f.tickers = active
	f.mu.Unlock()

	for _, t := range active {
		t.fire(now)
	}
}

// Sleeps returns every duration passed to Sleep so far.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}

// TickerCount reports the number of live tickers.
func (f *Fake) TickerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	clock   *Fake
	period  time.Duration
	next    time.Time
	stopped bool
	ch      chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}

func (t *fakeTicker) fire(now time.Time) {
	t.clock.mu.Lock()
	if t.stopped || t.period <= 0 || now.Before(t.next) {
		t.clock.mu.Unlock()
		return
	}
	for !now.Before(t.next) {
		t.next = t.next.Add(t.period)
	}
	t.clock.mu.Unlock()

	select {
	case t.ch <- now:
	default:
	}
}
