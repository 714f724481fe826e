// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer coalesces a burst of Trigger calls into a single invocation of
// the wrapped function, fired once the burst has been quiet for the full
// delay. The trailing call always runs with the latest state because the
// wrapped function is expected to read its inputs at fire time.
type Debouncer struct {
	mu      sync.Mutex
	clk     clock.Clock
	delay   time.Duration
	fn      func()
	timer   *clock.Timer
	pending bool
}

// DebounceOption customizes a Debouncer.
type DebounceOption func(*Debouncer)

// WithDebounceClock swaps the wall clock, used by tests.
func WithDebounceClock(clk clock.Clock) DebounceOption {
	return func(d *Debouncer) {
		d.clk = clk
	}
}

// NewDebouncer returns a Debouncer that invokes fn after Trigger calls have
// settled for delay.
func NewDebouncer(delay time.Duration, fn func(), opts ...DebounceOption) *Debouncer {
	d := &Debouncer{
		clk:   clock.New(),
		delay: delay,
		fn:    fn,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Trigger schedules (or reschedules) the trailing invocation.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	if d.timer == nil {
		d.timer = d.clk.AfterFunc(d.delay, d.fire)
		return
	}
	d.timer.Reset(d.delay)
}

// Flush fires the pending invocation immediately, if there is one.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fire := d.pending
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	if fire {
		d.fn()
	}
}

// Stop drops any pending invocation without firing it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()

	d.fn()
}
