// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttler runs the wrapped function on the leading edge and then at most
// once per interval. Calls that land inside the window are dropped, not
// queued.
type Throttler struct {
	limiter *rate.Limiter
	fn      func()
}

// NewThrottler returns a Throttler around fn.
func NewThrottler(interval time.Duration, fn func()) *Throttler {
	return &Throttler{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		fn:      fn,
	}
}

// Trigger invokes the wrapped function if the window allows it and reports
// whether it ran.
func (t *Throttler) Trigger() bool {
	if !t.limiter.Allow() {
		return false
	}
	t.fn()
	return true
}

// Allow consumes a slot without invoking the wrapped function. Useful when
// the caller wants to gate its own work.
func (t *Throttler) Allow() bool {
	return t.limiter.Allow()
}
