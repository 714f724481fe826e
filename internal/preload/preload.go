// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package preload

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/go-preheat/preheat/internal/netstatus"
	"github.com/go-preheat/preheat/internal/request"
)

// Priority orders views during a warm pass.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// ParsePriority maps a config value to a Priority. The empty string means
// normal.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "low":
		return PriorityLow, nil
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", s)
}

// rank gives sort order: high before normal before low.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2 //nolint:mnd
	default:
		return 1
	}
}

// View is one warmable unit: the payload a view of the app renders from,
// plus any secondary payloads worth fetching alongside it.
type View struct {
	Name     string
	URL      string
	Priority Priority
	TTL      time.Duration
	Prefetch []string
}

// Status classifies what a warm pass did with one view.
type Status int

const (
	// StatusWarmed means the payload was fetched and cached.
	StatusWarmed Status = iota
	// StatusFresh means a current copy was already cached, nothing fetched.
	StatusFresh
	// StatusStale means the origin was unreachable and an expired copy is
	// still standing in.
	StatusStale
	// StatusSkipped means the view was not attempted at all.
	StatusSkipped
	// StatusFailed means the fetch failed and nothing usable was cached.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusWarmed:
		return "warmed"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Outcome records what happened to one view during a warm pass.
type Outcome struct {
	View           View
	Status         Status
	Reason         string
	Err            error
	Latency        time.Duration
	Bytes          int
	Attempts       int
	PrefetchWarmed int
	PrefetchFailed int
}

// Report summarizes a warm pass. Outcomes are in warm order, highest
// priority first.
type Report struct {
	Outcomes []Outcome
	Took     time.Duration
	Warmed   int
	Fresh    int
	Stale    int
	Skipped  int
	Failed   int
}

const (
	defaultConcurrency = 4
	defaultHintGap     = 30 * time.Second
	recentHintSize     = 128
)

// Option customizes a Manager.
type Option func(*Manager)

// WithConcurrency bounds how many views warm at once.
func WithConcurrency(n int) Option {
	return func(m *Manager) { m.concurrency = n }
}

// WithHintGap sets how long a hinted view is considered recently warmed.
func WithHintGap(d time.Duration) Option {
	return func(m *Manager) { m.hintGap = d }
}

// WithPreloadClock swaps the wall clock, used by tests.
func WithPreloadClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clk = clk }
}

// Manager runs warm passes and one-off hints over the request manager.
// Safe for concurrent use.
type Manager struct {
	req *request.Manager
	mon *netstatus.Monitor
	clk clock.Clock

	concurrency int
	hintGap     time.Duration
	recent      *lru.Cache[string, time.Time]

	mu   sync.Mutex
	subs []chan Outcome

	wg      sync.WaitGroup
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewManager wires a preload Manager over the request manager and monitor.
func NewManager(req *request.Manager, mon *netstatus.Monitor, opts ...Option) (*Manager, error) {
	m := &Manager{
		req:         req,
		mon:         mon,
		clk:         clock.New(),
		concurrency: defaultConcurrency,
		hintGap:     defaultHintGap,
	}
	for _, opt := range opts {
		opt(m)
	}

	recent, err := lru.New[string, time.Time](recentHintSize)
	if err != nil {
		return nil, err
	}
	m.recent = recent

	return m, nil
}

// WarmAll warms every view, highest priority first, at most concurrency at a
// time. It never fails as a whole; per-view trouble lands in the outcomes.
func (m *Manager) WarmAll(ctx context.Context, views []View) Report {
	start := m.clk.Now()

	sorted := make([]View, len(views))
	copy(sorted, views)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority.rank() < sorted[j].Priority.rank()
	})

	snap := m.mon.Status()
	outcomes := make([]Outcome, len(sorted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, v := range sorted {
		if skip, reason := m.gate(snap, v); skip {
			outcomes[i] = Outcome{View: v, Status: StatusSkipped, Reason: reason}
			m.publish(outcomes[i])
			continue
		}

		g.Go(func() error {
			outcomes[i] = m.warmOne(gctx, v)
			m.publish(outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Outcomes: outcomes,
		Took:     m.clk.Now().Sub(start),
	}
	for _, out := range outcomes {
		switch out.Status {
		case StatusWarmed:
			report.Warmed++
		case StatusFresh:
			report.Fresh++
		case StatusStale:
			report.Stale++
		case StatusSkipped:
			report.Skipped++
		case StatusFailed:
			report.Failed++
		}
	}

	log.Debugf("warm pass: %d warmed, %d fresh, %d stale, %d skipped, %d failed in %s",
		report.Warmed, report.Fresh, report.Stale, report.Skipped, report.Failed, report.Took)

	return report
}

// gate decides whether the connection state rules a view out before any
// fetch is tried.
func (m *Manager) gate(snap netstatus.Snapshot, v View) (bool, string) {
	if snap.Status == netstatus.StatusOffline {
		return true, "offline"
	}
	if snap.Speed == netstatus.SpeedSlow && v.Priority != PriorityHigh {
		return true, "slow connection"
	}
	return false, ""
}

func (m *Manager) warmOne(ctx context.Context, v View) Outcome {
	out := Outcome{View: v}

	res, err := m.req.Do(ctx, request.Request{URL: v.URL, TTL: v.TTL})
	switch {
	case err != nil:
		out.Status = StatusFailed
		out.Err = err
		return out
	case res.Stale:
		out.Status = StatusStale
	case res.FromCache:
		out.Status = StatusFresh
	default:
		out.Status = StatusWarmed
	}
	out.Latency = res.Latency
	out.Bytes = len(res.Data)
	out.Attempts = res.Attempts

	m.rememberWarmed(v.URL)

	for _, u := range v.Prefetch {
		if _, perr := m.req.Do(ctx, request.Request{URL: u, TTL: v.TTL}); perr != nil {
			log.WithError(perr).Debugf("prefetch of %s failed", u)
			out.PrefetchFailed++
			continue
		}
		out.PrefetchWarmed++
		m.rememberWarmed(u)
	}

	return out
}

// Hint warms a single view in the background, typically because the user is
// hovering near it. Returns false when the view was warmed too recently to
// bother. HintWait (or Stop) drains the work.
func (m *Manager) Hint(ctx context.Context, v View) bool {
	now := m.clk.Now()
	if ts, ok := m.recent.Get(v.URL); ok && now.Sub(ts) < m.hintGap {
		log.Debugf("hint for %s ignored, warmed %s ago", v.Name, now.Sub(ts))
		return false
	}
	m.recent.Add(v.URL, now)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.publish(m.warmOne(ctx, v))
	}()

	return true
}

// HintWait blocks until all background hints have finished.
func (m *Manager) HintWait() {
	m.wg.Wait()
}

// rememberWarmed marks a URL so immediate hints for it are no-ops.
func (m *Manager) rememberWarmed(url string) {
	m.recent.Add(url, m.clk.Now())
}

// Subscribe returns a channel receiving every Outcome as it lands, plus a
// cancel func. Slow subscribers miss outcomes rather than stalling a pass.
func (m *Manager) Subscribe(buffer int) (<-chan Outcome, func()) {
	ch := make(chan Outcome, buffer)

	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subs {
			if sub == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (m *Manager) publish(out Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		select {
		case sub <- out:
		default:
		}
	}
}

// StartBackground rewarms the views every interval until Stop. The first
// pass runs immediately. Calling StartBackground twice is a no-op.
func (m *Manager) StartBackground(ctx context.Context, views []View, interval time.Duration) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)

		m.WarmAll(ctx, views)

		ticker := m.clk.Ticker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.WarmAll(ctx, views)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the background loop and drains outstanding hints.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		m.wg.Wait()
		return
	}
	m.started = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
	m.wg.Wait()
}
