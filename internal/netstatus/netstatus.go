// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package netstatus watches reachability and latency of a probe endpoint and
// classifies the connection so the fetch and warm paths can adapt. It keeps
// its own plain HTTP client on purpose: probes must not ride through the
// caching request manager they inform.
package netstatus

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/benbjohnson/clock"
)

// ConnectionStatus classifies reachability.
type ConnectionStatus int

const (
	StatusUnknown ConnectionStatus = iota
	StatusOnline
	StatusDegraded
	StatusOffline
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusDegraded:
		return "degraded"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// ConnectionSpeed classifies smoothed probe latency into coarse buckets.
type ConnectionSpeed int

const (
	SpeedUnknown ConnectionSpeed = iota
	SpeedFast
	SpeedModerate
	SpeedSlow
)

func (s ConnectionSpeed) String() string {
	switch s {
	case SpeedFast:
		return "fast"
	case SpeedModerate:
		return "moderate"
	case SpeedSlow:
		return "slow"
	default:
		return "unknown"
	}
}

const (
	// DefaultProbeURL answers 204 with an empty body from most networks.
	DefaultProbeURL = "https://www.gstatic.com/generate_204"

	DefaultInterval         = 30 * time.Second
	DefaultTimeout          = 5 * time.Second
	DefaultFailureThreshold = 3

	fastLatency     = 150 * time.Millisecond
	moderateLatency = 600 * time.Millisecond
	degradedLatency = 2 * time.Second

	// ewmaWeight is the weight of the newest sample in the smoothed latency.
	ewmaWeight = 0.5
)

// Snapshot is a point-in-time view of the connection.
type Snapshot struct {
	Status     ConnectionStatus
	Speed      ConnectionSpeed
	Latency    time.Duration // smoothed
	LastProbe  time.Time
	LastChange time.Time
	Failures   int // consecutive
	Probes     uint64
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithProbeURL points the monitor at a different endpoint.
func WithProbeURL(u string) Option {
	return func(m *Monitor) {
		m.probeURL = u
	}
}

// WithInterval sets the background probe cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.interval = d
	}
}

// WithTimeout bounds a single probe.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		m.timeout = d
	}
}

// WithHTTPClient swaps the probe transport, used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Monitor) {
		m.client = c
	}
}

// WithFailureThreshold sets how many consecutive failures flip the status to
// offline.
func WithFailureThreshold(n int) Option {
	return func(m *Monitor) {
		m.failureThreshold = n
	}
}

// WithMonitorClock swaps the wall clock, used by tests.
func WithMonitorClock(clk clock.Clock) Option {
	return func(m *Monitor) {
		m.clk = clk
	}
}

// Monitor probes the endpoint and publishes classification changes. All
// methods are safe for concurrent use.
type Monitor struct {
	mu sync.Mutex

	probeURL         string
	interval         time.Duration
	timeout          time.Duration
	failureThreshold int
	client           *http.Client
	clk              clock.Clock

	snap   Snapshot
	forced bool
	subs   []chan Snapshot

	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewMonitor builds a Monitor with the standard probe endpoint and cadence.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		probeURL:         DefaultProbeURL,
		interval:         DefaultInterval,
		timeout:          DefaultTimeout,
		failureThreshold: DefaultFailureThreshold,
		clk:              clock.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil {
		m.client = &http.Client{Timeout: m.timeout}
	}
	return m
}

// Status returns the current snapshot.
func (m *Monitor) Status() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Force pins the status, bypassing probes until cleared with StatusUnknown.
// Used by the --assume-offline flag and by tests.
func (m *Monitor) Force(status ConnectionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if status == StatusUnknown {
		m.forced = false
		return
	}
	m.forced = true
	m.transition(status, m.snap.Speed)
}

// Subscribe returns a channel that receives a Snapshot whenever the status
// or speed classification changes, plus a cancel func. Slow subscribers miss
// updates rather than blocking the monitor.
func (m *Monitor) Subscribe(buffer int) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, buffer)

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

// Probe performs one synchronous probe and returns the updated snapshot.
func (m *Monitor) Probe(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := m.clk.Now()
	err := m.ping(ctx)
	sample := m.clk.Now().Sub(start)

	m.observe(sample, err)
	return m.Status()
}

// Start launches the background probe loop. The first probe fires
// immediately. Calling Start twice is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.loop(ctx)
}

// Stop halts the background loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	m.Probe(ctx)

	ticker := m.clk.Ticker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Probe(ctx)
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ping hits the probe URL. Any response at all counts as reachable; only
// transport-level failures count against the connection.
func (m *Monitor) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// observe folds one probe result into the snapshot.
func (m *Monitor) observe(sample time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	m.snap.LastProbe = now
	m.snap.Probes++

	if m.forced {
		return
	}

	if err != nil {
		m.snap.Failures++
		log.WithError(err).Debugf("probe failed (%d consecutive)", m.snap.Failures)

		status := StatusDegraded
		if m.snap.Failures >= m.failureThreshold {
			status = StatusOffline
		}
		m.transition(status, m.snap.Speed)
		return
	}

	m.snap.Failures = 0

	if m.snap.Latency == 0 {
		m.snap.Latency = sample
	} else {
		smoothed := ewmaWeight*float64(sample) + (1-ewmaWeight)*float64(m.snap.Latency)
		m.snap.Latency = time.Duration(smoothed)
	}

	status := StatusOnline
	if m.snap.Latency >= degradedLatency {
		status = StatusDegraded
	}
	m.transition(status, classifySpeed(m.snap.Latency))
}

// transition applies a classification and notifies subscribers when it
// actually changes.
func (m *Monitor) transition(status ConnectionStatus, speed ConnectionSpeed) {
	if m.snap.Status == status && m.snap.Speed == speed {
		return
	}

	log.Debugf("connection %s/%s -> %s/%s", m.snap.Status, m.snap.Speed, status, speed)
	m.snap.Status = status
	m.snap.Speed = speed
	m.snap.LastChange = m.clk.Now()

	for _, sub := range m.subs {
		select {
		case sub <- m.snap:
		default:
		}
	}
}

func classifySpeed(latency time.Duration) ConnectionSpeed {
	switch {
	case latency <= 0:
		return SpeedUnknown
	case latency < fastLatency:
		return SpeedFast
	case latency < moderateLatency:
		return SpeedModerate
	default:
		return SpeedSlow
	}
}
