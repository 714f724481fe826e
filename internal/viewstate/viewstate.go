// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package viewstate tracks which views a session has visited and how lively
// each one still is, so switches can be answered from warm payloads and the
// next likely views warmed behind the user's back.
package viewstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/benbjohnson/clock"

	"github.com/go-preheat/preheat/internal/netstatus"
	"github.com/go-preheat/preheat/internal/preload"
)

// State classifies how ready a view is.
type State int

const (
	// StateCold means the view has not been visited recently.
	StateCold State = iota
	// StateWarm means the view was visited within the warm window.
	StateWarm
	// StateHot means the view is the active one.
	StateHot
)

func (s State) String() string {
	switch s {
	case StateHot:
		return "hot"
	case StateWarm:
		return "warm"
	default:
		return "cold"
	}
}

// Binding is a view registered with the session plus its visit bookkeeping.
type Binding struct {
	View        preload.View
	State       State
	LastVisited time.Time
	Visits      int
}

// Transition records one switch. FromState is the state the target view was
// in when the switch landed, which is the number that matters for judging
// how well warming works.
type Transition struct {
	From      string
	To        string
	FromState State
	At        time.Time
}

// SwitchStats counts switches by how warm the target was.
type SwitchStats struct {
	Switches   uint64
	HotHits    uint64
	WarmHits   uint64
	ColdMisses uint64
}

const (
	defaultWarmWindow  = 5 * time.Minute
	defaultHistorySize = 64

	// slowTTLFactor stretches TTLs on a slow connection so payloads are
	// refetched less often.
	slowTTLFactor = 4
)

// Option customizes a Session.
type Option func(*Session)

// WithWarmWindow sets how long after a visit a view still counts as warm.
func WithWarmWindow(d time.Duration) Option {
	return func(s *Session) { s.warmWindow = d }
}

// WithHistorySize bounds the transition history.
func WithHistorySize(n int) Option {
	return func(s *Session) { s.historySize = n }
}

// WithSessionClock swaps the wall clock, used by tests.
func WithSessionClock(clk clock.Clock) Option {
	return func(s *Session) { s.clk = clk }
}

// Session tracks bound views and the active one. Safe for concurrent use.
type Session struct {
	pre *preload.Manager
	mon *netstatus.Monitor
	clk clock.Clock

	warmWindow  time.Duration
	historySize int

	mu      sync.Mutex
	views   map[string]*Binding
	order   []string
	active  string
	history []Transition
	stats   SwitchStats
}

// NewSession builds a Session over the preload manager and monitor.
func NewSession(pre *preload.Manager, mon *netstatus.Monitor, opts ...Option) *Session {
	s := &Session{
		pre:         pre,
		mon:         mon,
		clk:         clock.New(),
		warmWindow:  defaultWarmWindow,
		historySize: defaultHistorySize,
		views:       map[string]*Binding{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind registers views with the session. Rebinding a name replaces its view
// but keeps the visit history.
func (s *Session) Bind(views ...preload.View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range views {
		if b, ok := s.views[v.Name]; ok {
			b.View = v
			continue
		}
		s.views[v.Name] = &Binding{View: v}
		s.order = append(s.order, v.Name)
	}
}

// Switch makes name the active view. The returned Transition reports how
// warm the target was. Unless offline, the target and its prefetch list are
// hinted so the payload is fresh by the time it renders.
func (s *Session) Switch(ctx context.Context, name string) (Transition, error) {
	s.mu.Lock()

	b, ok := s.views[name]
	if !ok {
		s.mu.Unlock()
		return Transition{}, fmt.Errorf("unknown view %q", name)
	}

	now := s.clk.Now()
	state := s.classify(b, now)

	tr := Transition{
		From:      s.active,
		To:        name,
		FromState: state,
		At:        now,
	}

	s.stats.Switches++
	switch state {
	case StateHot:
		s.stats.HotHits++
	case StateWarm:
		s.stats.WarmHits++
	case StateCold:
		s.stats.ColdMisses++
	}

	s.active = name
	b.LastVisited = now
	b.Visits++

	s.history = append(s.history, tr)
	if len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}

	view := b.View
	s.mu.Unlock()

	log.Debugf("switch %s -> %s (%s)", tr.From, tr.To, state)

	snap := s.mon.Status()
	if state != StateHot && snap.Status != netstatus.StatusOffline {
		view.TTL = effectiveTTL(snap, view.TTL)
		s.pre.Hint(ctx, view)
	}

	return tr, nil
}

// effectiveTTL stretches a TTL when the connection is slow. A zero TTL
// stays zero and keeps meaning the cache default.
func effectiveTTL(snap netstatus.Snapshot, ttl time.Duration) time.Duration {
	if ttl > 0 && snap.Speed == netstatus.SpeedSlow {
		return ttl * slowTTLFactor
	}
	return ttl
}

// Active returns the name of the active view, empty before any switch.
func (s *Session) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Binding returns a copy of one binding with its state classified as of now.
func (s *Session) Binding(name string) (Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.views[name]
	if !ok {
		return Binding{}, false
	}

	out := *b
	out.State = s.classify(b, s.clk.Now())
	return out, true
}

// Bindings returns all bindings in bind order, states classified as of now.
func (s *Session) Bindings() []Binding {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	out := make([]Binding, 0, len(s.order))
	for _, name := range s.order {
		b := s.views[name]
		c := *b
		c.State = s.classify(b, now)
		out = append(out, c)
	}
	return out
}

// History returns the most recent n transitions, oldest first. n <= 0 means
// all retained history.
func (s *Session) History(n int) []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]Transition, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

// Stats returns a snapshot of the switch counters.
func (s *Session) Stats() SwitchStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// classify must be called with the lock held.
func (s *Session) classify(b *Binding, now time.Time) State {
	if b.View.Name == s.active {
		return StateHot
	}
	if !b.LastVisited.IsZero() && now.Sub(b.LastVisited) <= s.warmWindow {
		return StateWarm
	}
	return StateCold
}
