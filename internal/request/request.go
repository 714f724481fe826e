// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/go-preheat/preheat/internal/async"
	"github.com/go-preheat/preheat/internal/cache"
	"github.com/go-preheat/preheat/internal/netstatus"
	"github.com/go-preheat/preheat/internal/origin"
)

// ErrOffline is returned when the connection is down and nothing usable is
// cached for the URL.
var ErrOffline = errors.New("offline and nothing cached")

// Policy controls how a request interacts with the cache.
type Policy int

const (
	// PolicyCacheFirst serves a fresh cached copy without touching the
	// network. The default.
	PolicyCacheFirst Policy = iota
	// PolicyRevalidate always refetches, falling back to a stale copy when
	// the origin is unreachable.
	PolicyRevalidate
	// PolicyBypass ignores cached copies entirely but still stores the
	// result for later readers.
	PolicyBypass
)

func (p Policy) String() string {
	switch p {
	case PolicyRevalidate:
		return "revalidate"
	case PolicyBypass:
		return "bypass"
	default:
		return "cache-first"
	}
}

// ParsePolicy maps a flag value to a Policy. The empty string means
// cache-first.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "cache-first", "cache_first":
		return PolicyCacheFirst, nil
	case "revalidate":
		return PolicyRevalidate, nil
	case "bypass", "no-cache":
		return PolicyBypass, nil
	}
	return PolicyCacheFirst, fmt.Errorf("unknown cache policy %q", s)
}

// Request describes one payload fetch.
type Request struct {
	URL     string
	TTL     time.Duration // 0 means the cache default
	Policy  Policy
	Header  http.Header
	NoRetry bool
}

// Result is the outcome of a fetch. Exactly one of the handing-back paths
// filled it: a cache hit, a coalesced or direct origin fetch, or a stale
// fallback.
type Result struct {
	Data      []byte
	Key       string
	Meta      origin.Meta
	FromCache bool
	Stale     bool
	Age       time.Duration
	Latency   time.Duration
	Attempts  int
	RequestID string
}

// Stats counts what the manager has done since construction.
type Stats struct {
	Fetches      uint64
	CacheHits    uint64
	StaleHits    uint64
	NegativeHits uint64
	Coalesced    uint64
	Offline      uint64
	Failures     uint64
}

const defaultNegativeTTL = 30 * time.Second

// Option customizes a Manager.
type Option func(*Manager)

// WithNegativeTTL sets how long permanent failures are remembered before a
// URL is tried again.
func WithNegativeTTL(d time.Duration) Option {
	return func(m *Manager) { m.negTTL = d }
}

// WithRetryOptions replaces the backoff schedule applied around origin
// fetches.
func WithRetryOptions(opts ...async.RetryOption) Option {
	return func(m *Manager) { m.retryOpts = opts }
}

// WithManagerClock swaps the wall clock, used by tests.
func WithManagerClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clk = clk }
}

// Manager is the single path every payload fetch goes through. Safe for
// concurrent use.
type Manager struct {
	cache   *cache.Service
	origins *origin.Registry
	monitor *netstatus.Monitor
	clk     clock.Clock

	negTTL    time.Duration
	retryOpts []async.RetryOption

	group singleflight.Group
	neg   *gocache.Cache
	wg    sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// NewManager wires a Manager over the given cache, origin registry, and
// connection monitor.
func NewManager(c *cache.Service, origins *origin.Registry, monitor *netstatus.Monitor, opts ...Option) *Manager {
	m := &Manager{
		cache:   c,
		origins: origins,
		monitor: monitor,
		clk:     clock.New(),
		negTTL:  defaultNegativeTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	// Expired failures are dropped lazily on read, no janitor goroutine.
	m.neg = gocache.New(m.negTTL, 0)
	return m
}

// Do runs one request through the policy, offline, and retry machinery.
func (m *Manager) Do(ctx context.Context, req Request) (*Result, error) {
	if req.URL == "" {
		return nil, errors.New("request url is required")
	}

	requestID := uuid.NewString()
	key := req.URL
	ctxLog := log.WithField("rid", requestID).WithField("url", req.URL)

	if req.Policy == PolicyCacheFirst {
		if entry, ok := m.cache.GetEntry(key); ok {
			m.bump(func(s *Stats) { s.CacheHits++ })
			ctxLog.Debugf("cache hit (age %s)", entry.Age(m.clk.Now()))
			return m.entryResult(entry, requestID), nil
		}
	}

	status := m.monitor.Status().Status

	if status == netstatus.StatusOffline {
		if req.Policy != PolicyBypass {
			if entry, ok := m.cache.GetStale(key); ok {
				m.bump(func(s *Stats) { s.StaleHits++ })
				ctxLog.Debug("offline, serving cached copy")
				return m.entryResult(entry, requestID), nil
			}
		}
		m.bump(func(s *Stats) { s.Offline++ })
		return nil, fmt.Errorf("%s: %w", req.URL, ErrOffline)
	}

	// On a struggling connection a stale copy now beats a fresh copy in two
	// seconds. Hand it back and refresh behind the caller's back.
	if status == netstatus.StatusDegraded && req.Policy == PolicyCacheFirst {
		if entry, ok := m.cache.GetStale(key); ok {
			m.bump(func(s *Stats) { s.StaleHits++ })
			ctxLog.Debug("degraded, serving stale and revalidating")
			m.revalidate(req)
			return m.entryResult(entry, requestID), nil
		}
	}

	var err error
	if cached, ok := m.neg.Get(key); ok {
		m.bump(func(s *Stats) { s.NegativeHits++ })
		err = cached.(error) //nolint:forcetypeassert
	} else {
		var out any
		var shared bool
		out, err, shared = m.group.Do(key, func() (any, error) {
			return m.fetch(ctx, req)
		})
		if shared {
			m.bump(func(s *Stats) { s.Coalesced++ })
		}
		if err == nil {
			fo := out.(*fetchOutcome) //nolint:forcetypeassert
			return &Result{
				Data:      fo.data,
				Key:       key,
				Meta:      fo.meta,
				Latency:   fo.latency,
				Attempts:  fo.attempts,
				RequestID: requestID,
			}, nil
		}
	}

	if req.Policy != PolicyBypass {
		if entry, ok := m.cache.GetStale(key); ok {
			m.bump(func(s *Stats) { s.StaleHits++ })
			ctxLog.Warnf("fetch failed, serving cached copy: %v", err)
			return m.entryResult(entry, requestID), nil
		}
	}

	return nil, err
}

// Close drains any background revalidations.
func (m *Manager) Close() {
	m.wg.Wait()
}

// Stats returns a snapshot of the manager counters.
func (m *Manager) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

type fetchOutcome struct {
	data     []byte
	meta     origin.Meta
	latency  time.Duration
	attempts int
}

// fetch hits the origin with retry and stores the payload on success.
// Runs inside the singleflight group, one flight per URL.
func (m *Manager) fetch(ctx context.Context, req Request) (*fetchOutcome, error) {
	type payload struct {
		data []byte
		meta origin.Meta
	}

	retryOpts := m.retryOpts
	if req.NoRetry {
		retryOpts = append(append([]async.RetryOption{}, retryOpts...), async.WithMaxRetries(0))
	}

	start := m.clk.Now()
	attempts := 0

	res, err := async.RetryWithData(ctx, func() (payload, error) {
		attempts++
		data, meta, ferr := m.origins.Fetch(ctx, req.URL, req.Header)
		if ferr != nil {
			var statusErr *origin.StatusError
			if errors.As(ferr, &statusErr) && !statusErr.Retryable() {
				return payload{}, async.Permanent(ferr)
			}
			return payload{}, ferr
		}
		return payload{data: data, meta: meta}, nil
	}, retryOpts...)

	latency := m.clk.Now().Sub(start)

	if err != nil {
		m.bump(func(s *Stats) { s.Failures++ })

		var statusErr *origin.StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			m.neg.Set(req.URL, err, gocache.DefaultExpiration)
		}
		return nil, err
	}

	if serr := m.cache.Set(req.URL, res.data, req.TTL); serr != nil {
		log.WithError(serr).Warnf("failed to cache %s", req.URL)
	}

	m.bump(func(s *Stats) { s.Fetches++ })

	return &fetchOutcome{
		data:     res.data,
		meta:     res.meta,
		latency:  latency,
		attempts: attempts,
	}, nil
}

// revalidate refreshes a URL in the background. The singleflight group
// collapses it with any foreground fetch already underway.
func (m *Manager) revalidate(req Request) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, err, _ := m.group.Do(req.URL, func() (any, error) {
			return m.fetch(context.Background(), req)
		})
		if err != nil {
			log.WithError(err).Debugf("revalidation of %s failed", req.URL)
		}
	}()
}

func (m *Manager) entryResult(entry *cache.Entry, requestID string) *Result {
	return &Result{
		Data:      entry.Data,
		Key:       entry.Key,
		FromCache: true,
		Stale:     entry.Stale,
		Age:       entry.Age(m.clk.Now()),
		RequestID: requestID,
	}
}

func (m *Manager) bump(f func(*Stats)) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	f(&m.stats)
}
