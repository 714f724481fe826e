// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"crypto/subtle"
	"errors"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultTTL tells Set to use the service-wide default.
	DefaultTTL time.Duration = 0
	// NoExpire marks an entry that never goes stale.
	NoExpire time.Duration = -1

	defaultMaxEntries = 512
	defaultEntryTTL   = 5 * time.Minute
)

// Op identifies what happened to a cache entry.
type Op int

const (
	OpSet Op = iota
	OpInvalidate
	OpExpire
	OpEvict
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpInvalidate:
		return "invalidate"
	case OpExpire:
		return "expire"
	case OpEvict:
		return "evict"
	default:
		return "unknown"
	}
}

// Event is published to subscribers whenever the cache mutates.
type Event struct {
	Op  Op
	Key string
}

// Entry is a cached payload plus its bookkeeping, as returned by Get and
// Entries.
type Entry struct {
	Key      string
	Data     []byte
	StoredAt time.Time
	TTL      time.Duration
	Digest   string
	Stale    bool
}

// Age reports how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Expired reports whether the entry's TTL has lapsed at now.
func (e *Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.StoredAt) >= e.TTL
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries     int
	Bytes       uint64
	Hits        uint64
	Misses      uint64
	DiskHits    uint64
	Expirations uint64
	Evictions   uint64
}

type memEntry struct {
	data     []byte
	storedAt time.Time
	ttl      time.Duration
	digest   string
}

// Option customizes a Service.
type Option func(*Service)

// WithMaxEntries bounds the in-memory tier.
func WithMaxEntries(n int) Option {
	return func(s *Service) {
		s.maxEntries = n
	}
}

// WithDefaultTTL sets the TTL applied when Set is called with DefaultTTL.
func WithDefaultTTL(d time.Duration) Option {
	return func(s *Service) {
		s.defaultTTL = d
	}
}

// WithDiskDir overrides the resolved base directory for the disk tier.
func WithDiskDir(dir string) Option {
	return func(s *Service) {
		s.dirOverride = dir
	}
}

// WithoutDisk keeps the cache memory-only.
func WithoutDisk() Option {
	return func(s *Service) {
		s.noDisk = true
	}
}

// WithNamespace nests the disk tier under the given subdirectories, the way
// entries for different origins are kept apart.
func WithNamespace(parts ...string) Option {
	return func(s *Service) {
		s.namespace = parts
	}
}

// WithClock swaps the wall clock, used by tests.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clk = clk
	}
}

// Service is the two-tier payload cache. All methods are safe for concurrent
// use.
type Service struct {
	mu sync.Mutex

	lru        *lru.Cache[string, *memEntry]
	clk        clock.Clock
	maxEntries int
	defaultTTL time.Duration

	noDisk      bool
	dirOverride string
	namespace   []string
	diskDir     string // resolved entry directory, empty when disk is off

	// removing suppresses the LRU evict callback while Invalidate/Flush
	// are deleting entries on purpose.
	removing bool

	stats Stats
	subs  []chan Event
}

// New builds a Service. The disk tier is enabled unless PREHEAT_CACHE
// disables caching, WithoutDisk was given, or no base directory can be
// resolved.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		clk:        clock.New(),
		maxEntries: defaultMaxEntries,
		defaultTTL: defaultEntryTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.maxEntries <= 0 {
		return nil, errors.New("cache: max entries must be positive")
	}

	var err error
	s.lru, err = lru.NewWithEvict(s.maxEntries, s.onEvict)
	if err != nil {
		return nil, err
	}

	if !s.noDisk {
		dir, ok, err := s.ensureDir()
		if err != nil {
			return nil, err
		}
		if ok {
			s.diskDir = dir
		}
	}

	return s, nil
}

// Get returns the fresh payload for key, or false on a miss.
func (s *Service) Get(key string) ([]byte, bool) {
	e, ok := s.GetEntry(key)
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// GetEntry returns the fresh entry for key. Expired entries are treated as
// misses: the in-memory copy is dropped, while the disk envelope is left for
// the stale-serving path and the purger.
func (s *Service) GetEntry(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()

	if me, ok := s.lookup(key); ok {
		if !expired(me, now) {
			s.stats.Hits++
			return s.entryFor(key, me, false), true
		}
		s.stats.Expirations++
		s.remove(key)
		s.publish(Event{Op: OpExpire, Key: key})
		s.stats.Misses++
		return nil, false
	}

	if me, ok := s.diskRead(key); ok {
		if !expired(me, now) {
			s.add(key, me)
			s.stats.DiskHits++
			s.stats.Hits++
			return s.entryFor(key, me, false), true
		}
		s.stats.Expirations++
	}

	s.stats.Misses++
	return nil, false
}

// GetStale returns the entry for key even when its TTL has lapsed. The
// returned entry is flagged Stale if it would not satisfy GetEntry. Used to
// serve cached data while offline or revalidating.
func (s *Service) GetStale(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()

	if me, ok := s.lookup(key); ok {
		return s.entryFor(key, me, expired(me, now)), true
	}
	if me, ok := s.diskRead(key); ok {
		return s.entryFor(key, me, expired(me, now)), true
	}
	return nil, false
}

// Set stores data under key. A ttl of DefaultTTL uses the service default;
// NoExpire pins the entry.
func (s *Service) Set(key string, data []byte, ttl time.Duration) error {
	if ttl == DefaultTTL {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	me := &memEntry{
		data:     data,
		storedAt: s.clk.Now(),
		ttl:      ttl,
		digest:   digest(data),
	}

	// Replace instead of evict-count when the key is already present.
	s.remove(key)
	s.add(key, me)

	if err := s.diskWrite(key, me); err != nil {
		return err
	}

	s.publish(Event{Op: OpSet, Key: key})
	return nil
}

// Invalidate drops key from both tiers. It reports whether anything was
// removed.
func (s *Service) Invalidate(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, inMem := s.lookup(key)
	s.remove(key)
	onDisk := s.diskRemove(key)

	if inMem || onDisk {
		s.publish(Event{Op: OpInvalidate, Key: key})
		return true
	}
	return false
}

// InvalidatePattern drops every key matching the shell glob pattern and
// returns how many were removed.
func (s *Service) InvalidatePattern(pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range s.Keys() {
		if ok, _ := path.Match(pattern, key); ok {
			if s.Invalidate(key) {
				removed++
			}
		}
	}
	return removed, nil
}

// Keys returns the union of keys across both tiers, sorted.
func (s *Service) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for _, k := range s.lru.Keys() {
		seen[k] = struct{}{}
	}
	for _, k := range s.diskKeys() {
		seen[k] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns the stale-inclusive entries for every key, sorted by key.
// Used by the cache ls command.
func (s *Service) Entries() []*Entry {
	keys := s.Keys()
	entries := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := s.GetStale(k); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// Flush clears both tiers.
func (s *Service) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removing = true
	s.lru.Purge()
	s.removing = false
	s.stats.Bytes = 0

	return s.diskFlush()
}

// Len returns the number of entries in the memory tier.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Stats returns a snapshot of the counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.Entries = s.lru.Len()
	return st
}

// Subscribe returns a channel of cache events and a cancel func. Slow
// subscribers miss events rather than blocking the cache.
func (s *Service) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// lookup fetches from the LRU, refreshing recency.
func (s *Service) lookup(key string) (*memEntry, bool) {
	return s.lru.Get(key)
}

func (s *Service) add(key string, me *memEntry) {
	s.lru.Add(key, me)
	s.stats.Bytes += uint64(len(me.data))
}

func (s *Service) remove(key string) {
	s.removing = true
	s.lru.Remove(key)
	s.removing = false
}

// onEvict is called by the LRU for every removal. Deliberate removals are
// flagged via s.removing; anything else is a capacity eviction.
func (s *Service) onEvict(key string, me *memEntry) {
	if s.stats.Bytes >= uint64(len(me.data)) {
		s.stats.Bytes -= uint64(len(me.data))
	}
	if s.removing {
		return
	}
	s.stats.Evictions++
	s.publish(Event{Op: OpEvict, Key: key})
	log.Debugf("cache evicted %s", key)
}

func (s *Service) publish(ev Event) {
	for _, sub := range s.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (s *Service) entryFor(key string, me *memEntry, stale bool) *Entry {
	return &Entry{
		Key:      key,
		Data:     me.data,
		StoredAt: me.storedAt,
		TTL:      me.ttl,
		Digest:   me.digest,
		Stale:    stale,
	}
}

func expired(me *memEntry, now time.Time) bool {
	return me.ttl > 0 && now.Sub(me.storedAt) >= me.ttl
}

// digestsEqual compares two digest strings in constant time.
func digestsEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
