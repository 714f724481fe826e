// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"golang.org/x/crypto/blake2b"
)

const (
	entryExt = ".json"
	dirPerm  = 0o755
	filePerm = 0o600
)

// envelope is the on-disk form of a cache entry. Body round-trips through
// base64 courtesy of encoding/json.
type envelope struct {
	Key      string    `json:"key"`
	StoredAt time.Time `json:"stored_at"`
	TTLSecs  int64     `json:"ttl_seconds"`
	Digest   string    `json:"digest"`
	Body     []byte    `json:"body"`
}

// Dir resolves the base cache directory: PREHEAT_CACHE_DIR when set,
// otherwise a preheat subdirectory of the platform user cache dir. The bool
// is false when no base can be resolved, which turns the disk tier off.
func Dir() (string, bool) {
	if override, ok := os.LookupEnv("PREHEAT_CACHE_DIR"); ok && override != "" {
		return override, true
	}
	if base, err := os.UserCacheDir(); err == nil && base != "" {
		return filepath.Join(base, "preheat"), true
	}
	return "", false
}

// Enabled returns true unless PREHEAT_CACHE explicitly disables it ("0"/"false").
func Enabled() bool {
	switch os.Getenv("PREHEAT_CACHE") {
	case "0", "false":
		return false
	}
	return true
}

// ensureDir creates the namespaced entry directory when the disk tier is
// usable. The bool is false when caching is off or no base dir resolves.
func (s *Service) ensureDir() (string, bool, error) {
	if !Enabled() {
		return "", false, nil
	}
	base := s.dirOverride
	if base == "" {
		var ok bool
		base, ok = Dir()
		if !ok {
			return "", false, nil
		}
	}
	dir := filepath.Join(append([]string{base}, s.namespace...)...)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return dir, false, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return dir, true, nil
}

// entryPath returns the absolute path where the entry for key lives.
func (s *Service) entryPath(key string) string {
	return filepath.Join(s.diskDir, encodeKey(key)+entryExt)
}

func (s *Service) diskRead(key string) (*memEntry, bool) {
	if s.diskDir == "" {
		return nil, false
	}

	p := s.entryPath(key)
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.WithError(err).Debugf("discarding unreadable cache file %s", p)
		_ = os.Remove(p)
		return nil, false
	}

	// An entry that fails integrity checks is dropped, never served.
	if env.Key != key || !digestsEqual(env.Digest, digest(env.Body)) {
		log.Debugf("discarding cache file with digest mismatch %s", p)
		_ = os.Remove(p)
		return nil, false
	}

	return &memEntry{
		data:     env.Body,
		storedAt: env.StoredAt,
		ttl:      ttlFromSeconds(env.TTLSecs),
		digest:   env.Digest,
	}, true
}

func (s *Service) diskWrite(key string, me *memEntry) error {
	if s.diskDir == "" {
		return nil
	}

	env := envelope{
		Key:      key,
		StoredAt: me.storedAt,
		TTLSecs:  ttlToSeconds(me.ttl),
		Digest:   me.digest,
		Body:     me.data,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := os.WriteFile(s.entryPath(key), b, filePerm); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *Service) diskRemove(key string) bool {
	if s.diskDir == "" {
		return false
	}
	p := s.entryPath(key)
	if _, err := os.Stat(p); err != nil {
		return false
	}
	return os.Remove(p) == nil
}

// diskKeys returns the clear-text keys of every readable envelope.
func (s *Service) diskKeys() []string {
	if s.diskDir == "" {
		return nil
	}

	dirents, err := os.ReadDir(s.diskDir)
	if err != nil {
		return nil
	}

	var keys []string
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entryExt) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.diskDir, de.Name()))
		if err != nil {
			continue
		}
		var env envelope
		if err := json.Unmarshal(b, &env); err != nil {
			continue
		}
		keys = append(keys, env.Key)
	}
	return keys
}

func (s *Service) diskFlush() error {
	if s.diskDir == "" {
		return nil
	}

	dirents, err := os.ReadDir(s.diskDir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entryExt) {
			continue
		}
		if err := os.Remove(filepath.Join(s.diskDir, de.Name())); err != nil {
			return fmt.Errorf("failed to flush cache: %w", err)
		}
	}
	return nil
}

// Purge removes disk entries whose files are older than maxAge and returns
// how many were removed. If maxAge <= 0 or the disk tier is off, it is a
// no-op.
func (s *Service) Purge(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		log.Debug("cache purge disabled")
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.diskDir == "" {
		return 0, nil
	}

	removed := 0
	err := filepath.Walk(s.diskDir, func(path string, info os.FileInfo, _ error) error {
		if info == nil || info.IsDir() {
			return nil
		}
		if s.clk.Now().Sub(info.ModTime()) > maxAge {
			if err := os.Remove(path); err != nil {
				log.WithError(err).Warnf("purge could not remove %s", path)
				return nil
			}
			removed++
			log.Debugf("purged %s", path)
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to purge cache: %w", err)
	}
	return removed, nil
}

// encodeKey hashes the clear-text key with BLAKE2b-256 and returns the hex
// string, so arbitrary urls make safe file names.
func encodeKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// digest returns the BLAKE2b-256 hex digest of a payload.
func digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func ttlToSeconds(ttl time.Duration) int64 {
	if ttl < 0 {
		return -1
	}
	secs := int64(ttl / time.Second)
	if ttl > 0 && secs == 0 {
		secs = 1 // round sub-second TTLs up rather than pinning them
	}
	return secs
}

func ttlFromSeconds(secs int64) time.Duration {
	if secs < 0 {
		return NoExpire
	}
	return time.Duration(secs) * time.Second
}
