// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package async

import "sync"

// Memoize returns a function that computes f exactly once and replays the
// result, error included, on every later call.
func Memoize[T any](f func() (T, error)) func() (T, error) {
	var (
		once sync.Once
		v    T
		err  error
	)
	return func() (T, error) {
		once.Do(func() {
			v, err = f()
		})
		return v, err
	}
}

// CachedFunc caches the successful result of f until Flush is called.
// Errors are not cached, so a failed computation is retried on the next Get.
type CachedFunc[T any] struct {
	mu  sync.Mutex
	f   func() (T, error)
	res *T
}

// NewCachedFunc wraps f in a CachedFunc.
func NewCachedFunc[T any](f func() (T, error)) *CachedFunc[T] {
	return &CachedFunc[T]{f: f}
}

// Get returns the cached result, computing it first if needed.
func (c *CachedFunc[T]) Get() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.res != nil {
		return *c.res, nil
	}

	v, err := c.f()
	if err == nil {
		c.res = &v
	}
	return v, err
}

// Flush drops the cached result so the next Get recomputes it.
func (c *CachedFunc[T]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.res = nil
}
