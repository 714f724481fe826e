// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/cenkalti/backoff/v4"
)

const (
	defaultInitialInterval = 250 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
	defaultMaxRetries      = 3
)

type retryConfig struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	maxRetries      uint64
	clock           backoff.Clock
}

// RetryOption customizes the backoff schedule.
type RetryOption func(*retryConfig)

// WithInitialInterval sets the first retry delay.
func WithInitialInterval(d time.Duration) RetryOption {
	return func(rc *retryConfig) {
		rc.initialInterval = d
	}
}

// WithMaxInterval caps the per-retry delay.
func WithMaxInterval(d time.Duration) RetryOption {
	return func(rc *retryConfig) {
		rc.maxInterval = d
	}
}

// WithMaxRetries bounds the number of retries after the initial attempt.
func WithMaxRetries(n uint64) RetryOption {
	return func(rc *retryConfig) {
		rc.maxRetries = n
	}
}

// WithRetryClock swaps the clock used for elapsed-time accounting, used by
// tests.
func WithRetryClock(clk backoff.Clock) RetryOption {
	return func(rc *retryConfig) {
		rc.clock = clk
	}
}

// Permanent marks err as non-retryable so the schedule stops immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs op under an exponential backoff schedule until it succeeds, a
// permanent error is returned, the retry budget is exhausted, or ctx is
// canceled.
func Retry(ctx context.Context, op func() error, opts ...RetryOption) error {
	_, err := RetryWithData(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, opts...)
	return err
}

// RetryWithData is Retry for operations that produce a value.
func RetryWithData[T any](ctx context.Context, op func() (T, error), opts ...RetryOption) (T, error) {
	rc := retryConfig{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		maxRetries:      defaultMaxRetries,
		clock:           backoff.SystemClock,
	}
	for _, opt := range opts {
		opt(&rc)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = rc.initialInterval
	eb.MaxInterval = rc.maxInterval
	eb.MaxElapsedTime = 0 // retry count is the only budget
	eb.Clock = rc.clock

	schedule := backoff.WithContext(backoff.WithMaxRetries(eb, rc.maxRetries), ctx)

	return backoff.RetryNotifyWithData(op, schedule, func(err error, next time.Duration) {
		log.Debugf("retrying in %s: %v", next, err)
	})
}
