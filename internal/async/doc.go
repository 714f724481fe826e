// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package async holds the small timing primitives the rest of preheat leans
// on: trailing-edge debounce, leading-edge throttle, memoized and flushable
// one-shot functions, and an exponential-backoff retry wrapper.
package async
