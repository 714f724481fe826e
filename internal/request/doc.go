// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package request coordinates payload fetches: cache policy, retry with
// backoff, in-flight coalescing, negative caching of permanent failures,
// and stale fallback when the connection is degraded or gone.
package request
