// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package cache is the payload cache behind every preheat fetch. It layers a
// bounded in-memory LRU over a per-user disk tier so warmed responses survive
// process restarts. Entries carry their own TTL and an integrity digest, and
// the fresh read path never returns expired or corrupt data.
package cache
