// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the bubbletea building blocks for the watch dashboard:
// a shimmering skeleton placeholder, a spinner label, a warm progress bar,
// a connection status bar and the dashboard model that composes them.
package tui
