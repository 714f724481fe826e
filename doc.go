// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package preheat gathers the payload warming toolkit under one import path:
// the two-tier cache, the connection monitor, the request manager, the view
// preloader and session tracker, the async helpers, and the terminal
// dashboard components. Every name here is an alias for a symbol in an
// internal package and behaves identically to the original; the subsystems
// stay in internal/ so this surface is the only public one.
//
// The preheat binary in cmd/preheat is a CLI over the same subsystems.
package preheat
