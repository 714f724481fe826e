// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package driller resolves dotted paths against cached JSON payloads so
// commands can pull a single value out of a response body.
package driller
