// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package output provides sorting, diffing, and emission utilities used by
// commands to present results in various formats.
package output
