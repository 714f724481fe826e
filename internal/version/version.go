// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package version carries the binary version string.
package version

// Version is stamped by the release build via -ldflags. Source builds report
// dev.
var Version = "dev"
