// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package aws loads SDK v2 configuration and builds service clients for the
// origins that read payloads out of AWS.
package aws
