// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package origin implements the upstream integrations (https and s3) that
// payloads are fetched from, and exposes a scheme registry so callers can
// fetch by URL without caring which transport serves it.
package origin
