// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package preload warms views ahead of use: it takes the view list from
// config, orders it by priority, and pushes each view's payloads through the
// request manager with bounded concurrency, adapting to the connection.
package preload
