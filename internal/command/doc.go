// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

// Package command defines the CLI command set for preheat. It wires flags,
// validators, actions, and shell completion for subcommands.
package command
