// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-preheat/preheat/internal/config"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "preheat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("PREHEAT_CFG", path)

	_, err := config.Load("")
	require.NoError(t, err)
}

const presetConfig = `
get:
  defaults:
    - --output json
  fast:
    - --policy bypass
    - --ttl 30s
`

func TestMangleArguments_HelpShortCircuits(t *testing.T) {
	writeConfig(t, presetConfig)

	// Help requests drop everything else on the line.
	got := mangleArguments([]string{"preheat", "get", "https://x", "--help"})
	assert.Equal(t, []string{"preheat", "get", "--help"}, got)
}

func TestMangleArguments_DefaultSetExpands(t *testing.T) {
	writeConfig(t, presetConfig)

	// No @set on the line pulls in the command's defaults preset.
	got := mangleArguments([]string{"preheat", "get", "https://x"})
	assert.Equal(t, []string{"preheat", "get", "--output", "json", "https://x"}, got)
}

func TestMangleArguments_NamedSetExpands(t *testing.T) {
	writeConfig(t, presetConfig)

	// A named @set replaces the marker with its args, in order, and skips
	// the defaults preset.
	got := mangleArguments([]string{"preheat", "get", "@fast", "https://x"})
	assert.Equal(t,
		[]string{"preheat", "get", "--policy", "bypass", "--ttl", "30s", "https://x"},
		got)
}

func TestMangleArguments_NoPresetsLeavesArgsAlone(t *testing.T) {
	writeConfig(t, presetConfig)

	// A command with no presets configured passes through untouched.
	got := mangleArguments([]string{"preheat", "status", "--watch"})
	assert.Equal(t, []string{"preheat", "status", "--watch"}, got)
}
