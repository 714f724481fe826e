// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package attrs

import (
	"embed"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

//go:embed testdata/*.yaml
var fixtures embed.FS

// loadCases reads one named fixture file into a slice of case structs.
func loadCases[T any](t *testing.T, name string) []T {
	t.Helper()

	raw, err := fixtures.ReadFile("testdata/" + name)
	require.NoError(t, err)

	var cases []T
	require.NoError(t, yaml.Unmarshal(raw, &cases))
	require.NotEmpty(t, cases)
	return cases
}
