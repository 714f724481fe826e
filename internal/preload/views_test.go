// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package preload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/go-preheat/preheat/internal/config"
)

func configFromYAML(t *testing.T, doc string) config.Type {
	t.Helper()
	var data map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(doc), &data))
	return config.Type{Source: "test", Data: data}
}

func TestViewsFromConfig(t *testing.T) {
	cfg := configFromYAML(t, `
origin: https://api.example.com
views:
  - name: status
    url: /v1/views/status
    priority: high
    ttl: 5m
    prefetch:
      - /v1/views/status/tabs
      - https://cdn.example.com/assets/status.json
  - name: inventory
    url: https://api.example.com/v1/views/inventory
    ttl: 300
  - name: settings
    url: /v1/views/settings
    priority: low
`)

	views, err := ViewsFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, views, 3)

	status := views[0]
	assert.Equal(t, "status", status.Name)
	assert.Equal(t, "https://api.example.com/v1/views/status", status.URL)
	assert.Equal(t, PriorityHigh, status.Priority)
	assert.Equal(t, 5*time.Minute, status.TTL)
	assert.Equal(t, []string{
		"https://api.example.com/v1/views/status/tabs",
		"https://cdn.example.com/assets/status.json",
	}, status.Prefetch)

	inventory := views[1]
	assert.Equal(t, PriorityNormal, inventory.Priority)
	assert.Equal(t, 300*time.Second, inventory.TTL)

	settings := views[2]
	assert.Equal(t, PriorityLow, settings.Priority)
	assert.Zero(t, settings.TTL)
}

func TestViewsFromConfig_SelectByName(t *testing.T) {
	cfg := configFromYAML(t, `
origin: https://api.example.com
views:
  - name: status
    url: /v1/views/status
  - name: inventory
    url: /v1/views/inventory
  - name: settings
    url: /v1/views/settings
`)

	views, err := ViewsFromConfig(cfg, "settings", "status")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "settings", views[0].Name)
	assert.Equal(t, "status", views[1].Name)

	_, err = ViewsFromConfig(cfg, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown view "nope"`)
}

func TestViewsFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "no views",
			doc:     `origin: https://api.example.com`,
			wantErr: "no views defined",
		},
		{
			name:    "views not a list",
			doc:     "views: status",
			wantErr: "must be a list",
		},
		{
			name:    "missing name",
			doc:     "views:\n  - url: /v1/x",
			wantErr: "has no name",
		},
		{
			name:    "missing url",
			doc:     "views:\n  - name: status",
			wantErr: `view "status" has no url`,
		},
		{
			name:    "bad priority",
			doc:     "views:\n  - name: status\n    url: https://a/x\n    priority: urgent",
			wantErr: `unknown priority "urgent"`,
		},
		{
			name:    "bad ttl",
			doc:     "views:\n  - name: status\n    url: https://a/x\n    ttl: soon",
			wantErr: `bad ttl "soon"`,
		},
		{
			name:    "relative url without origin",
			doc:     "views:\n  - name: status\n    url: /v1/x",
			wantErr: "no origin configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ViewsFromConfig(configFromYAML(t, tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
