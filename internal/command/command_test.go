// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/go-preheat/preheat/internal/config"
	"github.com/go-preheat/preheat/internal/meta"
	"github.com/go-preheat/preheat/internal/netstatus"
	"github.com/go-preheat/preheat/internal/preload"
	"github.com/go-preheat/preheat/internal/request"
)

// writeConfig points PREHEAT_CFG at a throwaway config file and reloads the
// package-level config so getters see it.
func writeConfig(t *testing.T, body string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "preheat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("PREHEAT_CFG", path)

	_, err := config.Load("")
	require.NoError(t, err)
}

// testCommand parses args against flags and hands back the command so flag
// lookups behave exactly as they would mid-action.
func testCommand(t *testing.T, flags []cli.Flag, args []string) *cli.Command {
	t.Helper()

	var captured *cli.Command
	cmd := &cli.Command{
		Name:  "preheat",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			captured = c
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"preheat"}, args...)))
	require.NotNil(t, captured)

	return captured
}

func targetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{Name: "ttl"},
		&cli.StringFlag{Name: "policy"},
		&cli.StringFlag{Name: "origin"},
	}
}

func TestResolveTarget(t *testing.T) {
	writeConfig(t, `
origin: https://cfg.example.com
views:
  - name: inbox
    url: https://api.example.com/inbox
    ttl: 2m
`)
	cfg, err := config.Load("")
	require.NoError(t, err)

	// An absolute url passes through with the flag ttl and policy.
	cmd := testCommand(t, targetFlags(), []string{"--ttl", "45s", "--policy", "revalidate"})
	req, err := resolveTarget(cmd, cfg, "https://api.example.com/users")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users", req.URL)
	assert.Equal(t, 45*time.Second, req.TTL)
	assert.Equal(t, request.PolicyRevalidate, req.Policy)

	// A bare word naming a configured view picks up the view's url and ttl.
	cmd = testCommand(t, targetFlags(), nil)
	req, err = resolveTarget(cmd, cfg, "inbox")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/inbox", req.URL)
	assert.Equal(t, 2*time.Minute, req.TTL)

	// The ttl flag beats the view's ttl.
	cmd = testCommand(t, targetFlags(), []string{"--ttl", "10s"})
	req, err = resolveTarget(cmd, cfg, "inbox")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, req.TTL)

	// A relative path joins onto the --origin flag.
	cmd = testCommand(t, targetFlags(), []string{"--origin", "https://flag.example.com/api"})
	req, err = resolveTarget(cmd, cfg, "users/42")
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example.com/api/users/42", req.URL)

	// Without the flag, the configured origin is used.
	cmd = testCommand(t, targetFlags(), nil)
	req, err = resolveTarget(cmd, cfg, "users/42")
	require.NoError(t, err)
	assert.Equal(t, "https://cfg.example.com/users/42", req.URL)

	// A bad policy is rejected.
	cmd = testCommand(t, targetFlags(), []string{"--policy", "fridge"})
	_, err = resolveTarget(cmd, cfg, "https://api.example.com/users")
	assert.Error(t, err)
}

func TestResolveTarget_NoOriginAnywhere(t *testing.T) {
	writeConfig(t, "views:\n  - name: inbox\n    url: https://api.example.com/inbox\n")
	cfg, err := config.Load("")
	require.NoError(t, err)

	cmd := testCommand(t, targetFlags(), nil)
	_, err = resolveTarget(cmd, cfg, "users/42")
	assert.Error(t, err)
}

func TestFoldOriginFilters(t *testing.T) {
	// Origin-side filters become query params; row filters stay off the url.
	got, err := foldOriginFilters("https://api.example.com/users", "_page=2,_limit=50,name^Ada")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users?limit=50&page=2", got)

	// Negated and non-equality origin filters are not foldable.
	got, err = foldOriginFilters("https://api.example.com/users?page=1", "_page!=2,_q^x")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users?page=1", got)

	// No spec, no change.
	got, err = foldOriginFilters("https://api.example.com/users", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users", got)
}

func TestProbeURLPrecedence(t *testing.T) {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "probe"},
		&cli.StringFlag{Name: "origin"},
	}

	writeConfig(t, "origin: https://cfg.example.com\n")

	// The probe flag wins.
	cmd := testCommand(t, flags, []string{"--probe", "https://probe.example.com"})
	assert.Equal(t, "https://probe.example.com", ProbeURL(cmd))

	// Then the origin flag.
	cmd = testCommand(t, flags, []string{"--origin", "https://flag.example.com"})
	assert.Equal(t, "https://flag.example.com", ProbeURL(cmd))

	// Then the configured origin.
	cmd = testCommand(t, flags, nil)
	assert.Equal(t, "https://cfg.example.com", ProbeURL(cmd))

	// And finally the built-in endpoint.
	writeConfig(t, "padding: 1\n")
	cmd = testCommand(t, flags, nil)
	assert.Equal(t, netstatus.DefaultProbeURL, ProbeURL(cmd))
}

func TestWorkerCount(t *testing.T) {
	flags := []cli.Flag{&cli.IntFlag{Name: "workers"}}

	writeConfig(t, "preload:\n  workers: 8\n")

	// The flag wins.
	cmd := testCommand(t, flags, []string{"--workers", "2"})
	assert.Equal(t, 2, workerCount(cmd))

	// Then the config key.
	cmd = testCommand(t, flags, nil)
	assert.Equal(t, 8, workerCount(cmd))

	// Zero means let the preload default stand.
	writeConfig(t, "padding: 1\n")
	cmd = testCommand(t, flags, nil)
	assert.Equal(t, 0, workerCount(cmd))
}

func TestConfigDuration(t *testing.T) {
	writeConfig(t, "cache:\n  ttl: 90s\n")

	d, err := configDuration("cache.ttl")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = configDuration("cache.missing")
	assert.Error(t, err)

	writeConfig(t, "cache:\n  ttl: soon\n")
	_, err = configDuration("cache.ttl")
	assert.Error(t, err)
}

func TestPolicyValidator(t *testing.T) {
	assert.NoError(t, PolicyValidator("cache-first"))
	assert.NoError(t, PolicyValidator("revalidate"))
	assert.NoError(t, PolicyValidator("bypass"))
	assert.Error(t, PolicyValidator("fridge"))
}

func TestOutputValidator(t *testing.T) {
	assert.NoError(t, OutputValidator("text"))
	assert.NoError(t, OutputValidator("yaml"))
	assert.Error(t, OutputValidator("xml"))
}

func TestGetMeta(t *testing.T) {
	// A command without metadata yields the zero meta.
	assert.Equal(t, meta.Meta{}, GetMeta(&cli.Command{}))

	m := meta.Meta{Args: []string{"preheat", "get"}}
	cmd := &cli.Command{Metadata: map[string]any{"meta": m}}
	assert.Equal(t, m, GetMeta(cmd))
}

func TestNewWarmRow(t *testing.T) {
	// A warmed view renders latency and size humanized.
	row := newWarmRow(preload.Outcome{
		View:     preload.View{Name: "inbox"},
		Status:   preload.StatusWarmed,
		Latency:  142*time.Millisecond + 400*time.Microsecond,
		Bytes:    2048,
		Attempts: 1,
	})
	assert.Equal(t, "inbox", row.View)
	assert.Equal(t, "warmed", row.Status)
	assert.Equal(t, "142ms", row.Latency)
	assert.Equal(t, "2.0 kB", row.Size)
	assert.Equal(t, 1, row.Attempts)

	// A skipped view leaves the measurements blank.
	row = newWarmRow(preload.Outcome{
		View:   preload.View{Name: "reports"},
		Status: preload.StatusSkipped,
		Reason: "offline",
	})
	assert.Equal(t, "skipped", row.Status)
	assert.Equal(t, "offline", row.Reason)
	assert.Empty(t, row.Latency)
	assert.Empty(t, row.Size)

	// A failed view reports the error when no gate reason is set.
	row = newWarmRow(preload.Outcome{
		View:   preload.View{Name: "search"},
		Status: preload.StatusFailed,
		Err:    assert.AnError,
	})
	assert.Equal(t, "failed", row.Status)
	assert.Equal(t, assert.AnError.Error(), row.Reason)
}

func TestDiscoverDefaults(t *testing.T) {
	raw := []byte(`[{"id":1,"name":"Ada","tags":["x"]}]`)

	// Scalar keys of the first row, dotted for root-level addressing. The
	// nested tags value is not a scalar and stays out.
	assert.Equal(t, []string{".id", ".name"}, discoverDefaults(raw, ""))
}

func TestSortFlags(t *testing.T) {
	cmd := &cli.Command{
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "charlie"},
			&cli.StringFlag{Name: "alpha"},
			&cli.StringFlag{Name: "bravo"},
		},
	}

	sortFlags(cmd)

	names := make([]string, 0, len(cmd.Flags))
	for _, f := range cmd.Flags {
		names = append(names, f.Names()[0])
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names)
}
