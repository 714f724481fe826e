// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-preheat/preheat/internal/async"
	"github.com/go-preheat/preheat/internal/cache"
	"github.com/go-preheat/preheat/internal/netstatus"
	"github.com/go-preheat/preheat/internal/origin"
	"github.com/go-preheat/preheat/internal/preload"
	"github.com/go-preheat/preheat/internal/request"
	"github.com/go-preheat/preheat/internal/viewstate"
)

type dashRig struct {
	dash Dashboard
	sess *viewstate.Session
	mon  *netstatus.Monitor
}

// newDashRig wires a dashboard over a real cache, request manager and preload
// manager, with viewsFn as the config source.
func newDashRig(t *testing.T, viewsFn func() ([]preload.View, error)) dashRig {
	t.Helper()

	svc, err := cache.New(cache.WithDiskDir(t.TempDir()))
	require.NoError(t, err)

	mon := netstatus.NewMonitor()
	mgr := request.NewManager(svc, origin.Default(), mon,
		request.WithRetryOptions(
			async.WithInitialInterval(time.Millisecond),
			async.WithMaxInterval(2*time.Millisecond),
		))
	t.Cleanup(mgr.Close)

	pre, err := preload.NewManager(mgr, mon)
	require.NoError(t, err)
	t.Cleanup(pre.HintWait)

	sess := viewstate.NewSession(pre, mon)

	dash, err := NewDashboard(sess, pre, mgr, mon, viewsFn)
	require.NoError(t, err)

	return dashRig{dash: dash, sess: sess, mon: mon}
}

func staticViews(srvURL string, names ...string) func() ([]preload.View, error) {
	return func() ([]preload.View, error) {
		views := make([]preload.View, 0, len(names))
		for _, n := range names {
			views = append(views, preload.View{Name: n, URL: srvURL + "/" + n})
		}
		return views, nil
	}
}

// step feeds one message and returns the evolved model plus the command.
func step(t *testing.T, m Dashboard, msg tea.Msg) (Dashboard, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	d, ok := next.(Dashboard)
	require.True(t, ok, "model type changed")
	return d, cmd
}

func TestDashboard_ColdShowsSkeletonThenData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name": "alpha", "total": 3}, {"name": "beta", "total": 5}]`)
	}))
	t.Cleanup(srv.Close)

	rig := newDashRig(t, staticViews(srv.URL, "status", "inventory"))
	m := rig.dash

	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, m.View(), "░", "cold view renders the skeleton")

	m, cmd := step(t, m, initMsg{})
	require.NotNil(t, cmd, "initial switch fetches the view")

	m, _ = step(t, m, cmd())

	view := m.View()
	assert.Contains(t, view, "alpha")
	assert.Contains(t, view, "beta")
	assert.Contains(t, view, "name")
	assert.NotContains(t, view, "░")
	assert.Equal(t, "status", m.ActiveView())

	bind, ok := rig.sess.Binding("status")
	require.True(t, ok)
	assert.Equal(t, viewstate.StateHot, bind.State)
}

func TestDashboard_TabSwitchesViews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"name": %q}]`, r.URL.Path)
	}))
	t.Cleanup(srv.Close)

	rig := newDashRig(t, staticViews(srv.URL, "status", "inventory"))
	m := rig.dash

	m, cmd := step(t, m, initMsg{})
	m, _ = step(t, m, cmd())

	m, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "inventory", m.ActiveView())
	require.NotNil(t, cmd, "unvisited view fetches")
	m, _ = step(t, m, cmd())
	assert.Contains(t, m.View(), "/inventory")

	// The view we left is warm now, not hot.
	bind, ok := rig.sess.Binding("status")
	require.True(t, ok)
	assert.Equal(t, viewstate.StateWarm, bind.State)

	m, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, "status", m.ActiveView())
	assert.Nil(t, cmd, "cached view needs no fetch")
}

func TestDashboard_RefreshRevalidates(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"name": "copy%d"}]`, atomic.AddInt32(&hits, 1))
	}))
	t.Cleanup(srv.Close)

	rig := newDashRig(t, staticViews(srv.URL, "status"))
	m := rig.dash

	m, cmd := step(t, m, initMsg{})
	m, _ = step(t, m, cmd())
	assert.Contains(t, m.View(), "copy1")

	m, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "refreshing", "refresh keeps data visible behind a spinner")

	m, _ = step(t, m, cmd())
	assert.Contains(t, m.View(), "copy2")
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestDashboard_WarmKeyRunsFullPass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name": "row"}]`)
	}))
	t.Cleanup(srv.Close)

	rig := newDashRig(t, staticViews(srv.URL, "status", "inventory"))
	m := rig.dash

	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "0/2")

	// Stream one outcome before the pass completes.
	m, _ = step(t, m, outcomeMsg(preload.Outcome{
		View:   preload.View{Name: "status"},
		Status: preload.StatusWarmed,
	}))
	assert.Contains(t, m.View(), "1/2")

	m, next := step(t, m, cmd())
	assert.NoError(t, m.Err())
	require.NotNil(t, next, "finished pass refreshes the active view")

	m, _ = step(t, m, next())
	assert.Contains(t, m.View(), "row")
}

func TestDashboard_SecondWarmKeyIgnoredWhileRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	rig := newDashRig(t, staticViews(srv.URL, "status"))
	m := rig.dash

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	require.NotNil(t, cmd)

	_, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	assert.Nil(t, cmd)
}

func TestDashboard_StatusFooterFollowsMonitor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	rig := newDashRig(t, staticViews(srv.URL, "status"))
	m := rig.dash

	m, cmd := step(t, m, statusMsg(netstatus.Snapshot{Status: netstatus.StatusOffline}))
	assert.Contains(t, m.View(), "offline")
	assert.NotNil(t, cmd, "status reader re-arms")
}

func TestDashboard_ConfigReloadRebuildsTabs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name": "row"}]`)
	}))
	t.Cleanup(srv.Close)

	var extended atomic.Bool
	viewsFn := func() ([]preload.View, error) {
		views := []preload.View{{Name: "status", URL: srv.URL + "/status"}}
		if extended.Load() {
			views = append(views, preload.View{Name: "settings", URL: srv.URL + "/settings"})
		}
		return views, nil
	}

	rig := newDashRig(t, viewsFn)
	m := rig.dash
	assert.NotContains(t, m.View(), "settings")

	extended.Store(true)

	m, cmd := step(t, m, ReloadMsg{})
	require.NotNil(t, cmd)

	m, cmd = step(t, m, cmd())
	assert.Contains(t, m.View(), "settings")

	// The reload re-switches the active view, drain its fetch.
	if cmd != nil {
		m, _ = step(t, m, cmd())
	}
	assert.Equal(t, "status", m.ActiveView())
}

func TestDashboard_QuitCancelsSubscriptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	rig := newDashRig(t, staticViews(srv.URL, "status"))

	_, cmd := step(t, rig.dash, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestDashboard_FetchErrorShown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	rig := newDashRig(t, staticViews(srv.URL, "status"))
	m := rig.dash

	m, cmd := step(t, m, initMsg{})
	m, _ = step(t, m, cmd())

	assert.Contains(t, m.View(), "500")
}
