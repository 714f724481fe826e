// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package netstatus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestClassifySpeed(t *testing.T) {
	tests := []struct {
		name    string
		latency time.Duration
		want    ConnectionSpeed
	}{
		{name: "unmeasured", latency: 0, want: SpeedUnknown},
		{name: "fast", latency: 80 * time.Millisecond, want: SpeedFast},
		{name: "fast boundary", latency: 150 * time.Millisecond, want: SpeedModerate},
		{name: "moderate", latency: 400 * time.Millisecond, want: SpeedModerate},
		{name: "slow", latency: 900 * time.Millisecond, want: SpeedSlow},
		{name: "very slow", latency: 5 * time.Second, want: SpeedSlow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifySpeed(tt.latency))
		})
	}
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "online", StatusOnline.String())
	assert.Equal(t, "degraded", StatusDegraded.String())
	assert.Equal(t, "offline", StatusOffline.String())
	assert.Equal(t, "unknown", StatusUnknown.String())

	assert.Equal(t, "fast", SpeedFast.String())
	assert.Equal(t, "moderate", SpeedModerate.String())
	assert.Equal(t, "slow", SpeedSlow.String())
	assert.Equal(t, "unknown", SpeedUnknown.String())
}

func TestMonitor_SmoothsLatency(t *testing.T) {
	mock := clock.NewMock()
	m := NewMonitor(WithMonitorClock(mock))

	m.observe(100*time.Millisecond, nil)

	snap := m.Status()
	assert.Equal(t, StatusOnline, snap.Status)
	assert.Equal(t, SpeedFast, snap.Speed)
	assert.Equal(t, 100*time.Millisecond, snap.Latency)

	// Second sample is averaged with the first, not taken raw.
	m.observe(300*time.Millisecond, nil)

	snap = m.Status()
	assert.Equal(t, 200*time.Millisecond, snap.Latency)
	assert.Equal(t, SpeedModerate, snap.Speed)
	assert.Equal(t, uint64(2), snap.Probes)
}

func TestMonitor_HighLatencyDegrades(t *testing.T) {
	m := NewMonitor(WithMonitorClock(clock.NewMock()))

	m.observe(3*time.Second, nil)

	snap := m.Status()
	assert.Equal(t, StatusDegraded, snap.Status)
	assert.Equal(t, SpeedSlow, snap.Speed)
	assert.Zero(t, snap.Failures)
}

func TestMonitor_FailureEscalation(t *testing.T) {
	m := NewMonitor(WithMonitorClock(clock.NewMock()))
	events, cancel := m.Subscribe(8)
	defer cancel()

	probeErr := errors.New("dial tcp: connection refused")

	m.observe(0, probeErr)
	assert.Equal(t, StatusDegraded, m.Status().Status)

	m.observe(0, probeErr)
	assert.Equal(t, StatusDegraded, m.Status().Status)

	m.observe(0, probeErr)

	snap := m.Status()
	assert.Equal(t, StatusOffline, snap.Status)
	assert.Equal(t, 3, snap.Failures)

	// degraded then offline, nothing for the repeat failure
	require.Len(t, events, 2)
	assert.Equal(t, StatusDegraded, (<-events).Status)
	assert.Equal(t, StatusOffline, (<-events).Status)
}

func TestMonitor_Recovery(t *testing.T) {
	m := NewMonitor(WithMonitorClock(clock.NewMock()))

	probeErr := errors.New("no route to host")
	for range 3 {
		m.observe(0, probeErr)
	}
	require.Equal(t, StatusOffline, m.Status().Status)

	m.observe(90*time.Millisecond, nil)

	snap := m.Status()
	assert.Equal(t, StatusOnline, snap.Status)
	assert.Equal(t, SpeedFast, snap.Speed)
	assert.Zero(t, snap.Failures)
}

func TestMonitor_SubscribePublishesOnChangeOnly(t *testing.T) {
	m := NewMonitor(WithMonitorClock(clock.NewMock()))
	events, cancel := m.Subscribe(8)
	defer cancel()

	m.observe(100*time.Millisecond, nil)
	m.observe(100*time.Millisecond, nil)
	m.observe(100*time.Millisecond, nil)

	assert.Len(t, events, 1)
	assert.Equal(t, uint64(3), m.Status().Probes)
}

func TestMonitor_SubscribeCancel(t *testing.T) {
	m := NewMonitor(WithMonitorClock(clock.NewMock()))
	events, cancel := m.Subscribe(1)

	cancel()
	_, open := <-events
	assert.False(t, open)

	// publishing after cancel must not panic
	m.observe(100*time.Millisecond, nil)
}

func TestMonitor_Force(t *testing.T) {
	m := NewMonitor(WithMonitorClock(clock.NewMock()))

	m.Force(StatusOffline)
	require.Equal(t, StatusOffline, m.Status().Status)

	// probes are recorded but cannot override the pin
	m.observe(50*time.Millisecond, nil)
	assert.Equal(t, StatusOffline, m.Status().Status)
	assert.Equal(t, uint64(1), m.Status().Probes)

	m.Force(StatusUnknown)
	m.observe(50*time.Millisecond, nil)
	assert.Equal(t, StatusOnline, m.Status().Status)
}

func TestMonitor_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := NewMonitor(WithProbeURL(srv.URL), WithTimeout(2*time.Second))

	snap := m.Probe(context.Background())
	assert.Equal(t, StatusOnline, snap.Status)
	assert.Positive(t, snap.Latency)
	assert.False(t, snap.LastProbe.IsZero())
}

func TestMonitor_ProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.Close()

	m := NewMonitor(WithProbeURL(srv.URL), WithTimeout(time.Second))

	snap := m.Probe(context.Background())
	assert.Equal(t, StatusDegraded, snap.Status)
	assert.Equal(t, 1, snap.Failures)
}

func TestMonitor_ErrorResponseStillCountsAsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewMonitor(WithProbeURL(srv.URL), WithTimeout(2*time.Second))

	snap := m.Probe(context.Background())
	assert.Equal(t, StatusOnline, snap.Status)
	assert.Zero(t, snap.Failures)
}

func TestMonitor_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	m := NewMonitor(
		WithProbeURL(srv.URL),
		WithHTTPClient(client),
		WithInterval(10*time.Millisecond),
		WithTimeout(time.Second),
	)

	m.Start(context.Background())
	m.Start(context.Background()) // second call is a no-op

	assert.Eventually(t, func() bool {
		return m.Status().Probes >= 2
	}, 2*time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop() // idempotent

	probes := m.Status().Probes
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, probes, m.Status().Probes)
}
