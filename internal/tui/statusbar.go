// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-preheat/preheat/internal/netstatus"
)

// StatusBar renders a connection snapshot as a one line footer.
type StatusBar struct {
	styles Styles
}

// NewStatusBar returns a StatusBar using the given styles.
func NewStatusBar(styles Styles) StatusBar {
	return StatusBar{styles: styles}
}

// Render returns the bar for snap, padded out to width so a right aligned
// segment can carry the probe count.
func (b StatusBar) Render(snap netstatus.Snapshot, width int) string {
	dot := b.dotStyle(snap.Status).Render("●")

	left := fmt.Sprintf("%s %s", dot, snap.Status)
	if snap.Latency > 0 {
		left += fmt.Sprintf(" %s", snap.Latency.Truncate(time.Millisecond))
	}
	if snap.Speed != netstatus.SpeedUnknown {
		left += " " + b.styles.Muted.Render(snap.Speed.String())
	}

	right := b.styles.Muted.Render(fmt.Sprintf("%d probes", snap.Probes))

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

func (b StatusBar) dotStyle(status netstatus.ConnectionStatus) lipgloss.Style {
	switch status {
	case netstatus.StatusOnline:
		return b.styles.Online
	case netstatus.StatusDegraded:
		return b.styles.Degraded
	case netstatus.StatusOffline:
		return b.styles.Offline
	default:
		return b.styles.Muted
	}
}
