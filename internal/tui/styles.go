// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles shared by the dashboard components. The
// palette matches the table colors used by the plain CLI output.
type Styles struct {
	Title     lipgloss.Style
	Tab       lipgloss.Style
	TabActive lipgloss.Style
	Body      lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Header    lipgloss.Style

	Online   lipgloss.Style
	Degraded lipgloss.Style
	Offline  lipgloss.Style

	Skeleton lipgloss.Style
	Spinner  lipgloss.Style
	Stale    lipgloss.Style
}

// DefaultStyles returns the stock dashboard styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffb86c")).
			Bold(true),

		Tab: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272a4")).
			Padding(0, 1),

		TabActive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8be9fd")).
			Bold(true).
			Underline(true).
			Padding(0, 1),

		Body: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f8f8f2")),

		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272a4")),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff5555")).
			Bold(true),

		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffb86c")),

		Online: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50fa7b")),

		Degraded: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f1fa8c")),

		Offline: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff5555")),

		Skeleton: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#44475a")),

		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8be9fd")),

		Stale: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f1fa8c")),
	}
}
