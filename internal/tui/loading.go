// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Loading is a spinner with a label, shown while a refresh is in flight over
// data that is already on screen.
type Loading struct {
	spinner spinner.Model
	Label   string
	styles  Styles
}

// NewLoading returns a Loading component with the given label.
func NewLoading(label string, styles Styles) Loading {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Loading{
		spinner: sp,
		Label:   label,
		styles:  styles,
	}
}

// Init starts the spinner animation.
func (l Loading) Init() tea.Cmd {
	return l.spinner.Tick
}

// Update forwards spinner ticks.
func (l Loading) Update(msg tea.Msg) (Loading, tea.Cmd) {
	var cmd tea.Cmd
	l.spinner, cmd = l.spinner.Update(msg)
	return l, cmd
}

// View renders the spinner and label.
func (l Loading) View() string {
	return l.spinner.View() + " " + l.styles.Muted.Render(l.Label)
}
