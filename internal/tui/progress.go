// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/go-preheat/preheat/internal/preload"
)

// WarmProgress renders a progress bar over a warm pass, fed one preload
// outcome at a time.
type WarmProgress struct {
	bar    progress.Model
	styles Styles

	total  int
	done   int
	failed int
	last   string
}

// NewWarmProgress returns a bar sized for total views.
func NewWarmProgress(total int, styles Styles) WarmProgress {
	return WarmProgress{
		bar:    progress.New(progress.WithDefaultGradient()),
		styles: styles,
		total:  total,
	}
}

// SetWidth resizes the bar.
func (w *WarmProgress) SetWidth(n int) {
	if n > 0 {
		w.bar.Width = n
	}
}

// Observe folds one outcome into the bar.
func (w *WarmProgress) Observe(o preload.Outcome) {
	w.done++
	w.last = o.View.Name
	if o.Status == preload.StatusFailed {
		w.failed++
	}
}

// Done reports whether every view has been observed.
func (w WarmProgress) Done() bool {
	return w.total > 0 && w.done >= w.total
}

// View renders the bar with a counter and the last view warmed.
func (w WarmProgress) View() string {
	if w.total == 0 {
		return ""
	}

	frac := float64(w.done) / float64(w.total)
	if frac > 1 {
		frac = 1
	}

	line := fmt.Sprintf("%s %d/%d", w.bar.ViewAs(frac), w.done, w.total)
	if w.last != "" {
		line += " " + w.styles.Muted.Render(w.last)
	}
	if w.failed > 0 {
		line += " " + w.styles.Error.Render(fmt.Sprintf("%d failed", w.failed))
	}
	return line
}
