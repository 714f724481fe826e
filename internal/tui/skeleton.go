// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	skeletonFrameInterval = 120 * time.Millisecond
	skeletonBandWidth     = 4
)

// SkeletonTickMsg advances the shimmer animation by one frame.
type SkeletonTickMsg time.Time

// Skeleton is an animated placeholder block shown while a view has no data
// yet. A bright band sweeps across rows of dim fill characters.
type Skeleton struct {
	rows   int
	width  int
	frame  int
	styles Styles
}

// NewSkeleton returns a Skeleton of the given dimensions.
func NewSkeleton(rows, width int, styles Styles) Skeleton {
	return Skeleton{
		rows:   rows,
		width:  width,
		styles: styles,
	}
}

// SetSize resizes the placeholder block.
func (s *Skeleton) SetSize(rows, width int) {
	if rows > 0 {
		s.rows = rows
	}
	if width > 0 {
		s.width = width
	}
}

// Init starts the shimmer ticker.
func (s Skeleton) Init() tea.Cmd {
	return skeletonTick()
}

// Update advances the animation on SkeletonTickMsg and re-arms the ticker.
func (s Skeleton) Update(msg tea.Msg) (Skeleton, tea.Cmd) {
	if _, ok := msg.(SkeletonTickMsg); ok {
		s.frame++
		return s, skeletonTick()
	}
	return s, nil
}

// View renders the placeholder rows at the current frame.
func (s Skeleton) View() string {
	if s.rows <= 0 || s.width <= 0 {
		return ""
	}

	band := s.frame % (s.width + skeletonBandWidth)

	var b strings.Builder
	for row := 0; row < s.rows; row++ {
		var line strings.Builder
		for col := 0; col < s.width; col++ {
			// Offset the band per row so the sweep reads as diagonal.
			d := col - band + row
			if d >= 0 && d < skeletonBandWidth {
				line.WriteRune('▓')
			} else {
				line.WriteRune('░')
			}
		}
		b.WriteString(s.styles.Skeleton.Render(line.String()))
		if row < s.rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func skeletonTick() tea.Cmd {
	return tea.Tick(skeletonFrameInterval, func(t time.Time) tea.Msg {
		return SkeletonTickMsg(t)
	})
}
