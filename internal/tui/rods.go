// SPDX-License-Identifier: MIT

// Package tui draws the simulated sculpture in the terminal: one colored
// column per rod, refreshed at a fixed rate.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lightshow/internal/fixture"
	"lightshow/internal/simulator"
)

// RefreshInterval is the redraw period.
const RefreshInterval = 33 * time.Millisecond

const (
	maxRows  = 12
	rodWidth = 2
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5C5C5C"))

	quitKeys = key.NewBinding(key.WithKeys("q", "ctrl+c"))
)

// Source is what the view polls for colors.
type Source interface {
	Snapshot() []fixture.Color
	Stats() simulator.Stats
}

type tickMsg time.Time

// RodsModel is the Bubble Tea model of the sculpture view.
type RodsModel struct {
	source  Source
	rods    []simulator.Rod
	order   []int // Rod indices, left to right.
	heights []int // Column height per rod, in rows.
	leds    []fixture.Color
	stats   simulator.Stats
	width   int
}

// NewRodsModel creates a view of rods colored from src.
func NewRodsModel(src Source, rods []simulator.Rod) RodsModel {
	order := make([]int, len(rods))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rods[order[a]].X < rods[order[b]].X
	})

	tallest := 0.0
	for _, r := range rods {
		tallest = math.Max(tallest, r.Height)
	}
	heights := make([]int, len(rods))
	for i, r := range rods {
		h := maxRows
		if tallest > 0 {
			h = int(math.Round(r.Height / tallest * maxRows))
		}
		heights[i] = max(h, 1)
	}

	return RodsModel{
		source:  src,
		rods:    rods,
		order:   order,
		heights: heights,
		leds:    src.Snapshot(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh loop.
func (m RodsModel) Init() tea.Cmd {
	return tick()
}

// Update handles refresh ticks and keys.
func (m RodsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.leds = m.source.Snapshot()
		m.stats = m.source.Stats()
		return m, tick()

	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the UI.
func (m RodsModel) View() string {
	title := titleStyle.Render(fmt.Sprintf("Light Sculpture Simulator (%d rods)", len(m.rods)))
	stats := infoStyle.Render(fmt.Sprintf("frames %d • updates %d • ignored %d",
		m.stats.Frames, m.stats.Updates, m.stats.Ignored))
	help := dimStyle.Render("q: Quit")
	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, m.renderRods(), stats, help)
}

// renderRods draws the rods bottom-aligned, one column each.
func (m RodsModel) renderRods() string {
	visible := m.order
	if m.width > 0 {
		if n := m.width / (rodWidth + 1); n < len(visible) {
			visible = visible[:n]
		}
	}

	var sb strings.Builder
	for row := maxRows; row >= 1; row-- {
		for i, idx := range visible {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if m.heights[idx] < row {
				sb.WriteString(strings.Repeat(" ", rodWidth))
				continue
			}
			c := fixture.Black
			if idx < len(m.leds) {
				c = m.leds[idx]
			}
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(c.String())).
				Render(strings.Repeat("█", rodWidth)))
		}
		sb.WriteByte('\n')
	}
	for i, idx := range visible {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(dimStyle.Render(fmt.Sprintf("%*d", rodWidth, idx%100)))
	}
	return sb.String()
}

// Run shows the sculpture until the user quits or ctx is done.
func Run(ctx context.Context, src Source, rods []simulator.Rod) error {
	p := tea.NewProgram(
		NewRodsModel(src, rods),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
