package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	flerrors "github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/flow"
	"github.com/matzehuels/flowlines/pkg/scheduler"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
)

// statusRefresh is how often the view polls scheduler state.
const statusRefresh = 250 * time.Millisecond

// =============================================================================
// WatchModel - Live snapshot status
// =============================================================================

// statusSource reports scheduler state to the view.
type statusSource interface {
	State() scheduler.State
	Stats() scheduler.Stats
}

// snapshotMsg announces a published snapshot and the outcome of writing it.
type snapshotMsg struct {
	snap *scheduler.Snapshot
	err  error
}

type tickMsg time.Time

// WatchModel is the bubbletea model for the watch command's status view.
type WatchModel struct {
	URL    string
	Output string

	source   statusSource
	state    scheduler.State
	stats    scheduler.Stats
	snap     *scheduler.Snapshot
	writeErr error
	writes   int
	now      func() time.Time
}

// newWatchModel creates a watch model polling source.
func newWatchModel(url, output string, source statusSource) WatchModel {
	return WatchModel{URL: url, Output: output, source: source, now: time.Now}
}

func tick() tea.Cmd {
	return tea.Tick(statusRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m WatchModel) Init() tea.Cmd {
	return tick()
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.state = m.source.State()
		m.stats = m.source.Stats()
		return m, tick()
	case snapshotMsg:
		m.snap = msg.snap
		m.writeErr = msg.err
		if msg.err == nil {
			m.writes++
		}
	}
	return m, nil
}

func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("flowlines watch"))
	b.WriteString("  ")
	b.WriteString(StyleLink.Render(m.URL))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("q quit"))
	b.WriteString("\n\n")

	printRow := func(key, value string) {
		keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
		b.WriteString(keyStyle.Render(key) + " " + value + "\n")
	}
	printRow("state", StyleHighlight.Render(m.state.String()))
	printRow("passes", fmt.Sprintf("%s computed · %s coalesced · %s failed",
		StyleNumber.Render(strconv.FormatUint(m.stats.Computations, 10)),
		StyleNumber.Render(strconv.FormatUint(m.stats.Coalesced, 10)),
		StyleNumber.Render(strconv.FormatUint(m.stats.Failures, 10))))
	printRow("output", fmt.Sprintf("%s (%d writes)", StyleValue.Render(m.Output), m.writes))

	if m.snap == nil {
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render("waiting for the first snapshot"))
		return b.String()
	}

	printRow("snapshot", fmt.Sprintf("#%d %s", m.snap.Seq, listDimStyle.Render(formatAge(m.now().Sub(m.snap.ComputedAt)))))
	printRow("size", formatSize(m.snap.Dimensions.Width, m.snap.Dimensions.Height))
	b.WriteString("\n")

	rows := make([][]string, 0, len(flow.AllRoutes))
	for _, r := range flow.AllRoutes {
		rows = append(rows, []string{
			r.String(),
			strconv.Itoa(len(m.snap.Routes.Get(r))),
			strconv.Itoa(len(m.snap.SampledPoints.Get(r))),
		})
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	failed := m.snap.Failed()
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Route", "Waypoints", "Markers").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if failed {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			if col == 0 {
				return routeStyle(flow.AllRoutes[row])
			}
			return lipgloss.NewStyle()
		})
	b.WriteString(t.Render())
	b.WriteString("\n")

	if failed {
		b.WriteString(errorStyle.Render(iconError + " " + flerrors.UserMessage(m.snap.Err)))
		b.WriteString("\n")
	}
	if m.writeErr != nil {
		b.WriteString(errorStyle.Render(iconError + " write: " + m.writeErr.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
