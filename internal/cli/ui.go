package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/flowlines/pkg/config"
	flerrors "github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/flow"
	"github.com/matzehuels/flowlines/pkg/scheduler"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary, spine
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links, left route
	colorPink   = lipgloss.Color("211") // Pink - right route
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)
	StyleLink      = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
	StyleDim       = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue     = lipgloss.NewStyle().Foreground(colorWhite)
	StyleNumber    = lipgloss.NewStyle().Foreground(colorCyan)
	StyleWarning   = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)
	styleCommand  = lipgloss.NewStyle().Foreground(colorBlue)
)

// routeStyle colors each route the way the landing page draws it.
func routeStyle(r flow.Route) lipgloss.Style {
	switch r {
	case flow.Left:
		return lipgloss.NewStyle().Foreground(colorBlue)
	case flow.Right:
		return lipgloss.NewStyle().Foreground(colorPink)
	default:
		return lipgloss.NewStyle().Foreground(colorCyan)
	}
}

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
	separator   = " · "
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Println(styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// =============================================================================
// Geometry Output
// =============================================================================

// printRoute prints one configured route: its anchor chain and bow.
func printRoute(r flow.Route, route config.Route) {
	fmt.Println(formatRoute(r, route))
}

func formatRoute(r flow.Route, route config.Route) string {
	name := routeStyle(r).Width(12).Render(r.String())
	chain := strings.Join(route.Anchors, " "+iconArrow+" ")
	if route.Bow == 0 {
		return name + " " + StyleValue.Render(chain)
	}
	return name + " " + StyleValue.Render(chain) + StyleDim.Render(fmt.Sprintf(" (bow %.2f)", route.Bow))
}

// printGeometry prints the container size, anchor count and per-route
// marker counts of a rendered geometry on a single line.
func printGeometry(g flow.Geometry, anchorCount int, cached bool) {
	fmt.Println("  " + formatGeometry(g, anchorCount, cached))
}

func formatGeometry(g flow.Geometry, anchorCount int, cached bool) string {
	parts := []string{StyleDim.Render(formatSize(g.Dimensions.Width, g.Dimensions.Height))}
	if anchorCount > 0 {
		parts = append(parts, StyleDim.Render(fmt.Sprintf("%d anchors", anchorCount)))
	}
	for _, r := range flow.AllRoutes {
		if n := len(g.Samples.Get(r)); n > 0 {
			parts = append(parts, routeStyle(r).Render(r.String())+StyleDim.Render(fmt.Sprintf(" %d", n)))
		}
	}
	if cached {
		parts = append(parts, styleCached.Render(iconCached))
	} else {
		parts = append(parts, styleComputed.Render(iconFresh))
	}
	return strings.Join(parts, StyleDim.Render(separator))
}

// printSnapshot reports a published snapshot: a success line with its
// size, or a warning carrying the pass's user-facing error.
func printSnapshot(snap *scheduler.Snapshot, output string) {
	if snap.Failed() {
		printWarning("%s", formatSnapshot(snap, output))
		return
	}
	printSuccess("%s", formatSnapshot(snap, output))
}

func formatSnapshot(snap *scheduler.Snapshot, output string) string {
	head := fmt.Sprintf("#%d", snap.Seq)
	if snap.Failed() {
		return head + " " + flerrors.UserMessage(snap.Err)
	}
	markers := 0
	for _, r := range flow.AllRoutes {
		markers += len(snap.SampledPoints.Get(r))
	}
	return head + " " + StyleValue.Render(output) +
		StyleDim.Render(separator+formatSize(snap.Dimensions.Width, snap.Dimensions.Height)+
			separator+fmt.Sprintf("%d markers", markers))
}

func formatSize(w, h float64) string {
	return fmt.Sprintf("%g × %g", w, h)
}
