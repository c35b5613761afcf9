package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/jarprobe/pkg/dependency"
	"github.com/matzehuels/jarprobe/pkg/egress"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	stylePublic  = lipgloss.NewStyle().Foreground(colorGreen)
	stylePrivate = lipgloss.NewStyle().Foreground(colorYellow)
	styleDropped = lipgloss.NewStyle().Foreground(colorDim)

	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	styleCell   = lipgloss.NewStyle().Padding(0, 1)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Tables
// =============================================================================

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(StyleDim).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		})
}

// renderSummary writes one row per library with its disposition and the
// coordinate it settled on.
func renderSummary(w io.Writer, public, private, dropped []*dependency.Record) {
	t := newTable("LIBRARY", "STATUS", "COORDINATE", "REPOSITORY")
	add := func(recs []*dependency.Record, status string, style lipgloss.Style) {
		for _, r := range recs {
			coord, repo := "-", "-"
			if res, ok := r.Resolved(); ok {
				coord = res.Coordinate.String()
				if res.Synthetic() {
					repo = "local"
				} else {
					repo = res.Repository
				}
			}
			t.Row(r.Name(), style.Render(status), coord, repo)
		}
	}
	add(public, "public", stylePublic)
	add(private, "private", stylePrivate)
	add(dropped, "dropped", styleDropped)
	fmt.Fprintln(w, t.Render())
}

// renderEndpoints writes the live egress endpoints.
func renderEndpoints(w io.Writer, endpoints []egress.Endpoint) {
	t := newTable("#", "ENDPOINT")
	for i, e := range endpoints {
		t.Row(strconv.Itoa(i+1), e.String())
	}
	fmt.Fprintln(w, t.Render())
}

// printCounts prints the disposition counts on a single line.
func printCounts(public, private, dropped int) {
	fmt.Println("  " +
		stylePublic.Render(fmt.Sprintf("%d public", public)) + StyleDim.Render(" · ") +
		stylePrivate.Render(fmt.Sprintf("%d private", private)) + StyleDim.Render(" · ") +
		styleDropped.Render(fmt.Sprintf("%d dropped", dropped)))
}
