package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/ferry/internal/config"
)

// palette is the set of colors every style is derived from.
type palette struct {
	ok, accent, warn, bad, speed, label, muted, dim, text lipgloss.Color
}

// mocha is the Catppuccin Mocha flavor.
var mocha = palette{
	ok:     "#a6e3a1",
	accent: "#89b4fa",
	warn:   "#f9e2af",
	bad:    "#f38ba8",
	speed:  "#94e2d5",
	label:  "#cba6f7",
	muted:  "#5a6278",
	dim:    "#3a4055",
	text:   "#cdd6f4",
}

var colors = mocha

var (
	styleHeader         lipgloss.Style
	styleHeaderLabel    lipgloss.Style
	styleDivider        lipgloss.Style
	styleIconDone       lipgloss.Style
	styleIconFailed     lipgloss.Style
	styleIconSkipped    lipgloss.Style
	styleFilePath       lipgloss.Style
	styleFileDir        lipgloss.Style
	styleFileSize       lipgloss.Style
	styleFileSpeed      lipgloss.Style
	styleInFlight       lipgloss.Style
	styleError          lipgloss.Style
	styleErrorPath      lipgloss.Style
	styleKeybindKey     lipgloss.Style
	styleKeybindLabel   lipgloss.Style
	styleBigNumber      lipgloss.Style
	styleSparkline      lipgloss.Style
	stylePaused         lipgloss.Style
	styleDecisionBox    lipgloss.Style
	styleDecisionTitle  lipgloss.Style
	styleProgressFilled lipgloss.Style
	styleProgressEmpty  lipgloss.Style
	styleStatus         lipgloss.Style
	styleSavePrompt     lipgloss.Style
	styleSaveInput      lipgloss.Style
)

func init() {
	rebuildStyles()
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func rebuildStyles() {
	c := colors

	styleHeader = fg(c.text).Bold(true)
	styleHeaderLabel = fg(c.label).Bold(true)
	styleDivider = fg(c.dim)
	styleProgressEmpty = fg(c.dim)

	styleIconDone = fg(c.ok)
	styleProgressFilled = fg(c.ok)
	styleBigNumber = fg(c.ok).Bold(true)
	styleIconFailed = fg(c.bad)
	styleError = fg(c.bad)
	styleErrorPath = fg(c.bad).Bold(true)

	styleIconSkipped = fg(c.muted)
	styleFileDir = fg(c.muted)
	styleFileSize = fg(c.muted)
	styleKeybindLabel = fg(c.muted)
	styleSavePrompt = fg(c.muted)
	styleFilePath = fg(c.text)
	styleSaveInput = fg(c.text)

	styleFileSpeed = fg(c.speed)
	styleInFlight = fg(c.accent)
	styleSparkline = fg(c.accent)
	styleKeybindKey = fg(c.label).Bold(true)

	stylePaused = fg(c.warn).Bold(true)
	styleStatus = fg(c.warn).Italic(true)
	styleDecisionTitle = fg(c.warn).Bold(true)
	styleDecisionBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c.warn).
		Padding(0, 1).
		MarginLeft(2)
}

// ApplyTheme starts from the default palette, overrides the colors set in
// tc and rebuilds every style.
func ApplyTheme(tc config.ThemeConfig) {
	colors = mocha
	for _, o := range []struct {
		v   *string
		dst *lipgloss.Color
	}{
		{tc.Green, &colors.ok},
		{tc.Blue, &colors.accent},
		{tc.Yellow, &colors.warn},
		{tc.Red, &colors.bad},
		{tc.Teal, &colors.speed},
		{tc.Mauve, &colors.label},
		{tc.Muted, &colors.muted},
		{tc.Dim, &colors.dim},
		{tc.Bright, &colors.text},
	} {
		if o.v != nil && *o.v != "" {
			*o.dst = lipgloss.Color(*o.v)
		}
	}
	rebuildStyles()
}
