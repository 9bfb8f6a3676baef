package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/snapwatch/internal/config"
)

// Catppuccin Mocha palette, mutable so config can override.
var (
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorBlue   = lipgloss.Color("#89b4fa")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorTeal   = lipgloss.Color("#94e2d5")
	ColorMauve  = lipgloss.Color("#cba6f7")
	ColorMuted  = lipgloss.Color("#5a6278")
	ColorDim    = lipgloss.Color("#3a4055")
	ColorBright = lipgloss.Color("#cdd6f4")
)

// Pre-built styles, rebuilt by rebuildStyles() after color changes.
var (
	styleHeader       lipgloss.Style
	styleHeaderLabel  lipgloss.Style
	styleDivider      lipgloss.Style
	styleIconAdded    lipgloss.Style
	styleIconRemoved  lipgloss.Style
	styleIconModified lipgloss.Style
	styleFilePath     lipgloss.Style
	styleFileDir      lipgloss.Style
	styleDetail       lipgloss.Style
	styleScanning     lipgloss.Style
	styleCounter      lipgloss.Style
	styleError        lipgloss.Style
	styleErrorPath    lipgloss.Style
	styleKeybindKey   lipgloss.Style
	styleKeybindLabel lipgloss.Style
	styleBigNumber    lipgloss.Style
	styleSparkline    lipgloss.Style
	styleStatus       lipgloss.Style
	styleSavePrompt   lipgloss.Style
	styleSaveInput    lipgloss.Style
)

func init() {
	rebuildStyles()
}

// rebuildStyles reconstructs all lipgloss styles from the current color vars.
func rebuildStyles() {
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorBright)
	styleHeaderLabel = lipgloss.NewStyle().Bold(true).Foreground(ColorMauve)
	styleDivider = lipgloss.NewStyle().Foreground(ColorDim)
	styleIconAdded = lipgloss.NewStyle().Foreground(ColorGreen)
	styleIconRemoved = lipgloss.NewStyle().Foreground(ColorRed)
	styleIconModified = lipgloss.NewStyle().Foreground(ColorYellow)
	styleFilePath = lipgloss.NewStyle().Foreground(ColorBright)
	styleFileDir = lipgloss.NewStyle().Foreground(ColorMuted)
	styleDetail = lipgloss.NewStyle().Foreground(ColorMuted)
	styleScanning = lipgloss.NewStyle().Foreground(ColorBlue)
	styleCounter = lipgloss.NewStyle().Foreground(ColorTeal)
	styleError = lipgloss.NewStyle().Foreground(ColorRed)
	styleErrorPath = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	styleKeybindKey = lipgloss.NewStyle().Foreground(ColorMauve).Bold(true)
	styleKeybindLabel = lipgloss.NewStyle().Foreground(ColorMuted)
	styleBigNumber = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	styleSparkline = lipgloss.NewStyle().Foreground(ColorBlue)
	styleStatus = lipgloss.NewStyle().Foreground(ColorYellow).Italic(true)
	styleSavePrompt = lipgloss.NewStyle().Foreground(ColorMuted)
	styleSaveInput = lipgloss.NewStyle().Foreground(ColorBright)
}

// ApplyTheme overrides colors from a config ThemeConfig and rebuilds all styles.
func ApplyTheme(tc config.ThemeConfig) {
	for _, o := range []struct {
		dst *lipgloss.Color
		src *string
	}{
		{&ColorGreen, tc.Green},
		{&ColorBlue, tc.Blue},
		{&ColorYellow, tc.Yellow},
		{&ColorRed, tc.Red},
		{&ColorTeal, tc.Teal},
		{&ColorMauve, tc.Mauve},
		{&ColorMuted, tc.Muted},
		{&ColorDim, tc.Dim},
		{&ColorBright, tc.Bright},
	} {
		if o.src != nil {
			*o.dst = lipgloss.Color(*o.src)
		}
	}
	rebuildStyles()
}
