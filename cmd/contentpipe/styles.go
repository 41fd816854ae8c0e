// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Palette. lipgloss drops the colors when stdout is not a terminal or
// NO_COLOR is set, so the plain text stays stable for scripts.
var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#A78BFA"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#9CA3AF"}
	colorOK     = lipgloss.Color("#10B981")
	colorFail   = lipgloss.Color("#EF4444")
	colorWarn   = lipgloss.Color("#F59E0B")
	colorSource = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
)

var (
	// TitleStyle renders headings such as "Load order:".
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	// SubtitleStyle renders versions, locations and other secondary values.
	SubtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)
	// SuccessStyle renders the ✓ markers.
	SuccessStyle = lipgloss.NewStyle().Foreground(colorOK)
	// ErrorStyle renders the ✗ markers and "Error:" prefixes.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorFail)
	// WarningStyle renders partial-load summaries and skipped candidates.
	WarningStyle = lipgloss.NewStyle().Foreground(colorWarn)
	// CmdStyle renders source and issue names.
	CmdStyle = lipgloss.NewStyle().Foreground(colorSource)

	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorMuted)
)
