// Package ui renders bug views for the terminal.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorAccent = lipgloss.Color("#61AFEF")
	ColorPass   = lipgloss.Color("#98C379")
	ColorWarn   = lipgloss.Color("#E5C07B")
	ColorFail   = lipgloss.Color("#E06C75")
	ColorMuted  = lipgloss.Color("#636B78")
	ColorBorder = lipgloss.Color("#3F4451")
)

var (
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail).Bold(true)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			Padding(0, 1)

	CellStyle = lipgloss.NewStyle().Padding(0, 1)
)

// RenderAccent renders s in the accent color.
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderPass renders s as a success marker.
func RenderPass(s string) string { return PassStyle.Render(s) }

// RenderWarn renders s as a warning marker.
func RenderWarn(s string) string { return WarnStyle.Render(s) }

// RenderFail renders s as a failure marker.
func RenderFail(s string) string { return FailStyle.Render(s) }

// RenderMuted renders s de-emphasized.
func RenderMuted(s string) string { return MutedStyle.Render(s) }

// criticalityStyle colors a criticality label.
func criticalityStyle(label string) lipgloss.Style {
	switch label {
	case "High":
		return CellStyle.Foreground(ColorFail)
	case "Medium":
		return CellStyle.Foreground(ColorWarn)
	case "Low":
		return CellStyle.Foreground(ColorPass)
	default:
		return CellStyle.Foreground(ColorMuted).Italic(true)
	}
}
