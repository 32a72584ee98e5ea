// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accent  = lipgloss.Color("#7C5CFF")
	green   = lipgloss.Color("#4ECDC4")
	yellow  = lipgloss.Color("#FFE66D")
	red     = lipgloss.Color("#FF6B6B")
	muted   = lipgloss.Color("#666666")
	divider = lipgloss.Color("#333")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	boldStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(muted)

	// boxStyle frames a receipt or a split summary.
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(divider).
			Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(divider)
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	amountStyle = lipgloss.NewStyle().Align(lipgloss.Right).Width(10)
)

// Message prefixes.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
)

// FormatSuccess renders message in green with a check mark.
func FormatSuccess(message string) string {
	return lipgloss.NewStyle().Foreground(green).Render(SuccessIcon + " " + message)
}

// FormatError renders message in red with a cross.
func FormatError(message string) string {
	return lipgloss.NewStyle().Foreground(red).Render(ErrorIcon + " " + message)
}

// FormatWarning renders message in yellow.
func FormatWarning(message string) string {
	return lipgloss.NewStyle().Foreground(yellow).Render(WarningIcon + " " + message)
}

// FormatInfo renders message dimmed.
func FormatInfo(message string) string {
	return dimStyle.Render(InfoIcon + " " + message)
}

// RenderBox draws content under a bold title inside a rounded border.
func RenderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content))
}
