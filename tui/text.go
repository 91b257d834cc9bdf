package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	textStyleColor      = lipgloss.AdaptiveColor{Light: "#36EEE0", Dark: "#00FFFF"}
	mutedStyleColor     = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	warningStyleColor   = lipgloss.AdaptiveColor{Light: "#FFA500", Dark: "#FFA500"}
	secondaryStyleColor = lipgloss.AdaptiveColor{Light: "#214358", Dark: "#AEB8C4"}
)

func render(style lipgloss.Style, text string) string {
	if !HasTTY {
		return text
	}
	return style.Render(text)
}

func Bold(text string) string {
	return render(lipgloss.NewStyle().Bold(true).Foreground(textStyleColor), text)
}

func Secondary(text string) string {
	return render(lipgloss.NewStyle().Foreground(secondaryStyleColor), text)
}

func Muted(text string) string {
	return render(lipgloss.NewStyle().Foreground(mutedStyleColor), text)
}

func Warning(text string) string {
	return render(lipgloss.NewStyle().Foreground(warningStyleColor), text)
}
