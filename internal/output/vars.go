package output

import "github.com/charmbracelet/lipgloss"

var (
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("37"))            // dark green
	success2Style = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))             // green
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))             // red
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))            // blue
	debugStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))           // light grey
	streamStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))           // grey
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")) // purple
)

const (
	symbolPass    = "✓"
	symbolFail    = "✗"
	symbolWarning = "!"
	symbolPending = "◉"
	symbolBullet  = "•"
	symbolHLine   = "━"
)

const (
	statusPending = "pending"
	statusSuccess = "success"
	statusWarning = "warning"
	statusError   = "error"
)

func styleFor(status string) lipgloss.Style {
	switch status {
	case statusSuccess:
		return successStyle
	case statusError:
		return errorStyle
	case statusWarning:
		return warningStyle
	}
	return pendingStyle
}

func indicator(status string) string {
	switch status {
	case statusSuccess:
		return successStyle.Render(symbolPass)
	case statusError:
		return errorStyle.Render(symbolFail)
	case statusWarning:
		return warningStyle.Render(symbolWarning)
	}
	return pendingStyle.Render(symbolPending)
}

// Header renders a bold section title.
func Header(text string) string {
	return headerStyle.Render(text)
}
