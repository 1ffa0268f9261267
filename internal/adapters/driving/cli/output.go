package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
)

// Output styles shared by the commands.
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)

	statusStyles = map[domain.LibraryStatus]lipgloss.Style{
		domain.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		domain.StatusProcessing: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		domain.StatusReady:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		domain.StatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

// statusLabel renders a library status with its colour.
func statusLabel(status domain.LibraryStatus) string {
	if style, ok := statusStyles[status]; ok {
		return style.Render(string(status))
	}
	return string(status)
}

// terminalWidth returns the stdout width, falling back to 80 columns
// when stdout is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
