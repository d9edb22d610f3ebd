package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmPhrase must be typed to confirm a destructive operation
const ConfirmPhrase = "yes"

// ConfirmDangerousOperation shows a warning box on out and reads one line from
// in. It returns true only if the user typed ConfirmPhrase.
func ConfirmDangerousOperation(in io.Reader, out io.Writer, title string, warnings []string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)), ""}
	for _, warning := range warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render("   • "+warning))
	}
	lines = append(lines, "")

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	fmt.Fprintln(out, box)
	fmt.Fprintln(out)
	fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", ConfirmPhrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	if strings.EqualFold(strings.TrimSpace(input), ConfirmPhrase) {
		return true
	}

	fmt.Fprintln(out, MutedStyle.Render("  Operation cancelled."))
	return false
}

// RestoreConfirmation asks before a config file overwrites a hub's configuration
func RestoreConfirmation(in io.Reader, out io.Writer, device, file string) bool {
	return ConfirmDangerousOperation(in, out,
		"CONFIG RESTORE",
		[]string{
			fmt.Sprintf("The configuration of %s will be replaced by %s", device, file),
			"Endpoints, WiFi and sampling settings are all overwritten",
			"Take a backup first with: vegehub-cfg config dump",
		},
	)
}
