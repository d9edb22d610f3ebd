package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is a command banner with title, command, and parameters
type Header struct {
	Title   string   // e.g., "HUB SETUP"
	Command string   // e.g., "vegehub-cfg setup"
	Params  []Detail // shown in order
	Width   int      // Terminal width for responsive rendering
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params []Detail) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := max(h.Width, MinTerminalWidth)

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	topSection := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	content := topSection
	if len(h.Params) > 0 {
		divider := RenderHorizontalDivider(max(width-6, 10), "─")

		paramLines := make([]string, 0, len(h.Params))
		for _, p := range h.Params {
			paramLines = append(paramLines, HeaderParamKeyStyle.Render(p.Key+":")+" "+HeaderParamValueStyle.Render(p.Value))
		}
		content = lipgloss.JoinVertical(lipgloss.Left, topSection, divider, strings.Join(paramLines, "\n"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}

// HeaderConfig is a convenience type for creating headers
type HeaderConfig struct {
	Title   string
	Command string
	Params  []Detail
}

// RenderCommandHeader renders a header directly
func RenderCommandHeader(config HeaderConfig) string {
	return NewHeader(config.Title, config.Command, config.Params).Render()
}
