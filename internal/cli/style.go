package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ANSI-256 palette.
var (
	colorAccent = lipgloss.Color("214")
	colorOK     = lipgloss.Color("114")
	colorFail   = lipgloss.Color("203")
	colorWarn   = lipgloss.Color("220")
	colorMuted  = lipgloss.Color("245")
	colorText   = lipgloss.Color("255")
)

// styles renders CLI output. With a non-terminal writer or --json every
// method returns its input unchanged.
type styles struct {
	enabled bool

	accent  lipgloss.Style
	header  lipgloss.Style
	muted   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	success lipgloss.Style
}

func newStyles(w io.Writer, jsonMode bool) styles {
	enabled := false
	if f, ok := w.(*os.File); ok && !jsonMode {
		enabled = term.IsTerminal(int(f.Fd()))
	}
	return styles{
		enabled: enabled,
		accent:  lipgloss.NewStyle().Foreground(colorAccent),
		header:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		muted:   lipgloss.NewStyle().Foreground(colorMuted),
		label:   lipgloss.NewStyle().Foreground(colorMuted),
		value:   lipgloss.NewStyle().Foreground(colorText),
		warning: lipgloss.NewStyle().Bold(true).Foreground(colorWarn),
		failure: lipgloss.NewStyle().Bold(true).Foreground(colorFail),
		success: lipgloss.NewStyle().Foreground(colorOK),
	}
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

func (s styles) banner() string { return s.render(s.accent, "cwmcp") }

func (s styles) sectionHeader(title string) string { return s.render(s.header, title) }

func (s styles) dim(text string) string { return s.render(s.muted, text) }

func (s styles) ok(text string) string { return s.render(s.success, text) }

func (s styles) errPrefix() string { return s.render(s.failure, "ERROR:") }

func (s styles) warnPrefix() string { return s.render(s.warning, "WARNING:") }

// kv formats an indented "key:  value" line with the key padded.
func (s styles) kv(key, value string) string {
	return fmt.Sprintf("  %s %s", s.render(s.label, fmt.Sprintf("%-18s", key+":")), s.render(s.value, value))
}
