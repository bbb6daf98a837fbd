package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/bouwkansen/pkg/export"
)

// TermProfile holds the detected terminal color profile.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Adaptive palette. Light variants keep WCAG AA contrast on white.
var (
	ColorText      = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}
	ColorInfo      = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning   = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorBorder    = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"}
	ColorHighlight = lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"}

	ColorSuccessBg = lipgloss.AdaptiveColor{Light: "#D4EDDA", Dark: "#1A3D2A"}
	ColorWarningBg = lipgloss.AdaptiveColor{Light: "#FFE8CC", Dark: "#3D2A1A"}
	ColorDangerBg  = lipgloss.AdaptiveColor{Light: "#F8D7DA", Dark: "#3D1A1A"}
)

// Theme bundles the styles of the browser, created once per renderer.
type Theme struct {
	Renderer *lipgloss.Renderer

	Base      lipgloss.Style
	Header    lipgloss.Style
	Selected  lipgloss.Style
	Muted     lipgloss.Style
	Info      lipgloss.Style
	Amount    lipgloss.Style
	Key       lipgloss.Style
	Title     lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Box       lipgloss.Style
	FilterTag lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{Renderer: r}

	t.Base = r.NewStyle().Foreground(ColorText)
	t.Header = r.NewStyle().
		Background(ColorPrimary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)
	t.Selected = r.NewStyle().
		Background(ColorHighlight).
		Foreground(ColorText).
		Bold(true)
	t.Muted = r.NewStyle().Foreground(ColorMuted)
	t.Info = r.NewStyle().Foreground(ColorInfo)
	t.Amount = r.NewStyle().Foreground(ColorSuccess).Bold(true)
	t.Key = r.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Title = r.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Warning = r.NewStyle().Background(ColorWarningBg).Foreground(ColorWarning).Bold(true).Padding(0, 1)
	t.Error = r.NewStyle().Background(ColorDangerBg).Foreground(ColorDanger).Bold(true).Padding(0, 1)
	t.Success = r.NewStyle().Background(ColorSuccessBg).Foreground(ColorSuccess).Bold(true).Padding(0, 1)
	t.Box = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(1, 2)
	t.FilterTag = r.NewStyle().Foreground(ColorInfo).Bold(true)

	return t
}

// CategoryStyle colors a category id with its chart color.
func (t Theme) CategoryStyle(id string) lipgloss.Style {
	return t.Renderer.NewStyle().Foreground(ThemeFg(export.CategoryHex(id)))
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
