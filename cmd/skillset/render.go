package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"skillset/internal/config"
	"skillset/internal/preset"
	"skillset/internal/repocache"
	"skillset/internal/settings"
	"skillset/internal/skilllink"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	effectStyles = map[preset.Effect]lipgloss.Style{
		preset.Allow: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		preset.Deny:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		preset.Ask:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
)

func renderEffect(e preset.Effect) string {
	if e == "" {
		return dimStyle.Render("(absent)")
	}
	if st, ok := effectStyles[e]; ok {
		return st.Render(string(e))
	}
	return string(e)
}

// renderDiff prints one line per change: "  + pattern: allow" for new
// patterns, "  ~ pattern: allow -> deny" for moved ones.
func renderDiff(d settings.Diff) string {
	var b strings.Builder
	for _, c := range d {
		if c.Old == "" {
			fmt.Fprintf(&b, "  + %s: %s\n", c.Pattern, renderEffect(c.New))
			continue
		}
		fmt.Fprintf(&b, "  ~ %s: %s -> %s\n", c.Pattern, renderEffect(c.Old), renderEffect(c.New))
	}
	return b.String()
}

func renderOutcome(o repocache.Outcome) string {
	if !o.OK() {
		return fmt.Sprintf("%s %s: %s", failStyle.Render("fail"), o.ID, o.Error)
	}
	line := fmt.Sprintf("%s   %s", okStyle.Render("ok"), o.ID)
	if o.Revision != "" {
		line += " @ " + o.Revision
	}
	return line
}

func linkName(l skilllink.Link) string {
	switch {
	case l.Kind == skilllink.KindNone:
		return l.Name + dimStyle.Render(" (not a link)")
	case l.Dangling:
		return l.Name + " -> " + l.Target + failStyle.Render(" (dangling)")
	default:
		return l.Name + " -> " + l.Target
	}
}

func scopeOf(global bool) config.Scope {
	if global {
		return config.ScopeGlobal
	}
	return config.ScopeProject
}
