package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/benchwright/benchwright/internal/domain"
	"github.com/benchwright/benchwright/internal/policy"
)

var (
	headerStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	activeStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	staleStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	dimmedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	improvedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	regressedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	inconclusiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	selectedStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236"))

	statusBarStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255"))
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" Benchwright │ Active: %d │ Stale: %d │ Sessions: %d │ Verdicted: %d ",
		m.activeCount, m.staleCount, len(m.sessions), m.verdictedCount)
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.activeTab {
	case TabDashboard:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderActiveWorkspaces()))
		b.WriteString("\n")
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderRecentVerdicts()))
		b.WriteString("\n")
	case TabWorkspaces:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderWorkspaces()))
		b.WriteString("\n")
	case TabSessions:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderSessions()))
		b.WriteString("\n")
	}

	help := " q quit │ tab switch │ j/k move │ r refresh "
	b.WriteString(statusBarStyle.Width(m.width).Render(help))

	return b.String()
}

func (m Model) renderTabs() string {
	names := []string{"Dashboard", "Workspaces", "Sessions"}
	tabs := make([]string, len(names))
	for i, name := range names {
		if i == m.activeTab {
			tabs[i] = tabActiveStyle.Render(name)
		} else {
			tabs[i] = tabInactiveStyle.Render(name)
		}
	}
	return " " + strings.Join(tabs, "  ")
}

func (m Model) renderActiveWorkspaces() string {
	var b strings.Builder
	b.WriteString("Active workspaces\n")

	n := 0
	for _, ws := range m.workspaces {
		if ws.State != domain.WorkspaceActive {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s %s  touched %s\n",
			activeStyle.Render("●"), ws.Branch, humanize.Time(ws.LastTouched)))
		n++
	}
	if n == 0 {
		b.WriteString(dimmedStyle.Render("  none"))
	}
	return b.String()
}

func (m Model) renderRecentVerdicts() string {
	var b strings.Builder
	b.WriteString("Recent verdicts\n")

	n := 0
	for i := len(m.sessions) - 1; i >= 0 && n < 5; i-- {
		sess := m.sessions[i]
		if sess.State != domain.SessionVerdicted {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			verdictBadge(sess.Verdict), sess.Target, policy.FormatDelta(sess.Delta)))
		n++
	}
	if n == 0 {
		b.WriteString(dimmedStyle.Render("  none"))
	}
	return b.String()
}

func (m Model) renderWorkspaces() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Workspaces (%d)\n", len(m.workspaces)))

	maxVisible := m.visibleRows()
	end := min(m.scroll+maxVisible, len(m.workspaces))
	for i := m.scroll; i < end; i++ {
		ws := m.workspaces[i]
		line := fmt.Sprintf("  %-10s %-30s %s  %s",
			stateBadge(ws.State), ws.Branch, ws.BaseRepo, humanize.Time(ws.LastTouched))
		if i == m.selectedRow {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.workspaces) == 0 {
		b.WriteString(dimmedStyle.Render("  none"))
	}
	return b.String()
}

func (m Model) renderSessions() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Benchmark sessions (%d)\n", len(m.sessions)))

	maxVisible := m.visibleRows()
	end := min(m.scroll+maxVisible, len(m.sessions))
	for i := m.scroll; i < end; i++ {
		sess := m.sessions[i]
		line := fmt.Sprintf("  %-20s %-18s %s",
			sess.Target, string(sess.State), verdictBadge(sess.Verdict))
		if sess.State == domain.SessionVerdicted {
			line += "  " + policy.FormatDelta(sess.Delta)
		}
		if i == m.selectedRow {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.sessions) == 0 {
		b.WriteString(dimmedStyle.Render("  none"))
	}
	return b.String()
}

func stateBadge(s domain.WorkspaceState) string {
	switch s {
	case domain.WorkspaceActive:
		return activeStyle.Render(string(s))
	case domain.WorkspaceStale:
		return staleStyle.Render(string(s))
	default:
		return dimmedStyle.Render(string(s))
	}
}

func verdictBadge(v domain.Verdict) string {
	switch v {
	case domain.VerdictImproved:
		return improvedStyle.Render(string(v))
	case domain.VerdictRegressed:
		return regressedStyle.Render(string(v))
	case domain.VerdictInconclusive:
		return inconclusiveStyle.Render(string(v))
	default:
		return dimmedStyle.Render(string(v))
	}
}
