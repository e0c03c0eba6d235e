// Package tui is the terminal dashboard: live workspace and benchmark
// session state rendered with bubbletea.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/benchwright/benchwright/internal/domain"
)

// DataSource supplies the dashboard's data on each refresh tick
type DataSource interface {
	Workspaces() []*domain.WorkspaceRecord
	Sessions() []*domain.BenchmarkSession
}

// Tab indices
const (
	TabDashboard = iota
	TabWorkspaces
	TabSessions
	tabCount
)

// Model is the TUI application model
type Model struct {
	source DataSource

	// Data
	workspaces []*domain.WorkspaceRecord
	sessions   []*domain.BenchmarkSession

	// Stats
	activeCount    int
	staleCount     int
	verdictedCount int

	// UI state
	width       int
	height      int
	activeTab   int
	selectedRow int
	scroll      int

	// Refresh
	lastRefresh time.Time
}

// NewModel creates a TUI model populated from the source
func NewModel(source DataSource) Model {
	m := Model{source: source}
	m.refresh()
	return m
}

func (m *Model) refresh() {
	m.workspaces = m.source.Workspaces()
	m.sessions = m.source.Sessions()
	m.lastRefresh = time.Now()

	m.activeCount, m.staleCount, m.verdictedCount = 0, 0, 0
	for _, ws := range m.workspaces {
		switch ws.State {
		case domain.WorkspaceActive:
			m.activeCount++
		case domain.WorkspaceStale:
			m.staleCount++
		}
	}
	for _, sess := range m.sessions {
		if sess.State == domain.SessionVerdicted {
			m.verdictedCount++
		}
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg triggers a refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
