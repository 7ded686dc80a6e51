package clitui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// SchedulerSnapshot is the data `lmb stats` renders: a point-in-time read
// of a serve process's /_stats, whose pending_ops is the number of
// evaluations currently in flight. It is plain data so the
// same struct renders identically via clirender's json/table/yaml paths
// and this TUI.
type SchedulerSnapshot struct {
	PendingOps int `json:"pending_ops"`
}

// StatsModel is a Bubble Tea model for the scheduler stats view.
type StatsModel struct {
	snapshot SchedulerSnapshot
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(snapshot SchedulerSnapshot) StatsModel {
	return StatsModel{snapshot: snapshot}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Scheduler activity"))
	b.WriteString("\n\n")
	b.WriteString(StatBoxStyle.Render(
		StatLabelStyle.Render("pending ops") + "\n" +
			StatValueStyle.Render(fmt.Sprintf("%d", m.snapshot.PendingOps))))

	help := HelpStyle.Render("q to quit")
	return b.String() + "\n" + help
}

// RunStatsTUI runs the scheduler stats TUI.
func RunStatsTUI(viewType string, data any) error {
	snapshot, ok := data.(SchedulerSnapshot)
	if !ok {
		return fmt.Errorf("invalid data type for %s", viewType)
	}
	model := NewStatsModel(snapshot)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
