package clitui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/henry40408/lmb/internal/store"
)

// keyMap defines shared key bindings across clitui models.
type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// StoreModel is a Bubble Tea model browsing a snapshot of store key
// metadata (no live polling — a fresh `lmb store inspect --tui` invocation
// takes a new snapshot, matching the non-TUI renderer's data).
type StoreModel struct {
	keys     []store.KeyInfo
	cursor   int
	width    int
	height   int
	quitting bool
}

// NewStoreModel creates a new store-browser model over keys.
func NewStoreModel(keys []store.KeyInfo) StoreModel {
	return StoreModel{keys: keys}
}

// Init implements tea.Model.
func (m StoreModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m StoreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.keys)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m StoreModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Store (%d keys)", len(m.keys))))
	b.WriteString("\n\n")

	if len(m.keys) == 0 {
		b.WriteString(ValueStyle.Render("(empty)"))
	}

	for i, k := range m.keys {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%-24s %s %8d bytes  %s",
			cursor, k.Name, TypeHintStyle(k.TypeHint).Render(k.TypeHint), k.Size,
			k.UpdatedAt.Format("2006-01-02 15:04:05"))
		b.WriteString(line)
		b.WriteString("\n")
	}

	help := HelpStyle.Render("↑/↓ to move, q to quit")
	return BoxStyle.Render(b.String()) + "\n" + help
}

// RunStoreTUI runs the store-browser TUI.
func RunStoreTUI(viewType string, data any) error {
	keys, ok := data.([]store.KeyInfo)
	if !ok {
		return fmt.Errorf("invalid data type for %s", viewType)
	}
	model := NewStoreModel(keys)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
