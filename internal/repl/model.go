package repl

import (
	"bytes"
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle = lipgloss.NewStyle().Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	echoStyle   = lipgloss.NewStyle().Faint(true)
)

// model is the terminal UI: one input line with history. Command output
// is printed above it with tea.Println.
type model struct {
	ctx   context.Context
	shell *shell
	input textinput.Model

	// histPos indexes shell.history while browsing; Len() means the
	// line being edited.
	histPos int
	draft   string

	quitting bool
}

func newModel(ctx context.Context, s *shell) model {
	ti := textinput.New()
	ti.Prompt = s.prompt()
	ti.PromptStyle = promptStyle
	ti.Focus()
	return model{ctx: ctx, shell: s, input: ti, histPos: s.history.Len()}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyCtrlC:
			// Abandon the current line, like an interrupted readline.
			m.input.Reset()
			m.histPos = m.shell.history.Len()
			return m, nil
		case tea.KeyCtrlD:
			if m.input.Value() == "" {
				m.quitting = true
				return m, tea.Quit
			}
		case tea.KeyUp:
			m.browse(-1)
			return m, nil
		case tea.KeyDown:
			m.browse(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// browse moves through the history by delta, keeping the edited line as
// the newest entry.
func (m *model) browse(delta int) {
	h := m.shell.history
	pos := m.histPos + delta
	if pos < 0 || pos > h.Len() {
		return
	}
	if m.histPos == h.Len() {
		m.draft = m.input.Value()
	}
	m.histPos = pos
	if pos == h.Len() {
		m.input.SetValue(m.draft)
	} else {
		m.input.SetValue(h.At(pos))
	}
	m.input.CursorEnd()
}

func (m model) submit() (tea.Model, tea.Cmd) {
	line := m.input.Value()
	echo := echoStyle.Render(m.input.Prompt + line)
	m.input.Reset()
	m.shell.history.Add(line)
	m.histPos = m.shell.history.Len()
	m.draft = ""

	var buf bytes.Buffer
	quit := m.shell.exec(m.ctx, line, &buf, &buf)
	m.input.Prompt = m.shell.prompt()

	cmds := []tea.Cmd{tea.Println(echo)}
	if out := strings.TrimRight(buf.String(), "\n"); out != "" {
		cmds = append(cmds, tea.Println(out))
	}
	if quit {
		m.quitting = true
		cmds = append(cmds, tea.Quit)
	}
	return m, tea.Sequence(cmds...)
}

// View implements tea.Model.
func (m model) View() string {
	if m.quitting {
		return ""
	}
	return m.input.View()
}
