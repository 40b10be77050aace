package repl

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// plainColorProfile renders lipgloss styles without escape sequences for
// the duration of the test.
func plainColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.Ascii)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

func newTestModel(t *testing.T, history ...string) (model, *fixture) {
	t.Helper()
	f := newFixture(t, "")
	s := newShell(f.opts)
	for _, h := range history {
		s.history.Add(h)
	}
	return newModel(context.Background(), s), f
}

func press(m model, k tea.KeyType) model {
	next, _ := m.Update(tea.KeyMsg{Type: k})
	return next.(model)
}

func TestModel_HistoryNavigation(t *testing.T) {
	m, _ := newTestModel(t, "grep one", "grep two")
	m.input.SetValue("draft")

	m = press(m, tea.KeyUp)
	if got := m.input.Value(); got != "grep two" {
		t.Fatalf("after up: %q, want grep two", got)
	}
	m = press(m, tea.KeyUp)
	m = press(m, tea.KeyUp) // already at the oldest entry
	if got := m.input.Value(); got != "grep one" {
		t.Fatalf("after up x3: %q, want grep one", got)
	}
	m = press(m, tea.KeyDown)
	m = press(m, tea.KeyDown)
	if got := m.input.Value(); got != "draft" {
		t.Errorf("after returning: %q, want the draft line", got)
	}
}

func TestModel_SubmitRunsLine(t *testing.T) {
	m, f := newTestModel(t)
	m.input.SetValue("set format json")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if cmd == nil {
		t.Fatal("submit returned no command")
	}
	if f.opts.Settings.Format != "json" {
		t.Errorf("Format = %q, want json", f.opts.Settings.Format)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
	if got := m.shell.history.Entries(); len(got) != 1 || got[0] != "set format json" {
		t.Errorf("history = %q", got)
	}
	if m.quitting {
		t.Error("quitting after a set command")
	}
}

func TestModel_QuitAndCtrlD(t *testing.T) {
	m, _ := newTestModel(t)
	m.input.SetValue("quit")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !next.(model).quitting {
		t.Error("quit did not stop the shell")
	}

	m, _ = newTestModel(t)
	m.input.SetValue("grep x")
	if press(m, tea.KeyCtrlD).quitting {
		t.Error("ctrl+d with a pending line quit the shell")
	}
	if got := press(m, tea.KeyCtrlC).input.Value(); got != "" {
		t.Errorf("ctrl+c left %q in the input", got)
	}
	m.input.SetValue("")
	if !press(m, tea.KeyCtrlD).quitting {
		t.Error("ctrl+d on an empty line did not quit")
	}
}

func TestModel_ViewShowsPrompt(t *testing.T) {
	plainColorProfile(t)
	m, _ := newTestModel(t)
	if v := m.View(); !strings.HasPrefix(v, "gcg (no book)> ") {
		t.Errorf("View = %q, want the no-book prompt", v)
	}
	m.quitting = true
	if v := m.View(); v != "" {
		t.Errorf("View after quit = %q, want empty", v)
	}
}
