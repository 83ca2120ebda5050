package browse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/smileynet/etm/table"
)

// fakeLoader serves fixed tables by name and counts calls.
type fakeLoader struct {
	tables map[string]*table.Table
	errs   map[string]error
	calls  map[string]int
	resets int
}

func newFakeLoader() *fakeLoader {
	demand := table.New([]string{"key"}, []string{"demand"})
	_ = demand.Append([]string{"households"}, []any{1234.5})
	curve := table.New(nil, []string{"heat_pump"})
	_ = curve.Append(nil, []any{0.5})
	return &fakeLoader{
		tables: map[string]*table.Table{"application_demands": demand, "heat_network": curve},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeLoader) Table(_ context.Context, name string) (*table.Table, error) {
	f.calls[name]++
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	t, ok := f.tables[name]
	if !ok {
		return nil, errors.New("unknown view " + name)
	}
	return t, nil
}

func (f *fakeLoader) ResetCaches() { f.resets++ }

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step applies msg and feeds every resulting message back into the model
// until no commands remain. Spinner ticks are skipped.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	queue := []tea.Msg{msg}
	for n := 0; len(queue) > 0; n++ {
		if n > 20 {
			t.Fatal("step: too many messages")
		}
		next, cmd := m.Update(queue[0])
		m = next.(Model)
		queue = append(queue[1:], run(cmd)...)
	}
	return m
}

// run executes cmd, expanding batches. Spinner ticks are skipped to avoid
// recursion.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		batch = tea.BatchMsg{func() tea.Msg { return msg }}
	}
	var msgs []tea.Msg
	for _, c := range batch {
		if c == nil {
			continue
		}
		out := c()
		if _, isTick := out.(spinner.TickMsg); !isTick && out != nil {
			msgs = append(msgs, out)
		}
	}
	return msgs
}

func ready(t *testing.T, loader Loader, names ...string) Model {
	t.Helper()
	m := NewModel(context.Background(), loader, "1 Base", names)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(Model)
}

func TestSplitWidth(t *testing.T) {
	tests := []struct {
		total, list, viewer int
	}{
		{total: 0, list: 0, viewer: 0},
		{total: 20, list: MinListWidth, viewer: 0},
		{total: 60, list: MinListWidth, viewer: 60 - MinListWidth},
		{total: 200, list: 50, viewer: 150},
	}
	for _, tt := range tests {
		l, v := SplitWidth(tt.total)
		if l != tt.list || v != tt.viewer {
			t.Errorf("SplitWidth(%d) = %d, %d; want %d, %d", tt.total, l, v, tt.list, tt.viewer)
		}
	}
}

func TestModel_FirstAndLastView(t *testing.T) {
	m := ready(t, newFakeLoader(), "a", "b", "c")

	m = step(t, m, keyPress("G"))
	if m.Selected() != "c" {
		t.Errorf("after G, Selected() = %q, want c", m.Selected())
	}
	m = step(t, m, keyPress("g"))
	if m.Selected() != "a" {
		t.Errorf("after g, Selected() = %q, want a", m.Selected())
	}
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnd})
	if m.Selected() != "c" {
		t.Errorf("after end, Selected() = %q, want c", m.Selected())
	}
}

func TestModel_HelpBarNamesBrowserActions(t *testing.T) {
	m := ready(t, newFakeLoader(), "a")

	view := stripANSI(m.View())

	for _, want := range []string{"next view", "open", "reload from engine", "quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("help bar missing %q:\n%s", want, view)
		}
	}
}

func TestModel_InitLoadsFirstView(t *testing.T) {
	// Given a browser over two views
	loader := newFakeLoader()
	m := ready(t, loader, "application_demands", "heat_network")

	// When the Init command completes
	msg := m.Init()
	for _, out := range run(msg) {
		next, _ := m.Update(out)
		m = next.(Model)
	}

	// Then the first view is shown and only it was fetched
	if m.Shown() != "application_demands" {
		t.Errorf("Shown() = %q, want application_demands", m.Shown())
	}
	if loader.calls["application_demands"] != 1 || loader.calls["heat_network"] != 0 {
		t.Errorf("calls = %v", loader.calls)
	}
	if !strings.Contains(m.View(), "households") {
		t.Errorf("view should contain the table:\n%s", m.View())
	}
}

func TestModel_CursorWraps(t *testing.T) {
	m := ready(t, newFakeLoader(), "a", "b", "c")

	m = step(t, m, keyPress("up"))
	if m.Selected() != "c" {
		t.Errorf("after up from top, Selected() = %q, want c", m.Selected())
	}
	m = step(t, m, keyPress("down"))
	m = step(t, m, keyPress("j"))
	if m.Selected() != "b" {
		t.Errorf("Selected() = %q, want b", m.Selected())
	}
}

func TestModel_EnterLoadsOnceThenServesCache(t *testing.T) {
	// Given a browser whose first view is loaded
	loader := newFakeLoader()
	m := ready(t, loader, "application_demands", "heat_network")
	m = step(t, m, TableLoadedMsg{Name: "application_demands", Table: loader.tables["application_demands"]})

	// When the second view is opened, then reopened
	m = step(t, m, keyPress("down"))
	m = step(t, m, keyPress("enter"))
	m = step(t, m, keyPress("up"))
	m = step(t, m, keyPress("down"))
	m = step(t, m, keyPress("enter"))

	// Then it was fetched once and is shown
	if loader.calls["heat_network"] != 1 {
		t.Errorf("heat_network calls = %d, want 1", loader.calls["heat_network"])
	}
	if m.Shown() != "heat_network" {
		t.Errorf("Shown() = %q, want heat_network", m.Shown())
	}
}

func TestModel_OneLoadAtATime(t *testing.T) {
	// Given the first view still loading
	loader := newFakeLoader()
	m := ready(t, loader, "application_demands", "heat_network")

	// When another view is opened
	m = step(t, m, keyPress("down"))
	m = step(t, m, keyPress("enter"))

	// Then no second fetch starts
	if loader.calls["heat_network"] != 0 {
		t.Errorf("heat_network calls = %d, want 0 while another load runs", loader.calls["heat_network"])
	}
}

func TestModel_LoadErrorShownAndRetried(t *testing.T) {
	// Given a view that fails to load
	loader := newFakeLoader()
	loader.errs["sankey"] = errors.New("engine unavailable")
	m := ready(t, loader, "sankey")
	m = step(t, m, TableLoadedMsg{Name: "sankey", Err: loader.errs["sankey"]})

	// Then the error is shown
	if !containsPlain(m.View(), "engine unavailable") {
		t.Errorf("view should show the error:\n%s", m.View())
	}

	// When the engine recovers and r is pressed
	delete(loader.errs, "sankey")
	loader.tables["sankey"] = loader.tables["application_demands"]
	m = step(t, m, keyPress("r"))

	// Then caches were reset and the view reloaded
	if loader.resets != 1 {
		t.Errorf("resets = %d, want 1", loader.resets)
	}
	if loader.calls["sankey"] != 1 {
		t.Errorf("sankey calls = %d, want 1", loader.calls["sankey"])
	}
	if containsPlain(m.View(), "engine unavailable") {
		t.Errorf("error should be cleared:\n%s", m.View())
	}
}

func TestModel_TabSwitchesFocus(t *testing.T) {
	m := ready(t, newFakeLoader(), "a", "b")

	m = step(t, m, keyPress("tab"))
	if m.focus != PaneRight {
		t.Fatalf("focus = %v, want PaneRight", m.focus)
	}
	// Cursor keys scroll the table instead of moving the list.
	m = step(t, m, keyPress("down"))
	if m.Selected() != "a" {
		t.Errorf("Selected() = %q, want a", m.Selected())
	}
}

func TestModel_EmptyList(t *testing.T) {
	m := ready(t, newFakeLoader())
	if m.Init() != nil {
		t.Error("Init() with no views should return nil")
	}
	if !containsPlain(m.View(), "No views") {
		t.Errorf("view = %q", m.View())
	}
}

func TestModel_Teatest_BrowseAndQuit(t *testing.T) {
	loader := newFakeLoader()
	m := NewModel(context.Background(), loader, "1 Base", []string{"application_demands", "heat_network"})

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(120, 30))

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return strings.Contains(string(b), "households")
	}, teatest.WithDuration(2*time.Second))

	tm.Send(keyPress("down"))
	tm.Send(keyPress("enter"))
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return strings.Contains(string(b), "heat_pump")
	}, teatest.WithDuration(2*time.Second))

	tm.Send(keyPress("q"))
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final := tm.FinalModel(t).(Model)
	if final.Shown() != "heat_network" {
		t.Errorf("Shown() = %q, want heat_network", final.Shown())
	}
}

func containsPlain(s, sub string) bool {
	return strings.Contains(stripANSI(s), sub)
}

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	var out []byte
	for i := 0; i < len(s); {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 'A' || s[j] > 'Z') && (s[j] < 'a' || s[j] > 'z') {
				j++
			}
			i = min(j+1, len(s))
			continue
		}
		out = append(out, s[i])
		i++
	}
	return string(out)
}
