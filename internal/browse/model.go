package browse

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/smileynet/etm/internal/render"
)

// CursorMarker is the prefix shown on the selected view.
const CursorMarker = "▸ "

// helpBarHeight is the number of lines reserved for the help bar at the bottom.
const helpBarHeight = 1

// borderChrome is the number of lines consumed by top + bottom borders.
const borderChrome = 2

// Model is the root Bubble Tea model for the scenario browser.
type Model struct {
	ctx    context.Context
	loader Loader
	title  string
	names  []string
	cursor int

	// rendered holds the styled text of every view loaded so far.
	// Entries are dropped on refresh.
	rendered map[string]string
	errs     map[string]error
	loading  string
	shown    string

	focus    Focus
	width    int
	height   int
	keys     bindings
	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model
	printer  *message.Printer
}

// NewModel creates a browser over names, loading views through loader.
// title is shown above the list, typically the scenario id and title.
func NewModel(ctx context.Context, loader Loader, title string, names []string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	m := Model{
		ctx:      ctx,
		loader:   loader,
		title:    title,
		names:    append([]string(nil), names...),
		rendered: make(map[string]string),
		errs:     make(map[string]error),
		focus:    PaneLeft,
		keys:     defaultBindings(),
		viewport: viewport.New(0, 0),
		help:     help.New(),
		spinner:  s,
		printer:  message.NewPrinter(language.English),
	}
	if len(m.names) > 0 {
		m.loading = m.names[0]
	}
	return m
}

// Init loads the first view.
func (m Model) Init() tea.Cmd {
	if len(m.names) == 0 {
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.load(m.names[0]))
}

// load returns a tea.Cmd that fetches name asynchronously and wraps the
// result in a TableLoadedMsg.
func (m Model) load(name string) tea.Cmd {
	ctx, loader := m.ctx, m.loader
	return func() tea.Msg {
		t, err := loader.Table(ctx, name)
		return TableLoadedMsg{Name: name, Table: t, Err: err}
	}
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		_, viewerWidth := SplitWidth(msg.Width)
		m.viewport.Width = max(viewerWidth-borderChrome, 0)
		m.viewport.Height = m.contentHeight()
		return m, nil

	case TableLoadedMsg:
		return m.applyLoaded(msg), nil

	case RefreshMsg:
		if m.loading != "" {
			return m, nil
		}
		if r, ok := m.loader.(Resetter); ok {
			r.ResetCaches()
		}
		m.rendered = make(map[string]string)
		m.errs = make(map[string]error)
		return m.open(m.Selected())

	case spinner.TickMsg:
		if m.loading == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// applyLoaded stores a fetched view and shows it when it is still selected.
func (m Model) applyLoaded(msg TableLoadedMsg) Model {
	if msg.Name == m.loading {
		m.loading = ""
	}
	if msg.Err != nil {
		m.errs[msg.Name] = msg.Err
		delete(m.rendered, msg.Name)
	} else {
		delete(m.errs, msg.Name)
		m.rendered[msg.Name] = render.StyledTable(msg.Table, m.printer)
	}
	if msg.Name == m.Selected() {
		m.show(msg.Name)
	}
	return m
}

// show puts the rendered view, or its error, into the viewport.
func (m *Model) show(name string) {
	m.shown = name
	if err, ok := m.errs[name]; ok {
		m.viewport.SetContent(failedView.Render(fmt.Sprintf("Error: %s", err)) + "\n\n" + hint.Render("Press r to reload from the engine"))
	} else {
		m.viewport.SetContent(m.rendered[name])
	}
	m.viewport.GotoTop()
}

// open shows name from cache or starts loading it. Only one load runs at a
// time; loaders need not be safe for concurrent use.
func (m Model) open(name string) (tea.Model, tea.Cmd) {
	if name == "" {
		return m, nil
	}
	if _, ok := m.rendered[name]; ok {
		m.show(name)
		return m, nil
	}
	if _, ok := m.errs[name]; ok {
		m.show(name)
		return m, nil
	}
	if m.loading != "" {
		return m, nil
	}
	m.loading = name
	return m, tea.Batch(m.spinner.Tick, m.load(name))
}

// handleKey processes key messages with global and pane-specific routing.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.SwitchPane):
		if m.focus == PaneLeft {
			m.focus = PaneRight
		} else {
			m.focus = PaneLeft
		}
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		return m, func() tea.Msg { return RefreshMsg{} }
	}

	if m.focus == PaneRight {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.PrevView):
		if len(m.names) > 0 {
			m.cursor = (m.cursor - 1 + len(m.names)) % len(m.names)
		}
	case key.Matches(msg, m.keys.NextView):
		if len(m.names) > 0 {
			m.cursor = (m.cursor + 1) % len(m.names)
		}
	case key.Matches(msg, m.keys.FirstView):
		m.cursor = 0
	case key.Matches(msg, m.keys.LastView):
		m.cursor = max(len(m.names)-1, 0)
	case key.Matches(msg, m.keys.Open):
		return m.open(m.Selected())
	}
	return m, nil
}

// Selected returns the view name under the cursor, or "" when there are none.
func (m Model) Selected() string {
	if m.cursor < 0 || m.cursor >= len(m.names) {
		return ""
	}
	return m.names[m.cursor]
}

// Shown returns the view currently in the table pane.
func (m Model) Shown() string { return m.shown }

// contentHeight returns the usable height for pane content,
// accounting for border chrome and the help bar.
func (m Model) contentHeight() int {
	return max(m.height-borderChrome-helpBarHeight, 1)
}

// View renders the two-pane layout with help bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	listWidth, viewerWidth := SplitWidth(m.width)
	contentHeight := m.contentHeight()

	list := paneFrame(m.focus == PaneLeft).Width(listWidth - borderChrome).Height(contentHeight)
	viewer := paneFrame(m.focus == PaneRight).Width(viewerWidth - borderChrome).Height(contentHeight)

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		list.Render(m.viewList()),
		viewer.Render(m.viewTable()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, panes, m.help.View(m.keys))
}

func (m Model) viewList() string {
	var b strings.Builder
	b.WriteString(scenarioHeading.Render(m.title))
	if len(m.names) == 0 {
		b.WriteString("\n\n" + hint.Render("No views"))
		return b.String()
	}
	b.WriteByte('\n')
	for i, name := range m.names {
		b.WriteByte('\n')
		if i == m.cursor {
			b.WriteString(CursorMarker)
		} else {
			b.WriteString("  ")
		}
		switch {
		case name == m.loading:
			b.WriteString(name + " " + m.spinner.View())
		case m.errs[name] != nil:
			b.WriteString(failedView.Render(name))
		case m.rendered[name] == "":
			b.WriteString(unloadedView.Render(name))
		default:
			b.WriteString(name)
		}
	}
	return b.String()
}

func (m Model) viewTable() string {
	sel := m.Selected()
	if m.loading != "" && m.loading == sel {
		return fmt.Sprintf("%s Loading %s...", m.spinner.View(), sel)
	}
	if m.shown == "" || m.shown != sel {
		return hint.Render("Press enter to open " + sel)
	}
	return m.viewport.View()
}
