package browse

import "github.com/charmbracelet/bubbles/key"

// bindings are the browser's keys. The view list uses the navigation keys;
// when the viewer has focus they scroll the table instead.
type bindings struct {
	PrevView   key.Binding
	NextView   key.Binding
	FirstView  key.Binding
	LastView   key.Binding
	Open       key.Binding
	SwitchPane key.Binding
	Reload     key.Binding
	Quit       key.Binding
}

func (b bindings) ShortHelp() []key.Binding {
	return []key.Binding{b.PrevView, b.NextView, b.Open, b.SwitchPane, b.Reload, b.Quit}
}

func (b bindings) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{b.PrevView, b.NextView, b.FirstView, b.LastView},
		{b.Open, b.SwitchPane},
		{b.Reload, b.Quit},
	}
}

func defaultBindings() bindings {
	return bindings{
		PrevView:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev view")),
		NextView:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next view")),
		FirstView:  key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first view")),
		LastView:   key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last view")),
		Open:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		SwitchPane: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "list/table")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload from engine")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}
