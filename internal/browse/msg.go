// Package browse implements a two-pane TUI for paging through the tables and
// curves of one scenario. The left pane lists view names; the right pane
// shows the selected view as a scrollable table.
package browse

import (
	"context"

	"github.com/smileynet/etm/table"
)

// Focus represents which pane has keyboard focus.
type Focus int

const (
	PaneLeft  Focus = iota // View list has focus.
	PaneRight              // Table viewport has focus.
)

// --- Consumer-side interfaces ---

// Loader fetches a named view of the current scenario.
type Loader interface {
	Table(ctx context.Context, name string) (*table.Table, error)
}

// Resetter drops cached views so the next load goes back to the engine.
// Loaders that also implement Resetter get a working refresh key.
type Resetter interface {
	ResetCaches()
}

// --- tea.Msg types ---

// TableLoadedMsg carries the result of a Loader.Table call.
type TableLoadedMsg struct {
	Name  string
	Table *table.Table
	Err   error
}

// RefreshMsg asks the model to drop cached views and reload the selection.
type RefreshMsg struct{}
