package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/etm"
	"github.com/smileynet/etm/internal/browse"
	"github.com/smileynet/etm/internal/config"
	"github.com/smileynet/etm/internal/render"
	"github.com/smileynet/etm/scenario"
	"github.com/smileynet/etm/table"
)

// UseCmd selects the scenario later commands act on.
type UseCmd struct {
	ID string `arg:"" help:"Scenario ID."`
}

// Run executes the use command.
func (c *UseCmd) Run(g *Globals) error { return g.run("use", c.run) }

func (c *UseCmd) run(ctx context.Context, a *app) error {
	if err := a.handle.SetID(ctx, c.ID); err != nil {
		return err
	}
	if err := a.remember(ctx); err != nil {
		return err
	}
	return a.showHeader(ctx)
}

// ShowCmd prints scenario metadata.
type ShowCmd struct {
	ID string `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
}

// Run executes the show command.
func (c *ShowCmd) Run(g *Globals) error { return g.run("show", c.run) }

func (c *ShowCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	return a.showHeader(ctx)
}

// InputsCmd prints the scenario's inputs.
type InputsCmd struct {
	ID   string `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
	User bool   `help:"Only inputs with a user value."`
}

// Run executes the inputs command.
func (c *InputsCmd) Run(g *Globals) error { return g.run("inputs", c.run) }

func (c *InputsCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	t, err := a.handle.InputValues(ctx)
	if err != nil {
		return err
	}
	if c.User {
		all := t
		t = all.Filter(func(i int) bool {
			v, _ := all.Value(i, "user")
			return v != nil
		})
	}
	return a.out.Table(t)
}

// CurveCmd prints one hourly curve.
type CurveCmd struct {
	Carrier    string `arg:"" optional:"" help:"Curve name or carrier alias; omit to list curves."`
	ID         string `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
	Timestamps bool   `help:"Add an hourly time column anchored at the scenario's start year." short:"t"`
}

// Run executes the curve command.
func (c *CurveCmd) Run(g *Globals) error { return g.run("curve", c.run) }

func (c *CurveCmd) run(ctx context.Context, a *app) error {
	if c.Carrier == "" {
		return a.out.List(scenario.Curves())
	}
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	t, err := a.handle.Curve(ctx, c.Carrier)
	if err != nil {
		return err
	}
	if c.Timestamps {
		if t, err = withTimestamps(ctx, a.handle, t); err != nil {
			return err
		}
	}
	return a.out.Table(t)
}

// withTimestamps returns a copy of curve with a leading time column.
func withTimestamps(ctx context.Context, h *scenario.Handle, curve *table.Table) (*table.Table, error) {
	stamps, err := h.CurveTimestamps(ctx, curve.Len())
	if err != nil {
		return nil, err
	}
	out := curve.Clone()
	if err := out.AddColumn(0, "time", nil); err != nil {
		return nil, err
	}
	for i, ts := range stamps {
		if err := out.Set(i, "time", ts.Format(time.RFC3339)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TableCmd prints one output table.
type TableCmd struct {
	View string `arg:"" optional:"" help:"Table name; omit to list tables."`
	ID   string `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
}

// Run executes the table command.
func (c *TableCmd) Run(g *Globals) error { return g.run("table", c.run) }

func (c *TableCmd) run(ctx context.Context, a *app) error {
	if c.View == "" {
		return a.out.List(scenario.Tables())
	}
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	t, err := a.handle.Table(ctx, c.View)
	if err != nil {
		return err
	}
	return a.out.Table(t)
}

// orderForecastStorage selects the forecast storage order in OrderCmd.
const orderForecastStorage = "forecast_storage"

// OrderCmd prints or replaces a user-sortable order.
type OrderCmd struct {
	Which string   `arg:"" optional:"" enum:"heat_network,forecast_storage" default:"heat_network" help:"Which order: heat_network or forecast_storage."`
	ID    string   `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
	Set   []string `help:"New order as a comma-separated list of existing items." sep:","`
}

// Run executes the order command.
func (c *OrderCmd) Run(g *Globals) error { return g.run("order", c.run) }

func (c *OrderCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	get, set := a.handle.HeatNetworkOrder, a.handle.SetHeatNetworkOrder
	if c.Which == orderForecastStorage {
		get, set = a.handle.ForecastStorageOrder, a.handle.SetForecastStorageOrder
	}
	if len(c.Set) > 0 {
		if err := set(ctx, c.Set); err != nil {
			return err
		}
		a.out.Message("Updated %s order", c.Which)
	}
	order, err := get(ctx)
	if err != nil {
		return err
	}
	return a.out.List(order)
}

// TitleCmd renames a scenario.
type TitleCmd struct {
	Title string `arg:"" help:"New title."`
	ID    string `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
}

// Run executes the title command.
func (c *TitleCmd) Run(g *Globals) error { return g.run("title", c.run) }

func (c *TitleCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	if err := a.handle.SetTitle(ctx, c.Title); err != nil {
		return err
	}
	id, _ := a.handle.ID()
	if a.isSession(id) {
		if err := a.remember(ctx); err != nil {
			return err
		}
	}
	a.out.Message("Renamed scenario %s to %q", id, c.Title)
	return nil
}

// SetCmd sets user values. Arguments of the form key=value are
// assignments; one argument without "=" names the scenario.
type SetCmd struct {
	Args []string `arg:"" placeholder:"KEY=VALUE" help:"Assignments, optionally followed by a scenario ID. Use key=null to clear a value."`
}

// Run executes the set command.
func (c *SetCmd) Run(g *Globals) error { return g.run("set", c.run) }

func (c *SetCmd) run(ctx context.Context, a *app) error {
	values, id, err := parseAssignments(c.Args)
	if err != nil {
		return err
	}
	if err := a.selectScenario(ctx, id); err != nil {
		return err
	}
	if err := a.handle.SetUserValues(ctx, values); err != nil {
		return err
	}
	a.out.Message("Set %d input(s)", len(values))
	return nil
}

// parseAssignments splits args into key=value pairs and an optional
// scenario id. Values parse as numbers or booleans where possible; "null"
// clears the user value.
func parseAssignments(args []string) (map[string]any, string, error) {
	values := make(map[string]any)
	id := ""
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			if id != "" {
				return nil, "", fmt.Errorf("set: more than one scenario id (%q, %q)", id, arg)
			}
			id = arg
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, "", fmt.Errorf("set: missing input key in %q", arg)
		}
		values[k] = parseValue(strings.TrimSpace(v))
	}
	if len(values) == 0 {
		return nil, "", errors.New("set: no key=value assignments")
	}
	return values, id, nil
}

func parseValue(s string) any {
	if s == "null" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// SavedCmd lists saved scenarios.
type SavedCmd struct {
	Page  int  `help:"Page number, starting at 1." default:"1"`
	Limit int  `help:"Scenarios per page." default:"25"`
	All   bool `help:"Fetch every page."`
}

// Run executes the saved command.
func (c *SavedCmd) Run(g *Globals) error { return g.run("saved", c.run) }

func (c *SavedCmd) run(ctx context.Context, a *app) error {
	var (
		list []scenario.SavedScenario
		meta scenario.PageMeta
	)
	if c.All {
		all, err := a.handle.AllSavedScenarios(ctx)
		if err != nil {
			return err
		}
		list = all
	} else {
		page, err := a.handle.SavedScenarios(ctx, c.Page, c.Limit)
		if err != nil {
			return err
		}
		list, meta = page.Data, page.Meta
	}
	if err := a.out.Table(savedTable(list)); err != nil {
		return err
	}
	if meta.TotalPages > meta.CurrentPage {
		a.out.Message("Page %d of %d, use --page or --all for more", meta.CurrentPage, meta.TotalPages)
	}
	return nil
}

// savedTable lays saved scenarios out one per row, keyed by saved id.
// Ids and years are stored as text so they print ungrouped.
func savedTable(list []scenario.SavedScenario) *table.Table {
	t := table.New([]string{"id"}, []string{"scenario_id", "title", "area_code", "end_year", "private", "updated_at"})
	for _, s := range list {
		_ = t.Append(
			[]string{strconv.FormatInt(s.ID, 10)},
			[]any{s.Scenario.String(), s.Title, s.AreaCode, strconv.Itoa(s.EndYear), s.Private, s.UpdatedAt},
		)
	}
	return t
}

// BrowseCmd opens the interactive scenario browser.
type BrowseCmd struct {
	ID string `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the browser.
func (c *BrowseCmd) Run(g *Globals) error {
	if !render.IsTTY(os.Stdout) {
		return fmt.Errorf("browse: requires a terminal (TTY)")
	}
	return g.run("browse", func(ctx context.Context, a *app) error {
		m, err := c.model(ctx, a)
		if err != nil {
			return err
		}
		return c.run(true, tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)))
	})
}

// model selects the scenario and builds the browser over every table and
// curve.
func (c *BrowseCmd) model(ctx context.Context, a *app) (browse.Model, error) {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return browse.Model{}, err
	}
	hd, err := a.handle.Header(ctx)
	if err != nil {
		return browse.Model{}, err
	}
	names := append(scenario.Tables(), scenario.Curves()...)
	return browse.NewModel(ctx, a.handle, fmt.Sprintf("%s %s", hd.ID, hd.Title), names), nil
}

// run executes the tea program, enabling testable wiring.
func (c *BrowseCmd) run(isTTY bool, prog teaRunner) error {
	if !isTTY {
		return fmt.Errorf("browse: requires a terminal (TTY)")
	}
	_, err := prog.Run()
	return err
}

// CreateCmd creates a scenario.
type CreateCmd struct {
	Area    string `arg:"" help:"Area code, such as nl2019."`
	EndYear int    `arg:"" help:"End year."`
	NoUse   bool   `help:"Do not select the new scenario."`
}

// Run executes the create command.
func (c *CreateCmd) Run(g *Globals) error { return g.run("create", c.run) }

func (c *CreateCmd) run(ctx context.Context, a *app) error {
	if _, err := a.handle.Create(ctx, c.Area, c.EndYear); err != nil {
		return err
	}
	if !c.NoUse {
		if err := a.remember(ctx); err != nil {
			return err
		}
	}
	return a.showHeader(ctx)
}

// CopyCmd copies a scenario.
type CopyCmd struct {
	ID    string `arg:"" optional:"" help:"Scenario ID to copy; defaults to the selected scenario."`
	NoUse bool   `help:"Do not select the copy."`
}

// Run executes the copy command.
func (c *CopyCmd) Run(g *Globals) error { return g.run("copy", c.run) }

func (c *CopyCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	if _, err := a.handle.Copy(ctx, nil); err != nil {
		return err
	}
	if !c.NoUse {
		if err := a.remember(ctx); err != nil {
			return err
		}
	}
	return a.showHeader(ctx)
}

// ResetCmd removes every user value from a scenario.
type ResetCmd struct {
	ID  string `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
	Yes bool   `help:"Confirm the reset." short:"y"`
}

// Run executes the reset command.
func (c *ResetCmd) Run(g *Globals) error { return g.run("reset", c.run) }

func (c *ResetCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	id, _ := a.handle.ID()
	if !c.Yes {
		return fmt.Errorf("reset: refusing to reset scenario %s without --yes", id)
	}
	if err := a.handle.Reset(ctx); err != nil {
		return err
	}
	a.out.Message("Reset scenario %s", id)
	return nil
}

// DeleteCmd deletes a scenario.
type DeleteCmd struct {
	ID  string `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
	Yes bool   `help:"Confirm the deletion." short:"y"`
}

// Run executes the delete command.
func (c *DeleteCmd) Run(g *Globals) error { return g.run("delete", c.run) }

func (c *DeleteCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	id, _ := a.handle.ID()
	if !c.Yes {
		return fmt.Errorf("delete: refusing to delete scenario %s without --yes", id)
	}
	wasSession := a.isSession(id)
	if err := a.handle.Delete(ctx); err != nil {
		return err
	}
	if wasSession {
		if err := a.store.Remove(a.profile); err != nil {
			return err
		}
	}
	a.out.Message("Deleted scenario %s", id)
	return nil
}

// InitCmd writes a config file from the default template.
type InitCmd struct {
	User  bool `help:"Write the user config instead of the project config."`
	Force bool `help:"Overwrite an existing file."`
}

// Run executes the init command. A config.yaml under the user config
// directory's templates/ folder replaces the built-in template.
func (c *InitCmd) Run() error {
	paths := config.Paths()
	target := paths[len(paths)-1]
	if c.User {
		target = paths[0]
	}
	src := etm.OverlayFS(filepath.Join(filepath.Dir(paths[0]), "templates"), etm.Templates)
	return c.run(os.Stdout, target, src)
}

// run writes the template from src to target.
func (c *InitCmd) run(w io.Writer, target string, src fs.FS) error {
	data, err := fs.ReadFile(src, etm.ConfigTemplate)
	if err != nil {
		return fmt.Errorf("init: reading template: %w", err)
	}
	if !c.Force {
		if _, err := os.Stat(target); err == nil {
			return fmt.Errorf("init: %s already exists (use --force to overwrite)", target)
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("init: creating directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("init: writing %s: %w", target, err)
	}
	_, _ = fmt.Fprintf(w, "Wrote %s\n", target)
	return nil
}

// CCurveCmd groups the custom curve commands.
type CCurveCmd struct {
	List   CCurveListCmd   `cmd:"" help:"List attached custom curves."`
	Show   CCurveShowCmd   `cmd:"" help:"Print an attached custom curve."`
	Upload CCurveUploadCmd `cmd:"" help:"Attach a custom curve from a file with one value per line."`
	Delete CCurveDeleteCmd `cmd:"" help:"Detach custom curves."`
}

// CCurveListCmd prints the attached custom curves.
type CCurveListCmd struct {
	ID string `help:"Scenario ID; defaults to the selected scenario."`
}

// Run executes the ccurve list command.
func (c *CCurveListCmd) Run(g *Globals) error { return g.run("ccurve list", c.run) }

func (c *CCurveListCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	t, err := a.handle.CustomCurveSettings(ctx)
	if err != nil {
		return err
	}
	return a.out.Table(t)
}

// CCurveShowCmd prints one attached custom curve.
type CCurveShowCmd struct {
	Key string `arg:"" help:"Custom curve key."`
	ID  string `help:"Scenario ID; defaults to the selected scenario."`
}

// Run executes the ccurve show command.
func (c *CCurveShowCmd) Run(g *Globals) error { return g.run("ccurve show", c.run) }

func (c *CCurveShowCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	t, err := a.handle.CustomCurve(ctx, c.Key)
	if err != nil {
		return err
	}
	return a.out.Table(t)
}

// CCurveUploadCmd attaches a custom curve read from a file.
type CCurveUploadCmd struct {
	Key  string `arg:"" help:"Custom curve key."`
	File string `arg:"" type:"existingfile" help:"File with one value per hour of the year."`
	ID   string `help:"Scenario ID; defaults to the selected scenario."`
}

// Run executes the ccurve upload command.
func (c *CCurveUploadCmd) Run(g *Globals) error { return g.run("ccurve upload", c.run) }

func (c *CCurveUploadCmd) run(ctx context.Context, a *app) error {
	values, err := readSeriesFile(c.File, c.Key)
	if err != nil {
		return err
	}
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	if err := a.handle.UploadCustomCurve(ctx, c.Key, values, filepath.Base(c.File)); err != nil {
		return err
	}
	a.out.Message("Uploaded %s (%d values)", c.Key, len(values))
	return nil
}

// readSeriesFile reads one value per line from path.
func readSeriesFile(path, name string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := table.ReadSeries(f, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t.Floats(name)
}

// CCurveDeleteCmd detaches custom curves.
type CCurveDeleteCmd struct {
	Keys []string `arg:"" optional:"" help:"Custom curve keys; omit to detach every attached curve."`
	ID   string   `help:"Scenario ID; defaults to the selected scenario."`
	Yes  bool     `help:"Confirm the deletion." short:"y"`
}

// Run executes the ccurve delete command.
func (c *CCurveDeleteCmd) Run(g *Globals) error { return g.run("ccurve delete", c.run) }

func (c *CCurveDeleteCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	id, _ := a.handle.ID()
	if !c.Yes {
		return fmt.Errorf("ccurve delete: refusing to detach curves from scenario %s without --yes", id)
	}
	if err := a.handle.DeleteCustomCurves(ctx, c.Keys...); err != nil {
		return err
	}
	a.out.Message("Detached custom curves from scenario %s", id)
	return nil
}

// QueryCmd evaluates gqueries against a scenario.
type QueryCmd struct {
	Queries []string `arg:"" help:"Gquery keys."`
	ID      string   `help:"Scenario ID; defaults to the selected scenario."`
	Curves  bool     `help:"Print the hourly series of curve queries instead of present and future values."`
}

// Run executes the query command.
func (c *QueryCmd) Run(g *Globals) error { return g.run("query", c.run) }

func (c *QueryCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	a.handle.SetGQueries(c.Queries)
	read := a.handle.GQueryResults
	if c.Curves {
		read = a.handle.GQueryCurves
	}
	t, err := read(ctx)
	if err != nil {
		return err
	}
	return a.out.Table(t)
}

// InterpolateCmd creates a scenario for an intermediate year.
type InterpolateCmd struct {
	Year  int    `arg:"" help:"End year of the new scenario, between the source's start and end year."`
	ID    string `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
	NoUse bool   `help:"Do not select the new scenario."`
}

// Run executes the interpolate command.
func (c *InterpolateCmd) Run(g *Globals) error { return g.run("interpolate", c.run) }

func (c *InterpolateCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	id, err := a.handle.Interpolate(ctx, c.Year, !c.NoUse)
	if err != nil {
		return err
	}
	if c.NoUse {
		a.out.Message("Created scenario %s for %d", id, c.Year)
		return nil
	}
	if err := a.remember(ctx); err != nil {
		return err
	}
	return a.showHeader(ctx)
}

// SaveCmd stores a scenario as a saved scenario of the token's account.
type SaveCmd struct {
	ID          string `arg:"" optional:"" help:"Scenario ID; defaults to the selected scenario."`
	Title       string `help:"Title of the new saved scenario."`
	Description string `help:"Description of the new saved scenario."`
	Visibility  string `enum:"account,private,public" default:"account" help:"Visibility: account default, private or public."`
	To          int64  `help:"Add the scenario as the latest version of this saved scenario instead."`
}

// Run executes the save command.
func (c *SaveCmd) Run(g *Globals) error { return g.run("save", c.run) }

func (c *SaveCmd) run(ctx context.Context, a *app) error {
	if err := a.selectScenario(ctx, c.ID); err != nil {
		return err
	}
	id, _ := a.handle.ID()
	if c.To != 0 {
		if err := a.handle.SaveTo(ctx, c.To); err != nil {
			return err
		}
		a.out.Message("Saved scenario %s to saved scenario %d", id, c.To)
		return nil
	}
	opts := scenario.SaveOptions{Title: c.Title, Description: c.Description}
	if c.Visibility != "account" {
		private := c.Visibility == "private"
		opts.Private = &private
	}
	saved, err := a.handle.SaveScenario(ctx, opts)
	if err != nil {
		return err
	}
	return a.out.Table(savedTable([]scenario.SavedScenario{saved}))
}

// ConnectCmd selects the scenario behind a saved scenario.
type ConnectCmd struct {
	Saved  int64 `arg:"" help:"Saved scenario ID."`
	NoCopy bool  `help:"Select the saved scenario itself instead of a copy."`
}

// Run executes the connect command.
func (c *ConnectCmd) Run(g *Globals) error { return g.run("connect", c.run) }

func (c *ConnectCmd) run(ctx context.Context, a *app) error {
	if _, err := a.handle.ConnectSaved(ctx, c.Saved, scenario.ConnectOptions{Copy: !c.NoCopy}); err != nil {
		return err
	}
	if err := a.remember(ctx); err != nil {
		return err
	}
	return a.showHeader(ctx)
}

// UnsaveCmd deletes a saved scenario.
type UnsaveCmd struct {
	Saved int64 `arg:"" help:"Saved scenario ID."`
	Yes   bool  `help:"Confirm the deletion." short:"y"`
}

// Run executes the unsave command.
func (c *UnsaveCmd) Run(g *Globals) error { return g.run("unsave", c.run) }

func (c *UnsaveCmd) run(ctx context.Context, a *app) error {
	if !c.Yes {
		return fmt.Errorf("unsave: refusing to delete saved scenario %d without --yes", c.Saved)
	}
	if err := a.handle.DeleteSaved(ctx, c.Saved); err != nil {
		return err
	}
	a.out.Message("Deleted saved scenario %d", c.Saved)
	return nil
}
