package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/smileynet/etm/internal/config"
	"github.com/smileynet/etm/internal/render"
	"github.com/smileynet/etm/internal/state"
	"github.com/smileynet/etm/scenario"
	"github.com/smileynet/etm/transport"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Globals are flags shared by every command.
type Globals struct {
	Beta    bool   `help:"Use the beta engine."`
	Token   string `help:"Personal access token, overriding config and environment."`
	Format  string `help:"Output format: auto, table, csv, json or yaml." short:"f"`
	Verbose bool   `help:"Log requests and cache resets to stderr." short:"v"`
}

// CLI is the top-level command structure for etm.
type CLI struct {
	Globals

	Version     kong.VersionFlag `help:"Show version." short:"V"`
	Use         UseCmd           `cmd:"" help:"Select the scenario later commands act on."`
	Show        ShowCmd          `cmd:"" help:"Show scenario metadata."`
	Inputs      InputsCmd        `cmd:"" help:"List scenario inputs with their bounds and values."`
	Curve       CurveCmd         `cmd:"" help:"Print an hourly curve, or list curve names."`
	Table       TableCmd         `cmd:"" help:"Print an output table, or list table names."`
	Order       OrderCmd         `cmd:"" help:"Show or change a user-sortable order."`
	Title       TitleCmd         `cmd:"" help:"Rename a scenario."`
	Set         SetCmd           `cmd:"" help:"Set user values for inputs."`
	Saved       SavedCmd         `cmd:"" help:"List saved scenarios of the token's account."`
	Browse      BrowseCmd        `cmd:"" help:"Browse a scenario's tables and curves interactively."`
	Create      CreateCmd        `cmd:"" help:"Create a scenario."`
	Copy        CopyCmd          `cmd:"" help:"Copy a scenario."`
	Reset       ResetCmd         `cmd:"" help:"Reset all user values of a scenario."`
	Delete      DeleteCmd        `cmd:"" help:"Delete a scenario."`
	CCurve      CCurveCmd        `cmd:"" name:"ccurve" help:"List, show, upload or detach custom curves."`
	Query       QueryCmd         `cmd:"" help:"Evaluate gqueries against a scenario."`
	Interpolate InterpolateCmd   `cmd:"" help:"Create a scenario for an intermediate year."`
	Save        SaveCmd          `cmd:"" help:"Save a scenario to the token's account."`
	Connect     ConnectCmd       `cmd:"" help:"Select the scenario behind a saved scenario."`
	Unsave      UnsaveCmd        `cmd:"" help:"Delete a saved scenario."`
	Init        InitCmd          `cmd:"" help:"Write a config file from the default template."`
}

// sessionStore abstracts state.FileStore for testing.
type sessionStore interface {
	Save(profile string, s state.Session) error
	Load(profile string) (state.Session, bool, error)
	Remove(profile string) error
}

// app bundles what a scenario command needs.
type app struct {
	handle  *scenario.Handle
	store   sessionStore
	out     *render.Renderer
	profile string
}

// newApp wires a handle, session store and renderer from cfg.
func newApp(cfg *config.Config, doer transport.Doer, w io.Writer, store sessionStore, obs scenario.Observer) (*app, error) {
	out, err := render.New(w, cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	opts := []scenario.Option{
		scenario.WithInvalidation(cfg.Policy()),
		scenario.WithBeta(cfg.Engine.Beta),
	}
	if obs != nil {
		opts = append(opts, scenario.WithObserver(obs))
	}
	return &app{
		handle:  scenario.New(doer, opts...),
		store:   store,
		out:     out,
		profile: state.Profile(cfg.Engine.Beta),
	}, nil
}

// loadConfig loads layered config from user and project paths with env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(config.Paths()...)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply overlays command-line flags on cfg. Flags win over files and env.
func (g *Globals) apply(cfg *config.Config) {
	if g.Beta {
		cfg.Engine.Beta = true
	}
	if g.Token != "" {
		if cfg.Engine.Beta {
			cfg.Auth.BetaToken = g.Token
		} else {
			cfg.Auth.Token = g.Token
		}
	}
	if g.Format != "" {
		cfg.Output.Format = g.Format
	}
}

// open builds the real dependencies for a scenario command.
func (g *Globals) open() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	g.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := transport.New(
		transport.WithBaseURL(cfg.Engine.BaseURL),
		transport.WithBeta(cfg.Engine.Beta),
		transport.WithToken(cfg.Token()),
		transport.WithTimeout(cfg.Engine.Timeout),
		transport.WithHeader("User-Agent", "etm/"+version),
	)

	var obs scenario.Observer
	if g.Verbose {
		obs = newLogObserver(os.Stderr)
	}
	return newApp(cfg, client, os.Stdout, state.NewFileStore(state.DefaultDir()), obs)
}

// run opens the app and calls fn with an interrupt-aware context.
func (g *Globals) run(name string, fn func(context.Context, *app) error) error {
	a, err := g.open()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return fn(ctx, a)
}

// errNoSelection reports that neither an id argument nor a saved session
// names a scenario.
var errNoSelection = fmt.Errorf("no scenario selected, pass an id or run `etm use <id>`: %w", scenario.ErrMissingScenario)

// selectScenario points the handle at arg, or at the saved session when arg
// is empty.
func (a *app) selectScenario(ctx context.Context, arg string) error {
	if arg != "" {
		return a.handle.SetID(ctx, arg)
	}
	s, ok, err := a.store.Load(a.profile)
	if err != nil {
		return err
	}
	if !ok || s.ScenarioID == 0 {
		return errNoSelection
	}
	return a.handle.SetID(ctx, s.ScenarioID)
}

// remember saves the handle's scenario as the session for this profile.
func (a *app) remember(ctx context.Context) error {
	hd, err := a.handle.Header(ctx)
	if err != nil {
		return err
	}
	return a.store.Save(a.profile, state.Session{
		ScenarioID: int64(hd.ID),
		Title:      hd.Title,
		AreaCode:   hd.AreaCode,
		EndYear:    hd.EndYear,
		SelectedAt: time.Now().UTC(),
	})
}

// isSession reports whether id is the saved session's scenario.
func (a *app) isSession(id scenario.ID) bool {
	s, ok, err := a.store.Load(a.profile)
	return err == nil && ok && scenario.ID(s.ScenarioID) == id
}

// showHeader renders the scenario's metadata as a record.
func (a *app) showHeader(ctx context.Context) error {
	hd, err := a.handle.Header(ctx)
	if err != nil {
		return err
	}
	pro, err := a.handle.ProURL()
	if err != nil {
		return err
	}
	fields := []render.Field{
		{Name: "id", Value: int64(hd.ID)},
		{Name: "title", Value: hd.Title},
		{Name: "area_code", Value: hd.AreaCode},
		{Name: "start_year", Value: hd.StartYear},
		{Name: "end_year", Value: hd.EndYear},
	}
	if !hd.Template.IsZero() {
		fields = append(fields, render.Field{Name: "template", Value: int64(hd.Template)})
	}
	fields = append(fields,
		render.Field{Name: "display_group", Value: hd.DisplayGroup},
		render.Field{Name: "private", Value: hd.Private},
		render.Field{Name: "keep_compatible", Value: hd.KeepCompatible},
		render.Field{Name: "created_at", Value: hd.CreatedAt},
		render.Field{Name: "updated_at", Value: hd.UpdatedAt},
		render.Field{Name: "url", Value: hd.URL},
		render.Field{Name: "pro_url", Value: pro},
	)
	if len(hd.Metadata) > 0 {
		fields = append(fields, render.Field{Name: "metadata", Value: hd.Metadata})
	}
	return a.out.Record(fields)
}

// logObserver prints timestamped handle events, one per line.
type logObserver struct {
	w   io.Writer
	now func() time.Time
}

func newLogObserver(w io.Writer) *logObserver {
	return &logObserver{w: w, now: time.Now}
}

func (o *logObserver) printf(format string, args ...any) {
	ts := o.now().Format("15:04:05")
	_, _ = fmt.Fprintf(o.w, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
}

func (o *logObserver) OnScenarioChange(prev, next scenario.ID) {
	name := func(id scenario.ID) string {
		if id.IsZero() {
			return "none"
		}
		return id.String()
	}
	o.printf("scenario %s -> %s", name(prev), name(next))
}

func (o *logObserver) OnCacheReset(names []string) {
	if len(names) > 0 {
		o.printf("reset %s", strings.Join(names, ", "))
	}
}

func (o *logObserver) OnRequest(method, path string) {
	o.printf("%s %s", method, path)
}

const (
	exitSuccess = 0
	exitEngine  = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code. Errors reported by or
// about the engine exit 1; configuration and usage errors exit 2.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var (
		reqErr      *transport.RequestError
		notFound    *scenario.ScenarioNotFoundError
		badOrder    *scenario.InvalidOrderError
		badCurve    *scenario.UnknownCurveError
		badHeader   *scenario.MalformedHeaderError
		readOnlyErr *scenario.ProtectedFieldError
		badCCurve   *scenario.UnknownCustomCurveError
		saved       *scenario.AlreadySavedError
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &notFound), errors.As(err, &badOrder),
		errors.As(err, &badCurve), errors.As(err, &badHeader), errors.As(err, &readOnlyErr),
		errors.As(err, &badCCurve), errors.As(err, &saved), errors.Is(err, scenario.ErrCurveNotAttached):
		return exitEngine
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("etm"),
		kong.Description("Read and change Energy Transition Model scenarios."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
