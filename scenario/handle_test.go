package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/smileynet/etm/internal/cache"
	"github.com/smileynet/etm/table"
	"github.com/smileynet/etm/transport"
)

// fakeResponse is a canned reply for one route.
type fakeResponse struct {
	status int
	body   string
}

// fakeDoer routes requests by "METHOD path" and records every call. Query
// evaluations route as "PUT path#gqueries" so they never collide with writes.
type fakeDoer struct {
	routes map[string][]fakeResponse
	calls  []transport.Request
}

func newFakeDoer() *fakeDoer {
	return &fakeDoer{routes: make(map[string][]fakeResponse)}
}

// on queues replies for a route. The last reply repeats once the queue drains.
func (f *fakeDoer) on(method, path string, replies ...fakeResponse) *fakeDoer {
	key := method + " " + path
	f.routes[key] = append(f.routes[key], replies...)
	return f
}

func (f *fakeDoer) ok(method, path, body string) *fakeDoer {
	return f.on(method, path, fakeResponse{status: http.StatusOK, body: body})
}

func (f *fakeDoer) Do(_ context.Context, req transport.Request) (transport.Response, error) {
	f.calls = append(f.calls, req)
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	key := method + " " + req.Path
	if _, ok := req.Body.(gqueryRequest); ok {
		key += "#gqueries"
	}
	queue := f.routes[key]
	if len(queue) == 0 {
		return transport.Response{}, &transport.RequestError{Method: method, URL: req.Path, StatusCode: http.StatusNotFound, Body: "no route"}
	}
	r := queue[0]
	if len(queue) > 1 {
		f.routes[key] = queue[1:]
	}
	if r.status < 200 || r.status > 299 {
		return transport.Response{}, &transport.RequestError{Method: method, URL: req.Path, StatusCode: r.status, Body: r.body}
	}
	return transport.Response{StatusCode: r.status, Body: []byte(r.body)}, nil
}

func (f *fakeDoer) count(method, path string) int {
	n := 0
	for _, c := range f.calls {
		m := c.Method
		if m == "" {
			m = http.MethodGet
		}
		if m == method && c.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeDoer) writes() []transport.Request {
	var out []transport.Request
	for _, c := range f.calls {
		if c.Method != "" && c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

// recordingObserver captures handle events.
type recordingObserver struct {
	changes  []string
	resets   [][]string
	requests []string
}

func (o *recordingObserver) OnScenarioChange(prev, next ID) {
	o.changes = append(o.changes, fmt.Sprintf("%s->%s", prev, next))
}
func (o *recordingObserver) OnCacheReset(names []string) { o.resets = append(o.resets, names) }
func (o *recordingObserver) OnRequest(method, path string) {
	o.requests = append(o.requests, method+" "+path)
}

const headerJSON = `{
	"id": 1,
	"title": "Base",
	"area_code": "nl2019",
	"start_year": 2019,
	"end_year": 2050,
	"template": null,
	"display_group": "national",
	"keep_compatible": false,
	"private": true,
	"created_at": "2024-03-01T12:00:00.000+01:00",
	"updated_at": "2024-03-02T08:00:00Z",
	"url": "https://engine.energytransitionmodel.com/api/v3/scenarios/1",
	"metadata": {"team": "grid"}
}`

const meritOrderCSV = "Time,a,b\n2020-01-01,1,2\n2020-01-01,3,4\n"

const customCurvesJSON = `[
	{"key": "interconnector_1_price", "type": "price", "display_group": "interconnectors", "attached": true,
	 "overrides": ["interconnector_1_marginal_costs"], "name": "ic1.csv", "date": "2024-03-01", "stats": {"length": 8760}},
	{"key": "solar_pv", "type": "profile", "display_group": "renewables", "attached": false, "overrides": []},
	{"key": "weather/wind", "type": "profile", "display_group": "internal", "attached": true, "overrides": []}
]`

const gqueriesJSON = `{"scenario": {"id": 1}, "gqueries": {
	"dashboard_co2_emissions": {"present": 150.5, "future": 80, "unit": "MT"},
	"electricity_demand_curve": {"present": [1, 2], "future": [3, 4, 5], "unit": "curve"},
	"dashboard_total_costs": {"present": 20, "future": null, "unit": "euro"}
}}`

// newScenarioDoer serves scenario 1 and 2 with one reply per resource.
func newScenarioDoer() *fakeDoer {
	f := newFakeDoer()
	for _, id := range []string{"1", "2"} {
		base := "scenarios/" + id
		f.ok(http.MethodGet, base, strings.Replace(headerJSON, `"id": 1`, `"id": `+id, 1))
		f.ok(http.MethodGet, base+"/inputs", `{
			"b_share": {"min": 0, "max": 100, "default": 40, "unit": "%", "share_group": "heat"},
			"a_demand": {"min": 0, "max": 10, "default": 5, "user": 7.5, "unit": "PJ", "disabled": true}
		}`)
		f.ok(http.MethodGet, base+"/inputs/settings_enable_merit_order", `{"min": 0, "max": 1, "default": 1}`)
		f.ok(http.MethodGet, base+"/application_demands", "key,demand\nhouseholds,10\nbuildings,5\n")
		f.ok(http.MethodGet, base+"/production_parameters", "key,capacity\nwind,3\n")
		f.ok(http.MethodGet, base+"/energy_flow", "key,value\nx,1\n")
		f.ok(http.MethodGet, base+"/sankey", "Group,Carrier,Category,Type,Value\nfinal,electricity,households,demand,12\n")
		f.ok(http.MethodGet, base+"/storage_parameters", "Group,Carrier,Key,Parameter,Value\nflex,electricity,battery,volume,4\n")
		f.ok(http.MethodGet, base+"/merit", `{"participants": [
			{"key": "wind", "type": "volatile", "curve": "w_curve", "marginal_costs": 0},
			{"key": "gas_plant", "type": "dispatchable", "curve": null, "marginal_costs": "null"}
		]}`)
		f.ok(http.MethodGet, base+"/heat_network_order", `{"order": ["a", "b", "c"]}`)
		f.ok(http.MethodGet, base+"/forecast_storage_order", `{"order": ["battery", "p2h"]}`)
		f.ok(http.MethodGet, base+"/curves/merit_order", meritOrderCSV)
		f.ok(http.MethodGet, base+"/curves/electricity_price", "Time,price\n2020-01-01,12.3456\n2020-01-01,7.001\n")
		for _, c := range []string{"heat_network", "household_heat", "network_gas", "hydrogen"} {
			f.ok(http.MethodGet, base+"/curves/"+c, "Time,x\n2020-01-01,1\n")
		}
		f.ok(http.MethodGet, base+"/custom_curves", customCurvesJSON)
		f.ok(http.MethodGet, base+"/custom_curves/interconnector_1_price", "12.5\n13\n14.25\n")
		f.ok(http.MethodPut, base+"#gqueries", gqueriesJSON)
	}
	return f
}

// newTestHandle returns a handle already switched to scenario 1, with the
// validation call cleared from the record.
func newTestHandle(t *testing.T, opts ...Option) (*Handle, *fakeDoer) {
	t.Helper()
	f := newScenarioDoer()
	h := New(f, opts...)
	if err := h.SetID(context.Background(), 1); err != nil {
		t.Fatalf("SetID(1) error = %v", err)
	}
	f.calls = nil
	return h, f
}

// readers exercises every cached accessor once.
var readers = map[string]func(context.Context, *Handle) (any, error){
	"header":                func(ctx context.Context, h *Handle) (any, error) { return h.Header(ctx) },
	"inputs":                func(ctx context.Context, h *Handle) (any, error) { return h.InputValues(ctx) },
	"merit_order_enabled":   func(ctx context.Context, h *Handle) (any, error) { return h.MeritOrderEnabled(ctx) },
	"application_demands":   func(ctx context.Context, h *Handle) (any, error) { return h.ApplicationDemands(ctx) },
	"production_parameters": func(ctx context.Context, h *Handle) (any, error) { return h.ProductionParameters(ctx) },
	"energy_flow":           func(ctx context.Context, h *Handle) (any, error) { return h.EnergyFlows(ctx) },
	"sankey":                func(ctx context.Context, h *Handle) (any, error) { return h.Sankey(ctx) },
	"storage_parameters":    func(ctx context.Context, h *Handle) (any, error) { return h.StorageParameters(ctx) },
	"merit_participants":    func(ctx context.Context, h *Handle) (any, error) { return h.MeritParticipants(ctx) },
	"heat_network_order":    func(ctx context.Context, h *Handle) (any, error) { return h.HeatNetworkOrder(ctx) },
	"forecast_storage_order": func(ctx context.Context, h *Handle) (any, error) { return h.ForecastStorageOrder(ctx) },
	"curves/merit_order":       func(ctx context.Context, h *Handle) (any, error) { return h.HourlyElectricityCurves(ctx) },
	"curves/electricity_price": func(ctx context.Context, h *Handle) (any, error) { return h.HourlyElectricityPriceCurve(ctx) },
	"curves/heat_network":      func(ctx context.Context, h *Handle) (any, error) { return h.HourlyHeatNetworkCurves(ctx) },
	"curves/household_heat":    func(ctx context.Context, h *Handle) (any, error) { return h.HourlyHouseholdHeatCurves(ctx) },
	"curves/network_gas":       func(ctx context.Context, h *Handle) (any, error) { return h.HourlyMethaneCurves(ctx) },
	"curves/hydrogen":          func(ctx context.Context, h *Handle) (any, error) { return h.HourlyHydrogenCurves(ctx) },
	"custom_curves":            func(ctx context.Context, h *Handle) (any, error) { return h.CustomCurveOverview(ctx) },
	"gquery_results": func(ctx context.Context, h *Handle) (any, error) {
		if len(h.GQueries()) == 0 {
			h.SetGQueries([]string{"dashboard_co2_emissions", "electricity_demand_curve"})
		}
		return h.GQueryResults(ctx)
	},
}

func sameValue(a, b any) bool {
	ta, okA := a.(*table.Table)
	tb, okB := b.(*table.Table)
	if okA && okB {
		return ta.Equal(tb)
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) == string(jb)
}

func TestReaders_CoverEverySlot(t *testing.T) {
	h := New(newFakeDoer())
	for _, name := range h.CacheNames() {
		if _, ok := readers[name]; !ok {
			t.Errorf("slot %q has no reader in the test table", name)
		}
	}
}

func TestCacheCoherence(t *testing.T) {
	for name, read := range readers {
		t.Run(name, func(t *testing.T) {
			// Given a handle on scenario 1 with an empty slot
			h, f := newTestHandle(t)
			ctx := context.Background()
			if name != "header" && h.Populated(name) {
				t.Fatalf("%q populated before first read", name)
			}

			// When the view is read twice
			first, err := read(ctx, h)
			if err != nil {
				t.Fatalf("first read error = %v", err)
			}
			calls := len(f.calls)
			second, err := read(ctx, h)
			if err != nil {
				t.Fatalf("second read error = %v", err)
			}

			// Then both reads agree and the second made no request
			if !sameValue(first, second) {
				t.Errorf("second read %v differs from first %v", second, first)
			}
			if len(f.calls) != calls {
				t.Errorf("second read issued %d requests, want 0", len(f.calls)-calls)
			}
			if !h.Populated(name) {
				t.Errorf("%q not populated after read", name)
			}
		})
	}
}

func TestMissingIDGuard(t *testing.T) {
	ctx := context.Background()
	ops := map[string]func(*Handle) error{
		"set title":          func(h *Handle) error { return h.SetTitle(ctx, "x") },
		"set user values":    func(h *Handle) error { return h.SetUserValues(ctx, map[string]any{"a": 1}) },
		"set order":          func(h *Handle) error { return h.SetHeatNetworkOrder(ctx, []string{"a"}) },
		"created at":         func(h *Handle) error { _, err := h.CreatedAt(ctx); return err },
		"user values":        func(h *Handle) error { _, err := h.UserValues(ctx); return err },
		"curve by name":      func(h *Handle) error { _, err := h.Curve(ctx, "hydrogen"); return err },
		"curve timestamps":   func(h *Handle) error { _, err := h.CurveTimestamps(ctx, 3); return err },
		"pro url":            func(h *Handle) error { _, err := h.ProURL(); return err },
		"reset":              func(h *Handle) error { return h.Reset(ctx) },
		"delete":             func(h *Handle) error { return h.Delete(ctx) },
		"require id":         func(h *Handle) error { _, err := h.RequireID(); return err },
		"add metadata":       func(h *Handle) error { return h.AddMetadata(ctx, "k", "v") },
		"refetch inputs":     func(h *Handle) error { return h.Refetch(ctx, "inputs") },
		"table by name":      func(h *Handle) error { _, err := h.Table(ctx, "sankey"); return err },
		"forecast order set": func(h *Handle) error { return h.SetForecastStorageOrder(ctx, []string{"a"}) },
		"custom curve":       func(h *Handle) error { _, err := h.CustomCurve(ctx, "x"); return err },
		"upload curve":       func(h *Handle) error { return h.UploadCustomCurve(ctx, "x", make([]float64, HoursPerYear), "") },
		"delete curves":      func(h *Handle) error { return h.DeleteCustomCurves(ctx) },
		"gquery deltas":      func(h *Handle) error { _, err := h.GQueryDeltas(ctx); return err },
		"save scenario":      func(h *Handle) error { _, err := h.SaveScenario(ctx, SaveOptions{}); return err },
		"save to":            func(h *Handle) error { return h.SaveTo(ctx, 42) },
		"interpolate":        func(h *Handle) error { _, err := h.Interpolate(ctx, 2030, false); return err },
	}
	for name, read := range readers {
		read := read
		ops["read "+name] = func(h *Handle) error { _, err := read(ctx, h); return err }
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			f := newScenarioDoer()
			h := New(f)

			err := op(h)

			if !errors.Is(err, ErrMissingScenario) {
				t.Fatalf("error = %v, want ErrMissingScenario", err)
			}
			var me *MissingScenarioError
			if !errors.As(err, &me) {
				t.Errorf("error %T is not *MissingScenarioError", err)
			}
			if len(f.calls) != 0 {
				t.Errorf("issued %d requests, want 0", len(f.calls))
			}
		})
	}
}

func TestSetID_NotFound(t *testing.T) {
	// Given an engine that does not know scenario 123
	f := newFakeDoer().on(http.MethodGet, "scenarios/123", fakeResponse{status: http.StatusNotFound, body: `{"errors":["not found"]}`})
	h := New(f)

	// When the id is set
	err := h.SetID(context.Background(), 123)

	// Then it is rejected and the id stays unset
	var nf *ScenarioNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *ScenarioNotFoundError", err)
	}
	if nf.ID != 123 {
		t.Errorf("ScenarioNotFoundError.ID = %s, want 123", nf.ID)
	}
	if !transport.IsStatus(err, http.StatusNotFound) {
		t.Error("ScenarioNotFoundError should wrap the 404 RequestError")
	}
	if id, ok := h.ID(); ok {
		t.Errorf("ID() = %s, want unset", id)
	}
}

func TestSetID_RejectedKeepsPrevious(t *testing.T) {
	h, f := newTestHandle(t)
	if _, err := h.InputValues(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := h.SetID(context.Background(), 99)

	var nf *ScenarioNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *ScenarioNotFoundError", err)
	}
	if id, _ := h.ID(); id != 1 {
		t.Errorf("ID() = %s, want previous id 1", id)
	}
	if !h.Populated("inputs") {
		t.Error("rejected id should not reset caches")
	}
	if f.count(http.MethodGet, "scenarios/99") != 1 {
		t.Error("expected one validation request")
	}
}

func TestSetID_OtherFailurePropagates(t *testing.T) {
	f := newFakeDoer().on(http.MethodGet, "scenarios/5", fakeResponse{status: http.StatusInternalServerError, body: "boom"})
	h := New(f)

	err := h.SetID(context.Background(), 5)

	var nf *ScenarioNotFoundError
	if errors.As(err, &nf) {
		t.Fatal("500 should not be reported as not found")
	}
	if !transport.IsStatus(err, http.StatusInternalServerError) {
		t.Errorf("error = %v, want wrapped 500 RequestError", err)
	}
	if _, ok := h.ID(); ok {
		t.Error("id should remain unset")
	}
}

type savedRef struct{ id ID }

func (s savedRef) ScenarioID() ID { return s.id }

func TestSetID_AcceptedForms(t *testing.T) {
	tests := []struct {
		name      string
		candidate any
	}{
		{name: "int", candidate: 2},
		{name: "int64", candidate: int64(2)},
		{name: "numeric string", candidate: " 2 "},
		{name: "json number", candidate: json.Number("2")},
		{name: "integral float", candidate: float64(2)},
		{name: "mapping", candidate: map[string]any{"id": 2}},
		{name: "id", candidate: ID(2)},
		{name: "identifier", candidate: savedRef{id: 2}},
		{name: "saved scenario", candidate: SavedScenario{ID: 77, Scenario: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(newScenarioDoer())
			if err := h.SetID(context.Background(), tt.candidate); err != nil {
				t.Fatalf("SetID(%v) error = %v", tt.candidate, err)
			}
			if id, _ := h.ID(); id != 2 {
				t.Errorf("ID() = %s, want 2", id)
			}
		})
	}
}

func TestParseID_Invalid(t *testing.T) {
	for _, c := range []any{"abc", 1.5, -3, -2.0, 1e19, 9.3e18, uint64(1) << 63, map[string]any{"name": "x"}, struct{}{}} {
		if _, err := ParseID(c); err == nil {
			t.Errorf("ParseID(%v) should fail", c)
		}
	}
	// Large in-range floats still convert exactly.
	if id, err := ParseID(float64(1 << 62)); err != nil || int64(id) != 1<<62 {
		t.Errorf("ParseID(2^62) = %v, %v", id, err)
	}
}

func TestSetID_EmptyClearsWithoutIO(t *testing.T) {
	for _, empty := range []any{nil, "", 0, ID(0)} {
		h, f := newTestHandle(t)
		if _, err := h.InputValues(context.Background()); err != nil {
			t.Fatal(err)
		}
		f.calls = nil

		if err := h.SetID(context.Background(), empty); err != nil {
			t.Fatalf("SetID(%#v) error = %v", empty, err)
		}
		if _, ok := h.ID(); ok {
			t.Errorf("SetID(%#v) left an id set", empty)
		}
		if h.Populated("inputs") {
			t.Errorf("SetID(%#v) left inputs populated", empty)
		}
		if len(f.calls) != 0 {
			t.Errorf("SetID(%#v) issued %d requests", empty, len(f.calls))
		}
	}
}

func TestClearID(t *testing.T) {
	// Given a handle with a scenario and a cached view
	h, f := newTestHandle(t)
	ctx := context.Background()
	if _, err := h.InputValues(ctx); err != nil {
		t.Fatal(err)
	}
	f.calls = nil

	// When the id is cleared
	h.ClearID()

	// Then reads fail the missing-id guard without I/O
	if _, ok := h.ID(); ok {
		t.Error("ClearID left an id set")
	}
	if h.Populated("inputs") {
		t.Error("ClearID left inputs populated")
	}
	if _, err := h.InputValues(ctx); !errors.Is(err, ErrMissingScenario) {
		t.Errorf("InputValues after ClearID error = %v, want ErrMissingScenario", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("issued %d requests after ClearID", len(f.calls))
	}
}

func TestSetID_ChangeInvalidatesEverySlot(t *testing.T) {
	// Given every slot populated for scenario 1
	obs := &recordingObserver{}
	h, f := newTestHandle(t, WithObserver(obs))
	ctx := context.Background()
	for name, read := range readers {
		if _, err := read(ctx, h); err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
	}

	// When the handle switches to scenario 2
	if err := h.SetID(ctx, "2"); err != nil {
		t.Fatal(err)
	}

	// Then only the header, seeded by validation, is populated
	for _, name := range h.CacheNames() {
		if got := h.Populated(name); got != (name == "header") {
			t.Errorf("Populated(%q) = %v after id change", name, got)
		}
	}
	if len(obs.changes) != 1 || obs.changes[0] != "1->2" {
		t.Errorf("changes = %v, want [1->2]", obs.changes)
	}

	// And the next read fetches scenario 2
	if _, err := h.ApplicationDemands(ctx); err != nil {
		t.Fatal(err)
	}
	if f.count(http.MethodGet, "scenarios/2/application_demands") != 1 {
		t.Error("expected a fetch for scenario 2")
	}
	if hdr, _ := h.Header(ctx); hdr.ID != 2 {
		t.Errorf("header id = %s, want 2", hdr.ID)
	}
}

func TestSetID_SameIDStillResets(t *testing.T) {
	obs := &recordingObserver{}
	h, f := newTestHandle(t, WithObserver(obs))
	ctx := context.Background()
	if _, err := h.Sankey(ctx); err != nil {
		t.Fatal(err)
	}

	if err := h.SetID(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if h.Populated("sankey") {
		t.Error("sankey populated after re-setting the same id")
	}
	if len(obs.changes) != 0 {
		t.Errorf("unexpected change notification %v", obs.changes)
	}
	if _, err := h.Sankey(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.count(http.MethodGet, "scenarios/1/sankey"); got != 2 {
		t.Errorf("sankey fetched %d times, want 2", got)
	}
}

func TestSetID_SeedsHeader(t *testing.T) {
	h, f := newTestHandle(t)

	title, err := h.Title(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if title != "Base" {
		t.Errorf("Title() = %q, want Base", title)
	}
	if len(f.calls) != 0 {
		t.Errorf("header read after SetID issued %d requests, want 0", len(f.calls))
	}
}

func TestFetchFailureNotCached(t *testing.T) {
	// Given an endpoint that fails once, then succeeds
	h, f := newTestHandle(t)
	f.routes["GET scenarios/1/energy_flow"] = []fakeResponse{
		{status: http.StatusBadGateway, body: "gateway"},
		{status: http.StatusOK, body: "key,value\nx,1\n"},
	}
	ctx := context.Background()

	// When the first read fails
	if _, err := h.EnergyFlows(ctx); !transport.IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("error = %v, want 502", err)
	}

	// Then the slot stays empty and the next read retries
	if h.Populated("energy_flow") {
		t.Fatal("slot populated after failed fetch")
	}
	tbl, err := h.EnergyFlows(ctx)
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if v, _ := tbl.Get("x", "value"); v != 1.0 {
		t.Errorf("x.value = %v, want 1", v)
	}
	if got := f.count(http.MethodGet, "scenarios/1/energy_flow"); got != 2 {
		t.Errorf("energy_flow fetched %d times, want 2", got)
	}
}

func TestResetCaches_IdempotentNoIO(t *testing.T) {
	h, f := newTestHandle(t)
	h.ResetCaches()
	h.ResetCaches()

	for _, name := range h.CacheNames() {
		if h.Populated(name) {
			t.Errorf("%q populated after ResetCaches", name)
		}
	}
	if len(f.calls) != 0 {
		t.Errorf("ResetCaches issued %d requests", len(f.calls))
	}
	if _, ok := h.ID(); !ok {
		t.Error("ResetCaches should keep the id")
	}
}

func TestRefetch(t *testing.T) {
	h, f := newTestHandle(t)
	ctx := context.Background()
	if _, err := h.HeatNetworkOrder(ctx); err != nil {
		t.Fatal(err)
	}

	if err := h.Refetch(ctx, "heat_network_order"); err != nil {
		t.Fatal(err)
	}
	if got := f.count(http.MethodGet, "scenarios/1/heat_network_order"); got != 2 {
		t.Errorf("fetched %d times, want 2", got)
	}
	if err := h.Refetch(ctx, "nope"); err == nil {
		t.Error("Refetch(nope) should fail")
	}
}

func TestWithInvalidation_Policy(t *testing.T) {
	h := New(newFakeDoer(), WithInvalidation(cache.InvalidateDependents))
	if h.Policy() != cache.InvalidateDependents {
		t.Errorf("Policy() = %v", h.Policy())
	}
	if New(newFakeDoer()).Policy() != cache.InvalidateAll {
		t.Error("default policy should be InvalidateAll")
	}
}
