package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/smileynet/etm/table"
	"github.com/smileynet/etm/transport"
)

// inputColumns fixes the leading columns of the input values table.
var inputColumns = []string{"min", "max", "default", "user", "unit", "disabled", "share_group"}

const meritOrderSetting = "settings_enable_merit_order"

// shapeInputValues orients the {"key": {"min": ...}} dump into one row per
// parameter. A missing user value stays nil and a missing disabled flag is
// false.
func shapeInputValues(resp transport.Response) (*table.Table, error) {
	var records map[string]map[string]any
	if err := json.Unmarshal(resp.Body, &records); err != nil {
		return nil, &table.DecodeError{Format: "json", Reason: "input values", Err: err}
	}
	t := table.FromRecords("key", records, inputColumns)
	if err := t.FillNil("disabled", false); err != nil {
		return nil, err
	}
	t.Freeze()
	return t, nil
}

func shapeMeritOrderEnabled(resp transport.Response) (bool, error) {
	var rec struct {
		Default *float64 `json:"default"`
		User    *float64 `json:"user"`
	}
	if err := json.Unmarshal(resp.Body, &rec); err != nil {
		return false, &table.DecodeError{Format: "json", Reason: meritOrderSetting, Err: err}
	}
	switch {
	case rec.User != nil:
		return *rec.User != 0, nil
	case rec.Default != nil:
		return *rec.Default != 0, nil
	default:
		return false, &table.DecodeError{Format: "json", Reason: meritOrderSetting + " has no value"}
	}
}

// csvShape decodes a CSV payload with the given index and freezes it.
func csvShape(opts table.CSVOptions) func(transport.Response) (*table.Table, error) {
	return func(resp transport.Response) (*table.Table, error) {
		t, err := table.ReadCSV(resp.Reader(), opts)
		if err != nil {
			return nil, err
		}
		t.Freeze()
		return t, nil
	}
}

func shapeMeritParticipants(resp transport.Response) (*table.Table, error) {
	var payload struct {
		Participants []map[string]any `json:"participants"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &table.DecodeError{Format: "json", Reason: "merit configuration", Err: err}
	}
	sort.SliceStable(payload.Participants, func(i, j int) bool {
		return fmt.Sprint(payload.Participants[i]["key"]) < fmt.Sprint(payload.Participants[j]["key"])
	})
	for _, rec := range payload.Participants {
		for k, v := range rec {
			if v == "null" {
				rec[k] = nil
			}
		}
	}
	t, err := table.FromRecordList("key", payload.Participants, []string{"type"})
	if err != nil {
		return nil, err
	}
	if t.HasColumn("curve") {
		if err := t.DropColumn("curve"); err != nil {
			return nil, err
		}
	}
	t.Freeze()
	return t, nil
}

// InputValues returns one row per scenario input. The table is read-only;
// change values through SetUserValues.
func (h *Handle) InputValues(ctx context.Context) (*table.Table, error) {
	return h.inputs.get(ctx, h)
}

// AssignInputValues always fails. The cached input table only changes
// through SetUserValues.
func (h *Handle) AssignInputValues(*table.Table) error {
	return &ProtectedFieldError{Field: "input values", Use: "SetUserValues"}
}

// UserValues returns the inputs the scenario overrides, keyed by input.
func (h *Handle) UserValues(ctx context.Context) (map[string]any, error) {
	t, err := h.InputValues(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for i := 0; i < t.Len(); i++ {
		if v, _ := t.Value(i, "user"); v != nil {
			out[t.Label(i)[0]] = v
		}
	}
	return out, nil
}

// ScenarioParameters returns every input's effective value: the user value
// where set and the default otherwise.
func (h *Handle) ScenarioParameters(ctx context.Context) (map[string]any, error) {
	t, err := h.InputValues(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, t.Len())
	for i := 0; i < t.Len(); i++ {
		v, _ := t.Value(i, "user")
		if v == nil {
			v, _ = t.Value(i, "default")
		}
		out[t.Label(i)[0]] = v
	}
	return out, nil
}

// SetUserValues writes input overrides, then invalidates everything derived
// from the inputs. A nil value removes the override.
func (h *Handle) SetUserValues(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return fmt.Errorf("scenario: no user values given")
	}
	body := map[string]any{
		"scenario": map[string]any{"user_values": values},
		"detailed": true,
	}
	if _, err := h.put(ctx, "setting user values", "", body); err != nil {
		return err
	}
	h.invalidate(resUserValues)
	return nil
}

// MeritOrderEnabled reports whether the hourly merit order module runs.
func (h *Handle) MeritOrderEnabled(ctx context.Context) (bool, error) {
	return h.meritOrderEnabled.get(ctx, h)
}

// ApplicationDemands returns demands per application, indexed by key.
func (h *Handle) ApplicationDemands(ctx context.Context) (*table.Table, error) {
	return h.applicationDemands.get(ctx, h)
}

// ProductionParameters returns capacities and costs per producer.
func (h *Handle) ProductionParameters(ctx context.Context) (*table.Table, error) {
	return h.productionParameters.get(ctx, h)
}

// EnergyFlows returns the energy flow summary, indexed by key.
func (h *Handle) EnergyFlows(ctx context.Context) (*table.Table, error) {
	return h.energyFlows.get(ctx, h)
}

// Sankey returns the sankey breakdown indexed by Group, Carrier, Category
// and Type.
func (h *Handle) Sankey(ctx context.Context) (*table.Table, error) {
	return h.sankey.get(ctx, h)
}

// StorageParameters returns storage volumes and capacities indexed by Group,
// Carrier, Key and Parameter.
func (h *Handle) StorageParameters(ctx context.Context) (*table.Table, error) {
	return h.storageParameters.get(ctx, h)
}

// MeritParticipants returns the merit order participants, indexed by key.
func (h *Handle) MeritParticipants(ctx context.Context) (*table.Table, error) {
	return h.meritParticipants.get(ctx, h)
}

// Tables lists the names accepted by Table.
func Tables() []string {
	names := make([]string, 0, len(tableViews))
	for name := range tableViews {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var tableViews = map[string]func(*Handle) *view[*table.Table]{
	"inputs":                func(h *Handle) *view[*table.Table] { return h.inputs },
	"application_demands":   func(h *Handle) *view[*table.Table] { return h.applicationDemands },
	"production_parameters": func(h *Handle) *view[*table.Table] { return h.productionParameters },
	"energy_flow":           func(h *Handle) *view[*table.Table] { return h.energyFlows },
	"sankey":                func(h *Handle) *view[*table.Table] { return h.sankey },
	"storage_parameters":    func(h *Handle) *view[*table.Table] { return h.storageParameters },
	"merit_participants":    func(h *Handle) *view[*table.Table] { return h.meritParticipants },
}

// Table returns a tabular view by name, or a curve by carrier name.
func (h *Handle) Table(ctx context.Context, name string) (*table.Table, error) {
	if pick, ok := tableViews[name]; ok {
		return pick(h).get(ctx, h)
	}
	if _, ok := lookupCurve(name); ok {
		return h.Curve(ctx, name)
	}
	return nil, fmt.Errorf("scenario: unknown table %q", name)
}
