package scenario

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/smileynet/etm/internal/cache"
	"github.com/smileynet/etm/table"
	"github.com/smileynet/etm/transport"
)

// Resource names used as invalidation keys. Mutators invalidate the resource
// they wrote; slots list the resources their content depends on.
const (
	resHeader               = "header"
	resUserValues           = "user_values"
	resHeatNetworkOrder     = "heat_network_order"
	resForecastStorageOrder = "forecast_storage_order"
	resCustomCurves         = "custom_curves"
)

// outputDeps are the writable resources every computed output depends on.
var outputDeps = []string{resUserValues, resHeatNetworkOrder, resForecastStorageOrder, resCustomCurves}

// view is a cached remote resource under /scenarios/{id}: one slot, the
// request that fills it and the function shaping the response.
type view[T any] struct {
	name   string
	path   string
	query  url.Values
	decode transport.Decode
	shape  func(transport.Response) (T, error)
	slot   cache.Slot[T]
}

// get returns the slot's value, fetching on a miss. The id check runs before
// any I/O.
func (v *view[T]) get(ctx context.Context, h *Handle) (T, error) {
	id, err := h.requireID(v.name)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.slot.Load(func() (T, error) {
		var zero T
		resp, err := h.do(ctx, transport.Request{
			Method: http.MethodGet,
			Path:   scenarioPath(id, v.path),
			Query:  v.query,
			Decode: v.decode,
		})
		if err != nil {
			return zero, fmt.Errorf("scenario: fetching %s: %w", v.name, err)
		}
		out, err := v.shape(resp)
		if err != nil {
			return zero, fmt.Errorf("scenario: shaping %s: %w", v.name, err)
		}
		return out, nil
	})
}

// refetch empties the slot and fetches again.
func (v *view[T]) refetch(ctx context.Context, h *Handle) (T, error) {
	v.slot.Reset()
	return v.get(ctx, h)
}

// register adds v's slot to the handle's group and returns v.
func register[T any](h *Handle, v *view[T], dependsOn ...string) *view[T] {
	h.slots.Register(v.name, &v.slot, dependsOn...)
	h.refetchers[v.name] = func(ctx context.Context) error {
		_, err := v.refetch(ctx, h)
		return err
	}
	return v
}

// Refetch empties the named slot and fetches it again.
func (h *Handle) Refetch(ctx context.Context, name string) error {
	fn, ok := h.refetchers[name]
	if !ok {
		return fmt.Errorf("scenario: no cached resource %q", name)
	}
	return fn(ctx)
}

func (h *Handle) registerViews() {
	h.refetchers = make(map[string]func(context.Context) error)

	h.header = register(h, &view[Header]{
		name:   resHeader,
		decode: transport.DecodeJSON,
		shape:  decodeHeader,
	}, outputDeps...)

	h.inputs = register(h, &view[*table.Table]{
		name:   "inputs",
		path:   "inputs",
		decode: transport.DecodeJSON,
		shape:  shapeInputValues,
	}, resUserValues, resCustomCurves)

	h.meritOrderEnabled = register(h, &view[bool]{
		name:   "merit_order_enabled",
		path:   "inputs/" + meritOrderSetting,
		decode: transport.DecodeJSON,
		shape:  shapeMeritOrderEnabled,
	}, resUserValues, resCustomCurves)

	h.applicationDemands = register(h, &view[*table.Table]{
		name:   "application_demands",
		path:   "application_demands",
		decode: transport.DecodeTabular,
		shape:  csvShape(table.CSVOptions{Index: []string{"key"}}),
	}, outputDeps...)

	h.productionParameters = register(h, &view[*table.Table]{
		name:   "production_parameters",
		path:   "production_parameters",
		decode: transport.DecodeTabular,
		shape:  csvShape(table.CSVOptions{}),
	}, outputDeps...)

	h.energyFlows = register(h, &view[*table.Table]{
		name:   "energy_flow",
		path:   "energy_flow",
		decode: transport.DecodeTabular,
		shape:  csvShape(table.CSVOptions{Index: []string{"key"}}),
	}, outputDeps...)

	h.sankey = register(h, &view[*table.Table]{
		name:   "sankey",
		path:   "sankey",
		decode: transport.DecodeTabular,
		shape:  csvShape(table.CSVOptions{Index: []string{"Group", "Carrier", "Category", "Type"}}),
	}, outputDeps...)

	h.storageParameters = register(h, &view[*table.Table]{
		name:   "storage_parameters",
		path:   "storage_parameters",
		decode: transport.DecodeTabular,
		shape:  csvShape(table.CSVOptions{Index: []string{"Group", "Carrier", "Key", "Parameter"}}),
	}, outputDeps...)

	h.meritParticipants = register(h, &view[*table.Table]{
		name:   "merit_participants",
		path:   "merit",
		query:  url.Values{"include_curves": {"false"}},
		decode: transport.DecodeJSON,
		shape:  shapeMeritParticipants,
	}, outputDeps...)

	h.heatNetworkOrder = register(h, &view[OrderList]{
		name:   resHeatNetworkOrder,
		path:   "heat_network_order",
		decode: transport.DecodeJSON,
		shape:  shapeOrder,
	})

	h.forecastStorageOrder = register(h, &view[OrderList]{
		name:   resForecastStorageOrder,
		path:   "forecast_storage_order",
		decode: transport.DecodeJSON,
		shape:  shapeOrder,
	})

	h.customCurves = register(h, &view[[]CustomCurveInfo]{
		name:   resCustomCurves,
		path:   "custom_curves",
		query:  url.Values{"include_unattached": {"true"}, "include_internal": {"true"}},
		decode: transport.DecodeJSON,
		shape:  shapeCustomCurves,
	})
	h.customCurveData = make(map[string]*view[*table.Table])
	h.registerGQueries()

	h.curves = make(map[string]*view[*table.Table], len(curveResources))
	for _, c := range curveResources {
		h.curves[c.resource] = register(h, &view[*table.Table]{
			name:   "curves/" + c.resource,
			path:   "curves/" + c.resource,
			decode: transport.DecodeTabular,
			shape:  curveShape(c.decimals),
		}, outputDeps...)
	}
}
