package scenario

import (
	"context"
	"sort"
	"time"

	"github.com/smileynet/etm/table"
	"github.com/smileynet/etm/transport"
)

// curveResource is one hourly curve endpoint.
type curveResource struct {
	resource string
	names    []string // carrier names, first is canonical
	decimals int      // rounding applied after decoding; <0 disables
}

var curveResources = []curveResource{
	{resource: "merit_order", names: []string{"electricity"}, decimals: -1},
	{resource: "electricity_price", names: []string{"electricity_price"}, decimals: 2},
	{resource: "heat_network", names: []string{"heat_network"}, decimals: -1},
	{resource: "household_heat", names: []string{"household_heat"}, decimals: -1},
	{resource: "network_gas", names: []string{"methane", "network_gas"}, decimals: -1},
	{resource: "hydrogen", names: []string{"hydrogen"}, decimals: -1},
}

func lookupCurve(name string) (curveResource, bool) {
	for _, c := range curveResources {
		for _, n := range c.names {
			if n == name {
				return c, true
			}
		}
	}
	return curveResource{}, false
}

// Curves returns the canonical carrier names accepted by Curve.
func Curves() []string {
	out := make([]string, len(curveResources))
	for i, c := range curveResources {
		out[i] = c.names[0]
	}
	sort.Strings(out)
	return out
}

// curveShape drops the server's Time column and keeps a positional index:
// row order is authoritative, the timestamps are not.
func curveShape(decimals int) func(transport.Response) (*table.Table, error) {
	return func(resp transport.Response) (*table.Table, error) {
		t, err := table.ReadCSV(resp.Reader(), table.CSVOptions{Drop: []string{"Time"}})
		if err != nil {
			return nil, err
		}
		if decimals >= 0 {
			if err := t.Round(decimals); err != nil {
				return nil, err
			}
		}
		t.Freeze()
		return t, nil
	}
}

// Curve returns the hourly curves for a carrier. Rows are indexed 0..n-1;
// CurveTimestamps gives their hourly labels.
func (h *Handle) Curve(ctx context.Context, carrier string) (*table.Table, error) {
	c, ok := lookupCurve(carrier)
	if !ok {
		var avail []string
		for _, c := range curveResources {
			avail = append(avail, c.names...)
		}
		return nil, &UnknownCurveError{Name: carrier, Available: avail}
	}
	return h.curves[c.resource].get(ctx, h)
}

// HourlyElectricityCurves returns the merit order curves.
func (h *Handle) HourlyElectricityCurves(ctx context.Context) (*table.Table, error) {
	return h.Curve(ctx, "electricity")
}

// HourlyElectricityPriceCurve returns the electricity price, rounded to cents.
func (h *Handle) HourlyElectricityPriceCurve(ctx context.Context) (*table.Table, error) {
	return h.Curve(ctx, "electricity_price")
}

// HourlyHeatNetworkCurves returns the district heating curves.
func (h *Handle) HourlyHeatNetworkCurves(ctx context.Context) (*table.Table, error) {
	return h.Curve(ctx, "heat_network")
}

// HourlyHouseholdHeatCurves returns the household heat curves.
func (h *Handle) HourlyHouseholdHeatCurves(ctx context.Context) (*table.Table, error) {
	return h.Curve(ctx, "household_heat")
}

// HourlyMethaneCurves returns the network gas curves.
func (h *Handle) HourlyMethaneCurves(ctx context.Context) (*table.Table, error) {
	return h.Curve(ctx, "methane")
}

// HourlyHydrogenCurves returns the hydrogen curves.
func (h *Handle) HourlyHydrogenCurves(ctx context.Context) (*table.Table, error) {
	return h.Curve(ctx, "hydrogen")
}

// CurveTimestamps returns n hourly UTC instants starting at January 1st of
// the scenario's start year.
func (h *Handle) CurveTimestamps(ctx context.Context, n int) ([]time.Time, error) {
	year, err := h.StartYear(ctx)
	if err != nil {
		return nil, err
	}
	return HourlyIndex(year, n), nil
}

// HourlyIndex returns n consecutive hours starting at January 1st of year, UTC.
func HourlyIndex(year, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}
