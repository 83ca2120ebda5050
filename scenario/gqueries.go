package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smileynet/etm/table"
	"github.com/smileynet/etm/transport"
)

const (
	gqueryResultsSlot = "gquery_results"
	curveUnit         = "curve"
)

// ErrNoGQueries is returned when results are requested before any query was
// set.
var ErrNoGQueries = errors.New("scenario: no gqueries set")

// gqueryRequest asks the engine to evaluate queries without changing inputs.
type gqueryRequest struct {
	GQueries []string `json:"gqueries"`
}

type gqueryValue struct {
	Present json.RawMessage `json:"present"`
	Future  json.RawMessage `json:"future"`
	Unit    string          `json:"unit"`
}

// gqueryEval is one evaluation, split by unit.
type gqueryEval struct {
	all    *table.Table
	deltas *table.Table
	curves *table.Table
}

func (h *Handle) registerGQueries() {
	h.slots.Register(gqueryResultsSlot, &h.gqueryResults, outputDeps...)
	h.refetchers[gqueryResultsSlot] = func(ctx context.Context) error {
		h.gqueryResults.Reset()
		_, err := h.loadGQueries(ctx)
		return err
	}
}

// SetGQueries replaces the queries evaluated by GQueryResults. Only the
// result slot is reset.
func (h *Handle) SetGQueries(queries []string) {
	h.gqueries = dedupe(queries)
	h.gqueryResults.Reset()
	h.observer.OnCacheReset([]string{gqueryResultsSlot})
}

// GQueries returns the queries currently set.
func (h *Handle) GQueries() []string { return append([]string(nil), h.gqueries...) }

// GQueryResults evaluates the set queries. Rows are indexed by query in the
// order they were set, with present, future and unit columns. Curve queries
// have unit "curve" and empty values; GQueryCurves holds their series.
func (h *Handle) GQueryResults(ctx context.Context) (*table.Table, error) {
	r, err := h.loadGQueries(ctx)
	if err != nil {
		return nil, err
	}
	return r.all, nil
}

// GQueryDeltas returns the results that are single present/future values.
func (h *Handle) GQueryDeltas(ctx context.Context) (*table.Table, error) {
	r, err := h.loadGQueries(ctx)
	if err != nil {
		return nil, err
	}
	return r.deltas, nil
}

// GQueryCurves returns the future series of every curve query, one column
// per query.
func (h *Handle) GQueryCurves(ctx context.Context) (*table.Table, error) {
	r, err := h.loadGQueries(ctx)
	if err != nil {
		return nil, err
	}
	return r.curves, nil
}

func (h *Handle) loadGQueries(ctx context.Context) (gqueryEval, error) {
	if _, err := h.requireID(gqueryResultsSlot); err != nil {
		return gqueryEval{}, err
	}
	if len(h.gqueries) == 0 {
		return gqueryEval{}, ErrNoGQueries
	}
	queries := h.GQueries()
	return h.gqueryResults.Load(func() (gqueryEval, error) {
		resp, err := h.put(ctx, "evaluating gqueries", "", gqueryRequest{GQueries: queries})
		if err != nil {
			return gqueryEval{}, err
		}
		return shapeGQueries(resp, queries)
	})
}

func shapeGQueries(resp transport.Response, queries []string) (gqueryEval, error) {
	var body struct {
		GQueries map[string]gqueryValue `json:"gqueries"`
	}
	if err := resp.JSON(&body); err != nil {
		return gqueryEval{}, fmt.Errorf("scenario: shaping %s: %w", gqueryResultsSlot, err)
	}

	all := table.New([]string{"gquery"}, []string{"present", "future", "unit"})
	deltas := table.New([]string{"gquery"}, []string{"present", "future", "unit"})
	var (
		curveNames []string
		series     [][]float64
		rows       int
	)
	for _, q := range queries {
		v, ok := body.GQueries[q]
		if !ok {
			return gqueryEval{}, fmt.Errorf("scenario: shaping %s: engine returned no result for %q", gqueryResultsSlot, q)
		}
		if v.Unit == curveUnit {
			var s []float64
			if err := json.Unmarshal(v.Future, &s); err != nil {
				return gqueryEval{}, fmt.Errorf("scenario: shaping %s: curve %q: %w", gqueryResultsSlot, q, err)
			}
			curveNames = append(curveNames, q)
			series = append(series, s)
			rows = max(rows, len(s))
			_ = all.Append([]string{q}, []any{nil, nil, v.Unit})
			continue
		}
		present, future := scalar(v.Present), scalar(v.Future)
		_ = all.Append([]string{q}, []any{present, future, v.Unit})
		_ = deltas.Append([]string{q}, []any{present, future, v.Unit})
	}

	curves := table.New(nil, curveNames)
	for i := 0; i < rows; i++ {
		row := make([]any, len(series))
		for j, s := range series {
			if i < len(s) {
				row[j] = s[i]
			}
		}
		_ = curves.Append(nil, row)
	}
	for _, t := range []*table.Table{all, deltas, curves} {
		t.Freeze()
	}
	return gqueryEval{all: all, deltas: deltas, curves: curves}, nil
}

// scalar decodes a JSON number, leaving anything else empty.
func scalar(raw json.RawMessage) any {
	var f *float64
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return nil
	}
	return *f
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
