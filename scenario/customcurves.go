package scenario

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/smileynet/etm/table"
	"github.com/smileynet/etm/transport"
)

// HoursPerYear is the length of every custom curve.
const HoursPerYear = 8760

// CustomCurveInfo describes one custom curve slot of a scenario.
type CustomCurveInfo struct {
	Key          string   `json:"key"`
	Type         string   `json:"type"`
	DisplayGroup string   `json:"display_group"`
	Attached     bool     `json:"attached"`
	Overrides    []string `json:"overrides"`
	Name         string   `json:"name"`
	Date         string   `json:"date"`
}

func shapeCustomCurves(resp transport.Response) ([]CustomCurveInfo, error) {
	var out []CustomCurveInfo
	if len(strings.TrimSpace(resp.Text())) == 0 {
		return out, nil
	}
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// CustomCurveOverview returns every custom curve slot, attached or not,
// including internal ones.
func (h *Handle) CustomCurveOverview(ctx context.Context) ([]CustomCurveInfo, error) {
	return h.customCurves.get(ctx, h)
}

// customCurve looks key up in the overview.
func (h *Handle) customCurve(ctx context.Context, key string) (CustomCurveInfo, error) {
	all, err := h.CustomCurveOverview(ctx)
	if err != nil {
		return CustomCurveInfo{}, err
	}
	for _, c := range all {
		if c.Key == key {
			return c, nil
		}
	}
	return CustomCurveInfo{}, &UnknownCustomCurveError{Key: key}
}

// CustomCurveKeys returns the keys of the attached custom curves.
func (h *Handle) CustomCurveKeys(ctx context.Context) ([]string, error) {
	all, err := h.CustomCurveOverview(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, c := range all {
		if c.Attached {
			keys = append(keys, c.Key)
		}
	}
	return keys, nil
}

// CustomCurveSettings lays the attached custom curves out one per row,
// with the number of inputs each one overrides.
func (h *Handle) CustomCurveSettings(ctx context.Context) (*table.Table, error) {
	all, err := h.CustomCurveOverview(ctx)
	if err != nil {
		return nil, err
	}
	t := table.New([]string{"key"}, []string{"type", "display_group", "name", "date", "overrides"})
	for _, c := range all {
		if !c.Attached {
			continue
		}
		_ = t.Append([]string{c.Key}, []any{c.Type, c.DisplayGroup, c.Name, c.Date, len(c.Overrides)})
	}
	return t, nil
}

// CustomCurveOverrides maps each input overridden by an attached custom
// curve to that curve's key.
func (h *Handle) CustomCurveOverrides(ctx context.Context) (map[string]string, error) {
	all, err := h.CustomCurveOverview(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, c := range all {
		if !c.Attached {
			continue
		}
		for _, input := range c.Overrides {
			out[input] = c.Key
		}
	}
	return out, nil
}

// CustomCurve returns the uploaded values for key as a positional table
// with one column named after the key.
func (h *Handle) CustomCurve(ctx context.Context, key string) (*table.Table, error) {
	c, err := h.customCurve(ctx, key)
	if err != nil {
		return nil, err
	}
	if !c.Attached {
		return nil, fmt.Errorf("%w: %s", ErrCurveNotAttached, key)
	}
	return h.customCurveView(key).get(ctx, h)
}

// customCurveView returns the slot for one custom curve, registering it on
// first use.
func (h *Handle) customCurveView(key string) *view[*table.Table] {
	if v, ok := h.customCurveData[key]; ok {
		return v
	}
	v := register(h, &view[*table.Table]{
		name:   resCustomCurves + "/" + key,
		path:   resCustomCurves + "/" + url.PathEscape(key),
		decode: transport.DecodeTabular,
		shape: func(resp transport.Response) (*table.Table, error) {
			t, err := table.ReadSeries(resp.Reader(), key)
			if err != nil {
				return nil, err
			}
			t.Freeze()
			return t, nil
		},
	}, resCustomCurves)
	h.customCurveData[key] = v
	return v
}

// UploadCustomCurve attaches values to the custom curve slot key. filename
// is shown in the model front-end; empty uses the key.
func (h *Handle) UploadCustomCurve(ctx context.Context, key string, values []float64, filename string) error {
	id, err := h.requireID("uploading custom curve")
	if err != nil {
		return err
	}
	if len(values) != HoursPerYear {
		return fmt.Errorf("scenario: custom curve %q has %d values, want %d", key, len(values), HoursPerYear)
	}
	if _, err := h.customCurve(ctx, key); err != nil {
		return err
	}
	if filename == "" {
		filename = key + ".csv"
	}

	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		b.WriteByte('\n')
	}
	if _, err := h.do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   scenarioPath(id, resCustomCurves+"/"+url.PathEscape(key)),
		Body:   transport.File{Name: filename, Data: []byte(b.String())},
		Decode: transport.DecodeJSON,
	}); err != nil {
		return fmt.Errorf("scenario: uploading custom curve %s: %w", key, err)
	}
	h.invalidate(resCustomCurves)
	return nil
}

// UploadCustomCurves uploads every column of t as the custom curve named
// after the column. All keys are checked before the first upload.
func (h *Handle) UploadCustomCurves(ctx context.Context, t *table.Table, filename string) error {
	if _, err := h.requireID("uploading custom curves"); err != nil {
		return err
	}
	curves := make(map[string][]float64, len(t.Columns()))
	for _, key := range t.Columns() {
		if _, err := h.customCurve(ctx, key); err != nil {
			return err
		}
		values, err := t.Floats(key)
		if err != nil {
			return err
		}
		curves[key] = values
	}
	for _, key := range t.Columns() {
		if err := h.UploadCustomCurve(ctx, key, curves[key], filename); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCustomCurves detaches the named custom curves, or every attached
// curve when keys is empty. Keys that are known but not attached are
// skipped; unknown keys fail before any request is made.
func (h *Handle) DeleteCustomCurves(ctx context.Context, keys ...string) error {
	id, err := h.requireID("deleting custom curves")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		if keys, err = h.CustomCurveKeys(ctx); err != nil {
			return err
		}
	}
	var attached []string
	for _, key := range keys {
		c, err := h.customCurve(ctx, key)
		if err != nil {
			return err
		}
		if c.Attached {
			attached = append(attached, key)
		}
	}
	if len(attached) == 0 {
		return nil
	}

	for _, key := range attached {
		if _, err := h.do(ctx, transport.Request{
			Method: http.MethodDelete,
			Path:   scenarioPath(id, resCustomCurves+"/"+url.PathEscape(key)),
			Decode: transport.DecodeText,
		}); err != nil {
			h.invalidate(resCustomCurves)
			return fmt.Errorf("scenario: deleting custom curve %s: %w", key, err)
		}
	}
	h.invalidate(resCustomCurves)
	return nil
}
