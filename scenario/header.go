package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smileynet/etm/transport"
)

// Model front-end roots used by ProURL.
const (
	ModelURL     = "https://energytransitionmodel.com"
	BetaModelURL = "https://beta.energytransitionmodel.com"
)

// Header is the scenario metadata returned by GET /scenarios/{id}.
type Header struct {
	ID             ID             `json:"id"`
	Title          string         `json:"title"`
	AreaCode       string         `json:"area_code"`
	StartYear      int            `json:"start_year"`
	EndYear        int            `json:"end_year"`
	Template       ID             `json:"template"`
	DisplayGroup   string         `json:"display_group"`
	Source         string         `json:"source"`
	URL            string         `json:"url"`
	KeepCompatible bool           `json:"keep_compatible"`
	Private        bool           `json:"private"`
	Protected      bool           `json:"protected"`
	ESDLExportable bool           `json:"esdl_exportable"`
	Scaling        map[string]any `json:"scaling"`
	Owner          map[string]any `json:"owner"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`

	// Raw holds every field of the response, including ones not mapped above.
	Raw map[string]any `json:"-"`
}

// ScenarioID implements Identifier.
func (h Header) ScenarioID() ID { return h.ID }

func decodeHeader(resp transport.Response) (Header, error) {
	var raw map[string]any
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return Header{}, &MalformedHeaderError{Field: "body", Value: bodyFragment(resp.Body), Err: err}
	}
	// Some engine versions wrap the record as {"scenario": {...}}.
	body := resp.Body
	if inner, ok := raw["scenario"].(map[string]any); ok {
		raw = inner
		body, _ = json.Marshal(inner)
	}

	var hdr Header
	if err := json.Unmarshal(body, &hdr); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return Header{}, &MalformedHeaderError{Field: te.Field, Value: te.Value, Err: err}
		}
		return Header{}, &MalformedHeaderError{Field: "body", Value: bodyFragment(resp.Body), Err: err}
	}
	hdr.Raw = raw
	return hdr, nil
}

func bodyFragment(b []byte) string {
	if len(b) > 80 {
		return string(b[:80]) + "..."
	}
	return string(b)
}

// Header returns the scenario metadata, fetching it on a miss.
func (h *Handle) Header(ctx context.Context) (Header, error) {
	return h.header.get(ctx, h)
}

// Title returns the scenario title.
func (h *Handle) Title(ctx context.Context) (string, error) {
	hdr, err := h.Header(ctx)
	return hdr.Title, err
}

// AreaCode returns the region the scenario models.
func (h *Handle) AreaCode(ctx context.Context) (string, error) {
	hdr, err := h.Header(ctx)
	return hdr.AreaCode, err
}

// StartYear returns the scenario's base year.
func (h *Handle) StartYear(ctx context.Context) (int, error) {
	hdr, err := h.Header(ctx)
	return hdr.StartYear, err
}

// EndYear returns the scenario's target year.
func (h *Handle) EndYear(ctx context.Context) (int, error) {
	hdr, err := h.Header(ctx)
	return hdr.EndYear, err
}

// Template returns the id of the scenario this one was derived from, or the
// zero ID.
func (h *Handle) Template(ctx context.Context) (ID, error) {
	hdr, err := h.Header(ctx)
	return hdr.Template, err
}

// DisplayGroup returns the front-end group of the scenario's template.
func (h *Handle) DisplayGroup(ctx context.Context) (string, error) {
	hdr, err := h.Header(ctx)
	return hdr.DisplayGroup, err
}

// URL returns the engine URL of the scenario.
func (h *Handle) URL(ctx context.Context) (string, error) {
	hdr, err := h.Header(ctx)
	return hdr.URL, err
}

// Metadata returns the scenario's free-form metadata.
func (h *Handle) Metadata(ctx context.Context) (map[string]any, error) {
	hdr, err := h.Header(ctx)
	return hdr.Metadata, err
}

// CreatedAt returns the creation instant in UTC.
func (h *Handle) CreatedAt(ctx context.Context) (time.Time, error) {
	hdr, err := h.Header(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return parseTimestamp("created_at", hdr.CreatedAt)
}

// UpdatedAt returns the last update instant in UTC.
func (h *Handle) UpdatedAt(ctx context.Context) (time.Time, error) {
	hdr, err := h.Header(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return parseTimestamp("updated_at", hdr.UpdatedAt)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02",
}

func parseTimestamp(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, &MalformedHeaderError{Field: field, Value: s, Err: errors.New("empty timestamp")}
	}
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, &MalformedHeaderError{Field: field, Value: s, Err: firstErr}
}

// HeaderUpdate is a partial header change. Nil fields are left untouched.
type HeaderUpdate struct {
	Title          *string        `json:"title,omitempty"`
	KeepCompatible *bool          `json:"keep_compatible,omitempty"`
	Private        *bool          `json:"private,omitempty"`
	Source         *string        `json:"source,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON keeps an empty non-nil Metadata so it clears the remote map.
func (u HeaderUpdate) MarshalJSON() ([]byte, error) {
	type fields HeaderUpdate
	out := struct {
		fields
		Metadata *map[string]any `json:"metadata,omitempty"`
	}{fields: fields(u)}
	if u.Metadata != nil {
		out.Metadata = &u.Metadata
	}
	return json.Marshal(out)
}

func (u HeaderUpdate) empty() bool {
	return u.Title == nil && u.KeepCompatible == nil && u.Private == nil &&
		u.Source == nil && u.Metadata == nil
}

// UpdateHeader writes a partial header change, then invalidates the header
// and whatever depends on it.
func (h *Handle) UpdateHeader(ctx context.Context, upd HeaderUpdate) error {
	if upd.empty() {
		return errors.New("scenario: header update has no fields")
	}
	if _, err := h.put(ctx, "updating header", "", map[string]any{"scenario": upd}); err != nil {
		return err
	}
	h.invalidate(resHeader)
	return nil
}

// SetTitle renames the scenario.
func (h *Handle) SetTitle(ctx context.Context, title string) error {
	return h.UpdateHeader(ctx, HeaderUpdate{Title: &title})
}

// SetKeepCompatible toggles whether the engine migrates the scenario on
// dataset updates.
func (h *Handle) SetKeepCompatible(ctx context.Context, keep bool) error {
	return h.UpdateHeader(ctx, HeaderUpdate{KeepCompatible: &keep})
}

// SetPrivate toggles scenario visibility.
func (h *Handle) SetPrivate(ctx context.Context, private bool) error {
	return h.UpdateHeader(ctx, HeaderUpdate{Private: &private})
}

// SetMetadata replaces the scenario's metadata.
func (h *Handle) SetMetadata(ctx context.Context, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return h.UpdateHeader(ctx, HeaderUpdate{Metadata: metadata})
}

// AddMetadata sets one metadata key, keeping the others.
func (h *Handle) AddMetadata(ctx context.Context, key string, value any) error {
	if key == "" {
		return errors.New("scenario: metadata key is empty")
	}
	current, err := h.Metadata(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]any, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[key] = value
	return h.SetMetadata(ctx, next)
}

// ProURL returns the model front-end link that loads the scenario.
func (h *Handle) ProURL() (string, error) {
	id, err := h.requireID("pro url")
	if err != nil {
		return "", err
	}
	root := ModelURL
	if h.beta {
		root = BetaModelURL
	}
	return fmt.Sprintf("%s/scenarios/%s/load", root, id), nil
}
