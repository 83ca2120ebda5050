package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/smileynet/etm/transport"
)

// Create makes a new scenario for areaCode and endYear and switches the
// handle to it.
func (h *Handle) Create(ctx context.Context, areaCode string, endYear int) (ID, error) {
	if areaCode == "" {
		return 0, errors.New("scenario: area code is empty")
	}
	body := map[string]any{"scenario": map[string]any{"area_code": areaCode, "end_year": endYear}}
	return h.create(ctx, "creating scenario", body)
}

// Copy makes a new scenario cloned from another and switches the handle to
// the copy.
func (h *Handle) Copy(ctx context.Context, from any) (ID, error) {
	src, err := ParseID(from)
	if err != nil {
		return 0, err
	}
	if src.IsZero() {
		if src, err = h.requireID("copying scenario"); err != nil {
			return 0, err
		}
	}
	body := map[string]any{"scenario": map[string]any{"scenario_id": src}}
	return h.create(ctx, "copying scenario", body)
}

func (h *Handle) create(ctx context.Context, op string, body any) (ID, error) {
	resp, err := h.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "scenarios",
		Body:   body,
		Decode: transport.DecodeJSON,
	})
	if err != nil {
		return 0, fmt.Errorf("scenario: %s: %w", op, err)
	}
	hdr, err := decodeHeader(resp)
	if err != nil {
		return 0, err
	}
	if hdr.ID.IsZero() {
		return 0, &MalformedHeaderError{Field: "id", Value: nil, Err: errors.New("engine returned no scenario id")}
	}
	h.commit(hdr.ID)
	h.header.slot.Set(hdr)
	return hdr.ID, nil
}

// Reset removes every user value and order override from the scenario and
// empties every slot.
func (h *Handle) Reset(ctx context.Context) error {
	if _, err := h.put(ctx, "resetting scenario", "", map[string]any{"reset": true}); err != nil {
		return err
	}
	h.ResetCaches()
	return nil
}

// Delete removes the scenario from the engine and clears the handle.
func (h *Handle) Delete(ctx context.Context) error {
	id, err := h.requireID("deleting scenario")
	if err != nil {
		return err
	}
	if _, err := h.do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   scenarioPath(id, ""),
		Decode: transport.DecodeText,
	}); err != nil {
		return fmt.Errorf("scenario: deleting %s: %w", id, err)
	}
	h.ClearID()
	return nil
}

// Interpolate asks the engine for a new scenario with the current one's
// inputs interpolated to endYear, which must lie strictly between the
// current start and end year. With use set the handle switches to the new
// scenario.
func (h *Handle) Interpolate(ctx context.Context, endYear int, use bool) (ID, error) {
	id, err := h.requireID("interpolating scenario")
	if err != nil {
		return 0, err
	}
	hdr, err := h.Header(ctx)
	if err != nil {
		return 0, err
	}
	if endYear <= hdr.StartYear || endYear >= hdr.EndYear {
		return 0, fmt.Errorf("scenario: interpolation year %d outside %d-%d", endYear, hdr.StartYear, hdr.EndYear)
	}
	resp, err := h.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   scenarioPath(id, "interpolate"),
		Body:   map[string]any{"end_year": endYear},
		Decode: transport.DecodeJSON,
	})
	if err != nil {
		return 0, fmt.Errorf("scenario: interpolating %s to %d: %w", id, endYear, err)
	}
	next, err := decodeHeader(resp)
	if err != nil {
		return 0, err
	}
	if next.ID.IsZero() {
		return 0, &MalformedHeaderError{Field: "id", Value: nil, Err: errors.New("engine returned no scenario id")}
	}
	if use {
		h.commit(next.ID)
		h.header.slot.Set(next)
	}
	return next.ID, nil
}

// DefaultPageLimit is the page size the engine uses for saved scenarios.
const DefaultPageLimit = 25

// SavedScenario is a scenario saved to an account.
type SavedScenario struct {
	ID          int64          `json:"id"`
	Scenario    ID             `json:"scenario_id"`
	History     []ID           `json:"scenario_id_history"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	AreaCode    string         `json:"area_code"`
	EndYear     int            `json:"end_year"`
	Private     bool           `json:"private"`
	Discarded   bool           `json:"discarded"`
	Owner       map[string]any `json:"owner"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// ScenarioID implements Identifier, so a SavedScenario can be passed to SetID.
func (s SavedScenario) ScenarioID() ID { return s.Scenario }

// PageMeta describes one page of a listing.
type PageMeta struct {
	Limit       int `json:"limit"`
	Total       int `json:"total"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

// SavedPage is one page of saved scenarios.
type SavedPage struct {
	Data []SavedScenario `json:"data"`
	Meta PageMeta        `json:"meta"`
}

// SavedScenarios fetches one page of the account's saved scenarios.
// Pages start at 1; a non-positive limit uses DefaultPageLimit.
func SavedScenarios(ctx context.Context, doer transport.Doer, page, limit int) (SavedPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	resp, err := doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "saved_scenarios",
		Query:  url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}},
		Decode: transport.DecodeJSON,
	})
	if err != nil {
		return SavedPage{}, fmt.Errorf("scenario: listing saved scenarios: %w", err)
	}
	var out SavedPage
	if err := resp.JSON(&out); err != nil {
		return SavedPage{}, fmt.Errorf("scenario: listing saved scenarios: %w", err)
	}
	return out, nil
}

// AllSavedScenarios walks every page of the account's saved scenarios. The
// page count comes from the engine's total_pages, so a server capping pages
// below DefaultPageLimit is still read to the end.
func AllSavedScenarios(ctx context.Context, doer transport.Doer) ([]SavedScenario, error) {
	first, err := SavedScenarios(ctx, doer, 1, DefaultPageLimit)
	if err != nil {
		return nil, err
	}
	out := append([]SavedScenario(nil), first.Data...)
	for page := 2; page <= first.Meta.pages(); page++ {
		next, err := SavedScenarios(ctx, doer, page, DefaultPageLimit)
		if err != nil {
			return nil, err
		}
		if len(next.Data) == 0 {
			break
		}
		out = append(out, next.Data...)
	}
	return out, nil
}

// pages returns the page count, derived from total and limit when the
// engine omits total_pages.
func (m PageMeta) pages() int {
	if m.TotalPages > 0 {
		return m.TotalPages
	}
	limit := m.Limit
	if limit < 1 {
		limit = DefaultPageLimit
	}
	return int(math.Ceil(float64(m.Total) / float64(limit)))
}

// SavedScenarios lists saved scenarios through the handle's transport.
func (h *Handle) SavedScenarios(ctx context.Context, page, limit int) (SavedPage, error) {
	return SavedScenarios(ctx, observedDoer{h}, page, limit)
}

// AllSavedScenarios walks every saved scenario page through the handle's
// transport.
func (h *Handle) AllSavedScenarios(ctx context.Context) ([]SavedScenario, error) {
	return AllSavedScenarios(ctx, observedDoer{h})
}

// observedDoer reports requests made outside a scenario to the handle's
// observer.
type observedDoer struct{ h *Handle }

func (d observedDoer) Do(ctx context.Context, req transport.Request) (transport.Response, error) {
	return d.h.do(ctx, req)
}
