// Package scenario mirrors one remote ETM scenario through lazily fetched
// cache slots.
//
// A Handle owns the scenario id and every slot. Reads fetch on a miss and
// serve the stored value afterwards; changing the id and every successful
// mutation invalidate the slots so a read never serves data from another
// scenario or from before a write.
package scenario

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/smileynet/etm/internal/cache"
	"github.com/smileynet/etm/table"
	"github.com/smileynet/etm/transport"
)

// Observer receives handle events for display. Implementations must not
// call back into the handle.
type Observer interface {
	OnScenarioChange(prev, next ID)
	OnCacheReset(names []string)
	OnRequest(method, path string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnScenarioChange(ID, ID)  {}
func (NopObserver) OnCacheReset([]string)    {}
func (NopObserver) OnRequest(string, string) {}

// Option configures a Handle.
type Option func(*Handle)

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(h *Handle) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithInvalidation selects how much a mutation invalidates. The default,
// cache.InvalidateAll, resets every slot.
func WithInvalidation(p cache.Policy) Option {
	return func(h *Handle) { h.policy = p }
}

// WithBeta points model links at the beta front-end.
func WithBeta(beta bool) Option {
	return func(h *Handle) { h.beta = beta }
}

// Handle is a client-side mirror of one remote scenario.
// It is not safe for concurrent use; callers must confine a handle to one
// goroutine or use independent handles.
type Handle struct {
	doer     transport.Doer
	observer Observer
	policy   cache.Policy
	beta     bool

	id         ID
	slots      *cache.Group
	refetchers map[string]func(context.Context) error

	header               *view[Header]
	inputs               *view[*table.Table]
	meritOrderEnabled    *view[bool]
	applicationDemands   *view[*table.Table]
	productionParameters *view[*table.Table]
	energyFlows          *view[*table.Table]
	sankey               *view[*table.Table]
	storageParameters    *view[*table.Table]
	meritParticipants    *view[*table.Table]
	heatNetworkOrder     *view[OrderList]
	forecastStorageOrder *view[OrderList]
	curves               map[string]*view[*table.Table]
	customCurves         *view[[]CustomCurveInfo]
	customCurveData      map[string]*view[*table.Table]

	gqueries      []string
	gqueryResults cache.Slot[gqueryEval]
}

// New creates a Handle with no scenario id.
func New(doer transport.Doer, opts ...Option) *Handle {
	h := &Handle{
		doer:     doer,
		observer: NopObserver{},
		policy:   cache.InvalidateAll,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.slots = cache.NewGroup(h.policy)
	h.registerViews()
	return h
}

// ID returns the current scenario id and whether one is set.
func (h *Handle) ID() (ID, bool) { return h.id, !h.id.IsZero() }

// Beta reports whether the handle targets the beta environment.
func (h *Handle) Beta() bool { return h.beta }

// Policy returns the invalidation policy in effect.
func (h *Handle) Policy() cache.Policy { return h.slots.Policy() }

// RequireID returns the current id or a *MissingScenarioError.
func (h *Handle) RequireID() (ID, error) { return h.requireID("") }

func (h *Handle) requireID(op string) (ID, error) {
	if h.id.IsZero() {
		return 0, &MissingScenarioError{Op: op}
	}
	return h.id, nil
}

// SetID validates candidate against the engine and makes it the current
// scenario. See ParseID for accepted forms. An empty candidate clears the id
// without I/O. A rejected candidate leaves the previous id in place. Every
// slot is reset on success, even when the id is unchanged.
func (h *Handle) SetID(ctx context.Context, candidate any) error {
	id, err := ParseID(candidate)
	if err != nil {
		return err
	}
	if id.IsZero() {
		h.ClearID()
		return nil
	}

	resp, err := h.do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   scenarioPath(id, ""),
		Decode: transport.DecodeJSON,
	})
	if err != nil {
		if transport.IsStatus(err, http.StatusNotFound) {
			return &ScenarioNotFoundError{ID: id, Err: err}
		}
		return fmt.Errorf("scenario: validating %s: %w", id, err)
	}
	hdr, err := decodeHeader(resp)
	if err != nil {
		return err
	}

	h.commit(id)
	h.header.slot.Set(hdr)
	return nil
}

// commit switches to id and resets every slot.
func (h *Handle) commit(id ID) {
	prev := h.id
	h.id = id
	if !prev.IsZero() && prev != id {
		h.observer.OnScenarioChange(prev, id)
	}
	h.ResetCaches()
}

// ClearID unsets the scenario id and resets every slot.
func (h *Handle) ClearID() {
	h.id = 0
	h.ResetCaches()
}

// ResetCaches empties every slot. It is idempotent and performs no I/O.
func (h *Handle) ResetCaches() {
	h.observer.OnCacheReset(h.slots.ResetAll())
}

// Populated reports whether the named slot currently holds a value.
func (h *Handle) Populated(name string) bool { return h.slots.Populated(name) }

// CacheNames returns every slot name in registration order.
func (h *Handle) CacheNames() []string { return h.slots.Names() }

// invalidate resets the slots affected by a change to the named resources.
// Mutators call it as their last step.
func (h *Handle) invalidate(changed ...string) {
	if names := h.slots.Invalidate(changed...); len(names) > 0 {
		h.observer.OnCacheReset(names)
	}
}

func (h *Handle) do(ctx context.Context, req transport.Request) (transport.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	h.observer.OnRequest(method, req.Path)
	return h.doer.Do(ctx, req)
}

// put issues a JSON PUT against a path under the current scenario.
func (h *Handle) put(ctx context.Context, op, path string, body any) (transport.Response, error) {
	id, err := h.requireID(op)
	if err != nil {
		return transport.Response{}, err
	}
	resp, err := h.do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   scenarioPath(id, path),
		Body:   body,
		Decode: transport.DecodeJSON,
	})
	if err != nil {
		return transport.Response{}, fmt.Errorf("scenario: %s: %w", op, err)
	}
	return resp, nil
}

// scenarioPath joins a resource path under /scenarios/{id}.
func scenarioPath(id ID, resource string) string {
	p := "scenarios/" + id.String()
	if resource = strings.Trim(resource, "/"); resource != "" {
		p += "/" + resource
	}
	return p
}
