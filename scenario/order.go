package scenario

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smileynet/etm/table"
	"github.com/smileynet/etm/transport"
)

// OrderList is a ranked sequence of item names.
type OrderList []string

// Contains reports whether item is in the list.
func (o OrderList) Contains(item string) bool {
	for _, it := range o {
		if it == item {
			return true
		}
	}
	return false
}

func shapeOrder(resp transport.Response) (OrderList, error) {
	var payload struct {
		Order []string `json:"order"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &table.DecodeError{Format: "json", Reason: "order", Err: err}
	}
	return OrderList(payload.Order), nil
}

// NormalizeOrder accepts an OrderList, []string, []any of strings, or a
// mapping holding one of those under "order".
func NormalizeOrder(proposed any) (OrderList, error) {
	switch v := proposed.(type) {
	case OrderList:
		return append(OrderList(nil), v...), nil
	case []string:
		return append(OrderList(nil), v...), nil
	case []any:
		out := make(OrderList, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("scenario: order item %d is %T, want string", i, item)
			}
			out[i] = s
		}
		return out, nil
	case map[string]any:
		inner, ok := v["order"]
		if !ok {
			return nil, fmt.Errorf("scenario: order mapping has no \"order\" field")
		}
		return NormalizeOrder(inner)
	case map[string][]string:
		inner, ok := v["order"]
		if !ok {
			return nil, fmt.Errorf("scenario: order mapping has no \"order\" field")
		}
		return NormalizeOrder(inner)
	default:
		return nil, fmt.Errorf("scenario: cannot use %T as an order", proposed)
	}
}

// HeatNetworkOrder returns the dispatch order of heat network producers.
func (h *Handle) HeatNetworkOrder(ctx context.Context) (OrderList, error) {
	return h.heatNetworkOrder.get(ctx, h)
}

// ForecastStorageOrder returns the dispatch order of forecast storage.
func (h *Handle) ForecastStorageOrder(ctx context.Context) (OrderList, error) {
	return h.forecastStorageOrder.get(ctx, h)
}

// SetHeatNetworkOrder replaces the heat network order. Every proposed item
// must be in the current order; otherwise an *InvalidOrderError is returned
// and nothing is written.
func (h *Handle) SetHeatNetworkOrder(ctx context.Context, proposed any) error {
	return h.setOrder(ctx, h.heatNetworkOrder, proposed)
}

// SetForecastStorageOrder replaces the forecast storage order with the same
// validation as SetHeatNetworkOrder.
func (h *Handle) SetForecastStorageOrder(ctx context.Context, proposed any) error {
	return h.setOrder(ctx, h.forecastStorageOrder, proposed)
}

func (h *Handle) setOrder(ctx context.Context, v *view[OrderList], proposed any) error {
	order, err := NormalizeOrder(proposed)
	if err != nil {
		return err
	}
	current, err := v.get(ctx, h)
	if err != nil {
		return err
	}
	for _, item := range order {
		if !current.Contains(item) {
			return &InvalidOrderError{Order: v.name, Item: item}
		}
	}

	body := map[string]any{v.name: map[string]any{"order": []string(order)}}
	if _, err := h.put(ctx, "setting "+v.name, v.path, body); err != nil {
		return err
	}
	h.invalidate(v.name)
	return nil
}
