package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/mattjoyce/plugbus/internal/dispatch"
)

// Collect flattens descriptor responses. Each handler may return nil, a T,
// a *T or a []T; any other value is an error naming the handler.
func Collect[T any](res dispatch.Result) ([]T, error) {
	var out []T
	for _, resp := range res {
		switch v := resp.Value.(type) {
		case nil:
		case T:
			out = append(out, v)
		case *T:
			if v != nil {
				out = append(out, *v)
			}
		case []T:
			out = append(out, v...)
		default:
			return nil, fmt.Errorf("handler %s returned %T, want %T", resp.Handler.ID, resp.Value, *new(T))
		}
	}
	return out, nil
}

// Available combines availability-check responses for the requested variations.
// A variation is available only if every handler that reports it says so. A
// handler that does not mention a variation does not restrict it. The lowest
// price reported by any handler wins.
func Available(requested []Variation, res dispatch.Result) ([]Variation, error) {
	out := make([]Variation, len(requested))
	index := make(map[string]int, len(requested))
	for i, v := range requested {
		out[i] = v
		out[i].Available = true
		out[i].Price = nil
		index[v.ID] = i
	}

	for _, resp := range res {
		vars, ok := resp.Value.([]Variation)
		if !ok {
			if resp.Value == nil {
				continue
			}
			return nil, fmt.Errorf("handler %s returned %T, want []catalog.Variation", resp.Handler.ID, resp.Value)
		}
		for _, v := range vars {
			i, ok := index[v.ID]
			if !ok {
				continue
			}
			out[i].Available = out[i].Available && v.Available
			if v.Price != nil && (out[i].Price == nil || *v.Price < *out[i].Price) {
				p := *v.Price
				out[i].Price = &p
			}
		}
	}
	return out, nil
}

// Summarize folds a dispatch result for name into the channel's aggregate:
// the per-variation verdict for availability checks and the flattened
// descriptors for registration channels. Notification channels and channels
// outside the catalog have no aggregate and return nil.
func Summarize(name string, raw json.RawMessage, res dispatch.Result) (any, error) {
	switch name {
	case AvailabilityCheck:
		payload, err := DecodePayload(name, raw)
		if err != nil {
			return nil, err
		}
		return Available(payload.(*AvailabilityRequest).Variations, res)
	case RegisterPaymentProviders:
		return Collect[PaymentProvider](res)
	case RegisterTicketOutputs:
		return Collect[TicketOutput](res)
	case RegisterDataExporters:
		return Collect[Exporter](res)
	default:
		return nil, nil
	}
}
