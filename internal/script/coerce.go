package script

import (
	"encoding/json"
	"fmt"

	"github.com/mattjoyce/plugbus/internal/catalog"
)

// coerce converts a plain script response into the type the channel's
// aggregation helpers expect. Channels outside the catalog keep the plain value.
func coerce(channelName string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch channelName {
	case catalog.AvailabilityCheck:
		return decodeAs[[]catalog.Variation](v)
	case catalog.RegisterPaymentProviders:
		return descriptors[catalog.PaymentProvider](v)
	case catalog.RegisterTicketOutputs:
		return descriptors[catalog.TicketOutput](v)
	case catalog.RegisterDataExporters:
		return descriptors[catalog.Exporter](v)
	default:
		return v, nil
	}
}

// descriptors accepts a single descriptor table or a list of them.
func descriptors[T any](v any) (any, error) {
	if _, ok := v.([]any); ok {
		return decodeAs[[]T](v)
	}
	return decodeAs[T](v)
}

func decodeAs[T any](v any) (T, error) {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("encode response: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("response is not a %T: %w", out, err)
	}
	return out, nil
}
