package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrPayloadRequired is returned when a channel that carries a payload is sent without one.
	ErrPayloadRequired = errors.New("payload required")
	ErrInvalidPayload  = errors.New("invalid payload")
)

// DecodePayload turns a JSON payload into the value handlers of name expect.
// Availability requests decode to *AvailabilityRequest so the caller can
// attach a Cache. Registration channels take no payload and ignore raw.
// Channels outside the catalog receive the plain decoded JSON.
func DecodePayload(name string, raw json.RawMessage) (any, error) {
	empty := len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))

	switch name {
	case RegisterPaymentProviders, RegisterTicketOutputs, RegisterDataExporters:
		return nil, nil
	case AvailabilityCheck:
		if empty {
			return nil, fmt.Errorf("%s: %w", name, ErrPayloadRequired)
		}
		var req AvailabilityRequest
		if err := strictUnmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(req.Variations) == 0 {
			req.Variations = []Variation{{}}
		}
		return &req, nil
	case OrderPlaced, OrderPaid:
		if empty {
			return nil, fmt.Errorf("%s: %w", name, ErrPayloadRequired)
		}
		var ev OrderEvent
		if err := strictUnmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if ev.Order.Code == "" {
			return nil, fmt.Errorf("%s: %w: order.code is required", name, ErrInvalidPayload)
		}
		return ev, nil
	default:
		if empty {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", name, ErrInvalidPayload, err)
		}
		return v, nil
	}
}

func strictUnmarshal(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
