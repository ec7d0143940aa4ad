// Package catalog documents the channels the platform exposes to components:
// their names, the payload each carries and the shape of handler responses.
//
// Payload shapes are a convention between the sender and the handlers; the
// dispatch engine does not check them. The helpers in this package aggregate
// responses the way each channel's contract describes.
package catalog

import (
	"context"
	"time"

	"github.com/mattjoyce/plugbus/internal/channel"
)

// Channel names.
const (
	AvailabilityCheck        = "availability-check"
	RegisterPaymentProviders = "register-payment-providers"
	RegisterTicketOutputs    = "register-ticket-outputs"
	RegisterDataExporters    = "register-data-exporters"
	OrderPlaced              = "order-placed"
	OrderPaid                = "order-paid"
)

type channelDef struct {
	name        string
	description string
	fields      []string
}

var channelDefs = []channelDef{
	{AvailabilityCheck, "All handlers must agree for an item or variation to be available.", []string{"item", "variations", "context", "cache"}},
	{RegisterPaymentProviders, "Handlers return payment provider descriptors.", nil},
	{RegisterTicketOutputs, "Handlers return ticket output descriptors.", nil},
	{RegisterDataExporters, "Handlers return data exporter descriptors.", nil},
	{OrderPlaced, "Notification sent after an order is placed.", []string{"order"}},
	{OrderPaid, "Notification sent after an order is marked paid.", []string{"order"}},
}

// Define defines every catalog channel on reg.
func Define(reg *channel.Registry) {
	for _, s := range channelDefs {
		reg.Define(s.name,
			channel.WithDescription(s.description),
			channel.WithPayloadFields(s.fields...),
		)
	}
}

// Names returns the catalog channel names in catalog order.
func Names() []string {
	out := make([]string, len(channelDefs))
	for i, s := range channelDefs {
		out[i] = s.name
	}
	return out
}

// Cache memoizes derived values for one tenant. Handlers receive it in the
// availability-check payload and use it to invalidate reports on order events.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
