// Package channel holds the named extension points components subscribe to
// and the ordered handler lists attached to them.
package channel

import (
	"context"
	"slices"
	"sync"

	"github.com/mattjoyce/plugbus/internal/tenant"
)

// Callback is a handler body. The returned value is collected into the
// dispatch result; a non-nil error aborts the dispatch.
type Callback func(ctx context.Context, ch *Channel, tc *tenant.Context, payload any) (any, error)

// Handler is one subscription to a channel.
type Handler struct {
	// ID names the handler in dispatch results. Defaults to Origin.
	ID string
	// Origin is the dot-delimited path used to find the owning component.
	Origin   string
	Callback Callback
}

// Channel is a named extension point.
type Channel struct {
	Name          string
	Description   string
	PayloadFields []string

	mu       sync.RWMutex
	handlers []Handler
}

// Handlers returns the channel's handlers in registration order. The returned
// slice must not be modified.
func (c *Channel) Handlers() []Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clip(c.handlers)
}

// Len returns the number of registered handlers.
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

func (c *Channel) append(h Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}
