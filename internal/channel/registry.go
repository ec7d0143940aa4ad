package channel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrEmptyOrigin = errors.New("handler origin is empty")
	ErrNilCallback = errors.New("handler callback is nil")
)

// Registry maps channel names to channels.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// Define returns the channel called name, creating it if needed. Options
// are applied only when the channel is created.
func (r *Registry) Define(name string, opts ...DefineOption) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[name]; ok {
		return ch
	}
	ch := &Channel{Name: name}
	for _, opt := range opts {
		opt(ch)
	}
	r.channels[name] = ch
	return ch
}

// Lookup returns a defined channel.
func (r *Registry) Lookup(name string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// RegisterHandler appends h to ch. Handlers are never reordered or deduplicated.
func (r *Registry) RegisterHandler(ch *Channel, h Handler) error {
	if ch == nil {
		return fmt.Errorf("register handler: channel is nil")
	}
	if strings.TrimSpace(h.Origin) == "" {
		return fmt.Errorf("register handler on %s: %w", ch.Name, ErrEmptyOrigin)
	}
	if h.Callback == nil {
		return fmt.Errorf("register handler %s on %s: %w", h.Origin, ch.Name, ErrNilCallback)
	}
	if h.ID == "" {
		h.ID = h.Origin
	}
	ch.append(h)
	return nil
}

// HandlersOf returns the handlers of the named channel in registration order.
// An undefined channel has no handlers.
func (r *Registry) HandlersOf(name string) []Handler {
	ch, ok := r.Lookup(name)
	if !ok {
		return nil
	}
	return ch.Handlers()
}

// Register defines the channel if needed and subscribes cb from origin.
func (r *Registry) Register(name, origin string, cb Callback, opts ...HandlerOption) error {
	h := Handler{Origin: origin, Callback: cb}
	for _, opt := range opts {
		opt(&h)
	}
	return r.RegisterHandler(r.Define(name), h)
}

// Channels returns all defined channels sorted by name.
func (r *Registry) Channels() []*Channel {
	r.mu.RLock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefineOption configures a channel at definition time.
type DefineOption func(*Channel)

// WithDescription sets the channel description.
func WithDescription(desc string) DefineOption {
	return func(c *Channel) { c.Description = desc }
}

// WithPayloadFields documents the payload fields handlers receive.
func WithPayloadFields(fields ...string) DefineOption {
	return func(c *Channel) { c.PayloadFields = fields }
}

// HandlerOption configures a handler registered through Register.
type HandlerOption func(*Handler)

// WithID overrides the handler id reported in dispatch results.
func WithID(id string) HandlerOption {
	return func(h *Handler) { h.ID = id }
}
