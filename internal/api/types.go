package api

import (
	"encoding/json"
	"time"

	"github.com/mattjoyce/plugbus/internal/events"
)

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	ComponentsLoaded int    `json:"components_loaded"`
	Channels         int    `json:"channels"`
	EventsDropped    uint64 `json:"events_dropped"`

	Dispatch *DispatchStats `json:"dispatch,omitempty"`
}

// DispatchStats reports engine and ownership resolver counters.
type DispatchStats struct {
	Sends            uint64 `json:"sends"`
	FastPath         uint64 `json:"fast_path"`
	Invoked          uint64 `json:"invoked"`
	Skipped          uint64 `json:"skipped"`
	Failed           uint64 `json:"failed"`
	OwnerResolutions uint64 `json:"owner_resolutions"`
	OwnerCacheHits   uint64 `json:"owner_cache_hits"`
	OwnerWalks       uint64 `json:"owner_walks"`
	OwnersCached     int    `json:"owners_cached"`
}

// ComponentResponse describes one installed component.
type ComponentResponse struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name,omitempty"`
	Version             string   `json:"version,omitempty"`
	Source              string   `json:"source"`
	Core                bool     `json:"core"`
	Compatible          bool     `json:"compatible"`
	CompatibilityErrors []string `json:"compatibility_errors,omitempty"`
}

// HandlerResponse describes one registered handler.
type HandlerResponse struct {
	ID     string `json:"id"`
	Origin string `json:"origin"`
	Owner  string `json:"owner,omitempty"`
}

// ChannelResponse describes one channel and its handlers in registration order.
type ChannelResponse struct {
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	PayloadFields []string          `json:"payload_fields,omitempty"`
	Handlers      []HandlerResponse `json:"handlers"`
}

// TenantResponse is returned by the tenant endpoints.
type TenantResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Components []string `json:"components"`
}

// PutTenantRequest is the JSON body for PUT /tenants/{id}.
type PutTenantRequest struct {
	Name string `json:"name"`
}

// SendResponse is returned by POST /tenants/{id}/channels/{channel}.
type SendResponse struct {
	Channel   string            `json:"channel"`
	Tenant    string            `json:"tenant"`
	Handlers  []string          `json:"handlers"`
	Responses []json.RawMessage `json:"responses"`
	// Result is the channel's aggregate: availability verdicts or collected descriptors.
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RestrictionRequest is the JSON body for POST /tenants/{id}/restrictions.
type RestrictionRequest struct {
	Item       string    `json:"item"`
	From       time.Time `json:"from"`
	Until      time.Time `json:"until"`
	Price      *int64    `json:"price,omitempty"`
	Variations []string  `json:"variations,omitempty"`
}

// EventsResponse is returned by GET /events.
type EventsResponse struct {
	Events  []events.Event `json:"events"`
	Dropped uint64         `json:"dropped"`
}
