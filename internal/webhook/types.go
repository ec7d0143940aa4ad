package webhook

import (
	"context"
	"encoding/json"

	"github.com/mattjoyce/plugbus/internal/dispatch"
)

// Sender dispatches a verified webhook body.
type Sender interface {
	SendJSON(ctx context.Context, channelName, tenantID string, payload json.RawMessage) (dispatch.Result, error)
}

// Config holds webhook server configuration.
type Config struct {
	Listen    string
	Endpoints []EndpointConfig
}

// EndpointConfig defines a single webhook endpoint.
type EndpointConfig struct {
	Path    string
	Tenant  string
	Channel string
	Secret  string
	// SignatureHeader names the header carrying the HMAC signature, e.g. "X-Signature".
	SignatureHeader string
	MaxBodySize     int64
}

// DispatchResponse is the JSON response for an accepted webhook.
type DispatchResponse struct {
	Channel  string   `json:"channel"`
	Tenant   string   `json:"tenant"`
	Handlers []string `json:"handlers"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DefaultMaxBodySize applies when an endpoint sets no limit.
const DefaultMaxBodySize = 1048576 // 1 MB
