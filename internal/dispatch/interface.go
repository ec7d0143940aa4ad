package dispatch

import "context"

//go:generate mockgen -destination=mocks/mock_dispatch.go -package=mocks github.com/mattjoyce/plugbus/internal/dispatch TenantProvider,Recorder

// TenantProvider returns the optional components a tenant has enabled.
type TenantProvider interface {
	EnabledComponents(ctx context.Context, tenantID string) ([]string, error)
}

// Recorder receives audit events for completed and failed sends.
type Recorder interface {
	Publish(eventType string, data any)
}
