// Package statistics keeps a tenant's cached order reports fresh and
// contributes the order statistics exporter.
package statistics

import (
	"context"
	"fmt"

	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/component"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

const ID = "plugbus.plugins.statistics"

// Report cache keys: orders by day, orders by product, revenue.
const (
	KeyOrdersByDay     = "statistics_obd_data"
	KeyOrdersByProduct = "statistics_obp_data"
	KeyRevenue         = "statistics_rev_data"
)

// CacheKeys lists every report this plugin caches.
var CacheKeys = []string{KeyOrdersByDay, KeyOrdersByProduct, KeyRevenue}

type Plugin struct {
	caches func(tenantID string) catalog.Cache
}

func New(caches func(tenantID string) catalog.Cache) *Plugin {
	return &Plugin{caches: caches}
}

func (p *Plugin) Component() component.Component {
	return component.Component{
		ID:          ID,
		Name:        "Statistics",
		Version:     "1.0.0",
		Description: "Order and revenue reports.",
		MinPlatform: "1.0.0",
		Requires:    []string{"plugbus.base"},
	}
}

func (p *Plugin) Register(channels *channel.Registry) error {
	signals := ID + ".signals"
	if err := channels.Register(catalog.OrderPlaced, signals, p.clearCache); err != nil {
		return err
	}
	if err := channels.Register(catalog.OrderPaid, signals, p.clearCache); err != nil {
		return err
	}
	return channels.Register(catalog.RegisterDataExporters, ID+".exporters", p.exporter)
}

// clearCache drops the tenant's cached reports so the next view recomputes them.
func (p *Plugin) clearCache(ctx context.Context, _ *channel.Channel, tc *tenant.Context, _ any) (any, error) {
	if p.caches == nil {
		return nil, nil
	}
	if err := p.caches(tc.ID).Delete(ctx, CacheKeys...); err != nil {
		return nil, fmt.Errorf("statistics: clear report cache: %w", err)
	}
	return nil, nil
}

func (p *Plugin) exporter(context.Context, *channel.Channel, *tenant.Context, any) (any, error) {
	return catalog.Exporter{Identifier: "orderstats", VerboseName: "Order statistics", Format: "csv"}, nil
}
