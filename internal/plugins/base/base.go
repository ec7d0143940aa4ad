// Package base is the core component. Its handlers run for every tenant.
package base

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/component"
	"github.com/mattjoyce/plugbus/internal/log"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

const ID = "plugbus.base"

type Plugin struct {
	logger *slog.Logger
}

func New() *Plugin {
	return &Plugin{logger: log.WithComponent(ID)}
}

func (p *Plugin) Component() component.Component {
	return component.Component{
		ID:          ID,
		Name:        "Platform core",
		Version:     "1.0.0",
		Description: "Built-in payment provider, exporter and order audit log.",
		Core:        true,
	}
}

func (p *Plugin) Register(channels *channel.Registry) error {
	origin := ID + ".signals"
	regs := []struct {
		channel string
		cb      channel.Callback
	}{
		{catalog.RegisterPaymentProviders, p.paymentProviders},
		{catalog.RegisterDataExporters, p.exporters},
		{catalog.OrderPlaced, p.orderAudit},
		{catalog.OrderPaid, p.orderAudit},
	}
	for _, r := range regs {
		if err := channels.Register(r.channel, origin, r.cb); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) paymentProviders(context.Context, *channel.Channel, *tenant.Context, any) (any, error) {
	return catalog.PaymentProvider{Identifier: "free", VerboseName: "Free of charge"}, nil
}

func (p *Plugin) exporters(context.Context, *channel.Channel, *tenant.Context, any) (any, error) {
	return catalog.Exporter{Identifier: "json", VerboseName: "Order data (JSON)", Format: "json"}, nil
}

func (p *Plugin) orderAudit(_ context.Context, ch *channel.Channel, tc *tenant.Context, payload any) (any, error) {
	ev, ok := payload.(catalog.OrderEvent)
	if !ok {
		p.logger.Warn("order event with unexpected payload", "channel", ch.Name, "tenant_id", tc.ID, "payload_type", fmt.Sprintf("%T", payload))
		return nil, nil
	}
	p.logger.Info("order event", "channel", ch.Name, "tenant_id", tc.ID, "order", ev.Order.Code, "status", ev.Order.Status)
	return nil, nil
}
