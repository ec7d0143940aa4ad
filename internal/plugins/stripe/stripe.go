// Package stripe contributes the Stripe credit card payment provider.
package stripe

import (
	"context"

	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/component"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

const ID = "plugbus.plugins.stripe"

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Component() component.Component {
	return component.Component{
		ID:          ID,
		Name:        "Stripe",
		Version:     "1.0.0",
		Description: "Accept credit card payments through Stripe.",
		MinPlatform: "1.0.0",
		Requires:    []string{"plugbus.base"},
	}
}

func (p *Plugin) Register(channels *channel.Registry) error {
	return channels.Register(catalog.RegisterPaymentProviders, ID+".signals", p.provider)
}

// Provider is the descriptor this plugin contributes.
func Provider() catalog.PaymentProvider {
	return catalog.PaymentProvider{
		Identifier:  "stripe",
		VerboseName: "Credit Card via Stripe",
		Settings: []catalog.SettingsField{
			{Name: "secret_key", Label: "Secret key", Required: true, Secret: true},
			{Name: "publishable_key", Label: "Publishable key", Required: true},
		},
	}
}

func (p *Plugin) provider(context.Context, *channel.Channel, *tenant.Context, any) (any, error) {
	return Provider(), nil
}
