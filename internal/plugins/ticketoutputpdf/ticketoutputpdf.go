// Package ticketoutputpdf contributes the PDF ticket output.
package ticketoutputpdf

import (
	"context"

	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/component"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

const ID = "plugbus.plugins.ticketoutputpdf"

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Component() component.Component {
	return component.Component{
		ID:          ID,
		Name:        "PDF ticket output",
		Version:     "1.0.0",
		Description: "Lets customers download their tickets as PDF.",
		MinPlatform: "1.0.0",
	}
}

func (p *Plugin) Register(channels *channel.Registry) error {
	return channels.Register(catalog.RegisterTicketOutputs, ID+".ticketoutput", p.output)
}

// Output is the descriptor this plugin contributes.
func Output() catalog.TicketOutput {
	return catalog.TicketOutput{
		Identifier:         "pdf",
		VerboseName:        "PDF output",
		DownloadButtonText: "Download PDF",
		DownloadButtonIcon: "fa-print",
		Settings: []catalog.SettingsField{
			{Name: "paper_size", Label: "Paper size"},
			{Name: "orientation", Label: "Paper orientation"},
			{Name: "background", Label: "Background PDF"},
		},
	}
}

func (p *Plugin) output(context.Context, *channel.Channel, *tenant.Context, any) (any, error) {
	return Output(), nil
}
