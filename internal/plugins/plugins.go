// Package plugins installs the components compiled into the binary.
package plugins

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/component"
	"github.com/mattjoyce/plugbus/internal/plugins/base"
	"github.com/mattjoyce/plugbus/internal/plugins/statistics"
	"github.com/mattjoyce/plugbus/internal/plugins/stripe"
	"github.com/mattjoyce/plugbus/internal/plugins/ticketoutputpdf"
	"github.com/mattjoyce/plugbus/internal/plugins/timerestriction"
)

// Plugin is a built-in component: it declares itself and subscribes its
// handlers to channels.
type Plugin interface {
	Component() component.Component
	Register(channels *channel.Registry) error
}

// Deps are the host services built-in plugins may use.
type Deps struct {
	DB     *sql.DB
	Caches func(tenantID string) catalog.Cache
	Now    func() time.Time
}

// Builtins returns every built-in plugin, core first.
func Builtins(d Deps) []Plugin {
	if d.Now == nil {
		d.Now = time.Now
	}
	return []Plugin{
		base.New(),
		timerestriction.New(timerestriction.NewStore(d.DB), d.Now),
		stripe.New(),
		ticketoutputpdf.New(),
		statistics.New(d.Caches),
	}
}

// Install registers each plugin's component and then its handlers. Plugins
// that do not declare a source are recorded as built-in.
func Install(components *component.Registry, channels *channel.Registry, ps ...Plugin) error {
	for _, p := range ps {
		c := p.Component()
		if c.Source == "" {
			c.Source = component.SourceBuiltin
		}
		if err := components.Register(c); err != nil {
			return fmt.Errorf("install %s: %w", c.ID, err)
		}
		if err := p.Register(channels); err != nil {
			return fmt.Errorf("install %s: %w", c.ID, err)
		}
	}
	return nil
}
