// Package script loads optional components written in Lua.
//
// A script component is a directory holding a manifest.yaml and a Lua
// entrypoint. Each handler declared in the manifest names a channel and a
// global Lua function. The function is called as
//
//	fn(channel, tenant, payload)
//
// where channel is the channel name, tenant is a table with id, name and the
// list of enabled components, and payload is the send payload in its JSON
// form. The first return value becomes the handler response; calling error()
// fails the send.
//
// Scripts run with the base, table, string and math libraries only. A global
// plugbus table provides debug, info, warn and error log functions.
package script

import (
	"context"
	"fmt"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/component"
	"github.com/mattjoyce/plugbus/internal/log"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

// Component is a loaded script component.
type Component struct {
	discovered *component.Discovered
	state      *state
	logger     *slog.Logger
}

// Load runs the entrypoint of d and checks that every declared handler
// function exists.
func Load(d *component.Discovered) (*Component, error) {
	logger := log.WithComponent("script").With("component_id", d.Manifest.ID)
	st := newState(logger)
	if err := st.doFile(d.Entrypoint); err != nil {
		st.close()
		return nil, fmt.Errorf("load script %s: %w", d.Manifest.ID, err)
	}
	for _, h := range d.Manifest.Handlers {
		if !st.hasFunction(h.Function) {
			st.close()
			return nil, fmt.Errorf("load script %s: handler function %q for channel %s is not defined", d.Manifest.ID, h.Function, h.Channel)
		}
	}
	return &Component{discovered: d, state: st, logger: logger}, nil
}

// LoadAll loads every discovered script component. Scripts that fail to load
// are logged and skipped.
func LoadAll(found []*component.Discovered) []*Component {
	logger := log.WithComponent("script")
	out := make([]*Component, 0, len(found))
	for _, d := range found {
		c, err := Load(d)
		if err != nil {
			logger.Warn("skipping script component", "component_id", d.Manifest.ID, "path", d.Path, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out
}

// Component describes the script as a registry entry.
func (c *Component) Component() component.Component {
	return c.discovered.Component()
}

// Register subscribes each declared handler. Handler origins live under the
// component id, so they resolve to this component.
func (c *Component) Register(channels *channel.Registry) error {
	id := c.discovered.Manifest.ID
	for _, h := range c.discovered.Manifest.Handlers {
		var opts []channel.HandlerOption
		if h.ID != "" {
			opts = append(opts, channel.WithID(h.ID))
		}
		origin := id + ".script." + h.Function
		if err := channels.Register(h.Channel, origin, c.callback(h.Function), opts...); err != nil {
			return fmt.Errorf("register %s: %w", origin, err)
		}
	}
	return nil
}

func (c *Component) callback(fn string) channel.Callback {
	return func(ctx context.Context, ch *channel.Channel, tc *tenant.Context, payload any) (any, error) {
		out, err := c.state.call(ctx, fn, func(L *lua.LState) ([]lua.LValue, error) {
			p, err := toLua(L, payload)
			if err != nil {
				return nil, err
			}
			return []lua.LValue{
				lua.LString(ch.Name),
				tenantTable(L, tc.ID, tc.Name, tc.EnabledComponents()),
				p,
			}, nil
		})
		if err != nil {
			return nil, fmt.Errorf("script %s: %s: %w", c.discovered.Manifest.ID, fn, err)
		}
		resp, err := coerce(ch.Name, out)
		if err != nil {
			return nil, fmt.Errorf("script %s: %s: %w", c.discovered.Manifest.ID, fn, err)
		}
		return resp, nil
	}
}

// Close releases the Lua state.
func (c *Component) Close() {
	c.state.close()
}
