// Package doctor validates plugbus configuration against the installed components.
package doctor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/component"
	"github.com/mattjoyce/plugbus/internal/config"
	"github.com/mattjoyce/plugbus/internal/ownership"
	"github.com/mattjoyce/plugbus/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against the component and channel registries.
type Doctor struct {
	cfg        *config.Config
	components *component.Registry
	channels   *channel.Registry
	resolver   *ownership.Resolver
	integrity  *config.IntegrityResult

	checkStatePath func(path string) error
}

// New creates a Doctor over a loaded config and populated registries.
func New(cfg *config.Config, components *component.Registry, channels *channel.Registry, resolver *ownership.Resolver) *Doctor {
	return &Doctor{
		cfg:            cfg,
		components:     components,
		channels:       channels,
		resolver:       resolver,
		checkStatePath: storage.CheckStatePath,
	}
}

// WithIntegrity folds a checksum verification result into the report.
func (d *Doctor) WithIntegrity(r *config.IntegrityResult) *Doctor {
	d.integrity = r
	return d
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateAPIConfig(r)
	d.validateTenantRefs(r)
	d.validateWebhookRefs(r)
	d.warnCompatibility(r)
	d.warnUnownedHandlers(r)
	d.warnUnusedComponents(r)
	d.reportIntegrity(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	if d.cfg.PluginsDir == "" {
		d.addError(r, "service", "plugins_dir", "plugins_dir is required")
	}
	if d.cfg.State.Path == "" {
		d.addError(r, "service", "state.path", "state.path is required")
	} else if err := d.checkStatePath(d.cfg.State.Path); err != nil {
		d.addError(r, "service", "state.path", err.Error())
	}
	if d.cfg.Platform.Version == "" {
		d.addError(r, "service", "platform.version", "platform.version is required")
	}
}

func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured")
	}
}

// validateTenantRefs checks that tenant component lists name installed components.
func (d *Doctor) validateTenantRefs(r *Result) {
	for _, id := range sortedKeys(d.cfg.Tenants) {
		for i, cid := range d.cfg.Tenants[id].Components {
			field := fmt.Sprintf("tenants.%s.components[%d]", id, i)
			c, ok := d.components.Lookup(cid)
			switch {
			case !ok:
				d.addError(r, "tenant_refs", field,
					fmt.Sprintf("tenant %q enables component %q which is not installed", id, cid))
			case c.Core:
				d.addWarning(r, "tenant_refs", field,
					fmt.Sprintf("component %q is core; enabling it for tenant %q has no effect", cid, id))
			case !c.Compatible():
				d.addWarning(r, "tenant_refs", field,
					fmt.Sprintf("tenant %q enables incompatible component %q; it will not receive dispatch", id, cid))
			}
		}
	}
}

// validateWebhookRefs checks that webhook endpoints point at something that can answer.
func (d *Doctor) validateWebhookRefs(r *Result) {
	if d.cfg.Webhooks == nil {
		return
	}
	for i, ep := range d.cfg.Webhooks.Endpoints {
		field := fmt.Sprintf("webhooks.endpoints[%d]", i)
		ch, ok := d.channels.Lookup(ep.Channel)
		switch {
		case !ok:
			d.addError(r, "webhooks", field+".channel",
				fmt.Sprintf("endpoint %q targets undefined channel %q", ep.Path, ep.Channel))
		case ch.Len() == 0:
			d.addWarning(r, "webhooks", field+".channel",
				fmt.Sprintf("endpoint %q targets channel %q which has no handlers", ep.Path, ep.Channel))
		}
		if _, ok := d.cfg.Tenants[ep.Tenant]; !ok {
			d.addWarning(r, "webhooks", field+".tenant",
				fmt.Sprintf("endpoint %q dispatches for tenant %q which is not declared in config", ep.Path, ep.Tenant))
		}
	}
}

func (d *Doctor) warnCompatibility(r *Result) {
	for _, c := range d.components.All() {
		for _, msg := range c.CompatibilityErrors {
			d.addWarning(r, "compatibility", c.ID, msg)
		}
	}
}

// warnUnownedHandlers flags handlers whose origin no installed component encloses.
func (d *Doctor) warnUnownedHandlers(r *Result) {
	for _, ch := range d.channels.Channels() {
		for _, h := range ch.Handlers() {
			if _, ok := d.resolver.OwnerOf(h.Origin); !ok {
				d.addWarning(r, "ownership", ch.Name,
					fmt.Sprintf("handler %q (origin %q) has no owning component and is never invoked", h.ID, h.Origin))
			}
		}
	}
}

// warnUnusedComponents warns about optional components no configured tenant enables.
func (d *Doctor) warnUnusedComponents(r *Result) {
	used := make(map[string]bool)
	for _, t := range d.cfg.Tenants {
		for _, cid := range t.Components {
			used[cid] = true
		}
	}
	for _, c := range d.components.All() {
		if c.Core || used[c.ID] {
			continue
		}
		d.addWarning(r, "unused", c.ID,
			fmt.Sprintf("optional component %q is not enabled for any configured tenant", c.ID))
	}
}

func (d *Doctor) reportIntegrity(r *Result) {
	if d.integrity == nil {
		return
	}
	for _, msg := range d.integrity.Errors {
		d.addError(r, "integrity", "", msg)
	}
	for _, msg := range d.integrity.Warnings {
		d.addWarning(r, "integrity", "", msg)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}
	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
