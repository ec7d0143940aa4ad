// Package host assembles a running plugbus instance from configuration:
// storage, registries, built-in and script components, the compatibility
// pass, tenant seeding and the dispatch engine.
package host

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/component"
	"github.com/mattjoyce/plugbus/internal/config"
	"github.com/mattjoyce/plugbus/internal/dispatch"
	"github.com/mattjoyce/plugbus/internal/doctor"
	"github.com/mattjoyce/plugbus/internal/events"
	"github.com/mattjoyce/plugbus/internal/log"
	"github.com/mattjoyce/plugbus/internal/ownership"
	"github.com/mattjoyce/plugbus/internal/plugins"
	"github.com/mattjoyce/plugbus/internal/plugins/timerestriction"
	"github.com/mattjoyce/plugbus/internal/script"
	"github.com/mattjoyce/plugbus/internal/storage"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

// Host owns every long-lived service of a plugbus process.
type Host struct {
	Config       *config.Config
	DB           *sql.DB
	Components   *component.Registry
	Channels     *channel.Registry
	Resolver     *ownership.Resolver
	Tenants      *tenant.Store
	Restrictions *timerestriction.Store
	Events       *events.Hub
	Engine       *dispatch.Engine

	// Findings holds the compatibility errors recorded at startup, by component id.
	Findings map[string][]string

	scripts []*script.Component
	logger  *slog.Logger
}

// Open builds a Host. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config) (*Host, error) {
	logger := log.WithComponent("host")

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, err
	}

	h := &Host{
		Config:       cfg,
		DB:           db,
		Components:   component.NewRegistry(component.Strict()),
		Channels:     channel.NewRegistry(),
		Tenants:      tenant.NewStore(db),
		Restrictions: timerestriction.NewStore(db),
		Events:       events.NewHub(0),
		logger:       logger,
	}
	catalog.Define(h.Channels)

	if err := h.install(); err != nil {
		_ = h.Close()
		return nil, err
	}

	findings, err := component.ApplyCompatibility(h.Components, cfg.Platform.Version)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("compatibility pass: %w", err)
	}
	h.Findings = findings
	for _, id := range sortedIDs(findings) {
		logger.Warn("component incompatible; it will not receive dispatch", "component_id", id, "errors", findings[id])
	}

	if err := h.seedTenants(ctx); err != nil {
		_ = h.Close()
		return nil, err
	}

	h.Resolver = ownership.New(h.Components)
	h.Engine = dispatch.New(h.Channels, h.Resolver, h.Tenants,
		dispatch.WithRecorder(h.Events),
		dispatch.WithLogger(log.WithComponent("dispatch")),
	)

	logger.Info("host ready",
		"components", h.Components.Len(),
		"channels", len(h.Channels.Channels()),
		"scripts", len(h.scripts),
		"platform", cfg.Platform.Version,
	)
	return h, nil
}

// install registers built-in plugins, then script components found under
// plugins_dir. A script whose id collides with an installed component is skipped.
func (h *Host) install() error {
	builtins := plugins.Builtins(plugins.Deps{
		DB:     h.DB,
		Caches: h.cacheFor,
	})
	if err := plugins.Install(h.Components, h.Channels, builtins...); err != nil {
		return err
	}

	dir := h.Config.PluginsDir
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		h.logger.Info("plugins_dir not found; no script components loaded", "plugins_dir", dir)
		return nil
	}

	found, err := component.Discover(dir, h.logFunc)
	if err != nil {
		return fmt.Errorf("discover script components: %w", err)
	}
	for _, sc := range script.LoadAll(found) {
		id := sc.Component().ID
		if h.Components.Has(id) {
			h.logger.Warn("script component id already installed; skipping", "component_id", id)
			sc.Close()
			continue
		}
		if err := plugins.Install(h.Components, h.Channels, sc); err != nil {
			sc.Close()
			return err
		}
		h.scripts = append(h.scripts, sc)
	}
	return nil
}

func (h *Host) seedTenants(ctx context.Context) error {
	for _, id := range sortedIDs(h.Config.Tenants) {
		tc := h.Config.Tenants[id]
		t := tenant.Tenant{ID: id, Name: tc.Name}
		if err := h.Tenants.Seed(ctx, t, tc.Components); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) cacheFor(tenantID string) catalog.Cache {
	return storage.NewCache(h.DB, tenantID)
}

func (h *Host) logFunc(level, msg string, args ...any) {
	switch level {
	case "debug":
		h.logger.Debug(msg, args...)
	case "info":
		h.logger.Info(msg, args...)
	case "warn":
		h.logger.Warn(msg, args...)
	case "error":
		h.logger.Error(msg, args...)
	}
}

// Send dispatches payload on channelName for a stored tenant. Availability
// requests without a cache get the tenant's report cache.
func (h *Host) Send(ctx context.Context, channelName, tenantID string, payload any) (dispatch.Result, error) {
	t, err := h.Tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if req, ok := payload.(*catalog.AvailabilityRequest); ok && req.Cache == nil {
		req.Cache = h.cacheFor(t.ID)
	}
	return h.Engine.Send(ctx, channelName, t, payload)
}

// SendJSON decodes raw for channelName and dispatches it.
func (h *Host) SendJSON(ctx context.Context, channelName, tenantID string, raw json.RawMessage) (dispatch.Result, error) {
	payload, err := catalog.DecodePayload(channelName, raw)
	if err != nil {
		return nil, err
	}
	return h.Send(ctx, channelName, tenantID, payload)
}

// Doctor returns a validator over this host's configuration and registries.
func (h *Host) Doctor() *doctor.Doctor {
	return doctor.New(h.Config, h.Components, h.Channels, h.Resolver)
}

// Close releases script states and the database.
func (h *Host) Close() error {
	for _, sc := range h.scripts {
		sc.Close()
	}
	h.scripts = nil
	if h.DB == nil {
		return nil
	}
	err := h.DB.Close()
	h.DB = nil
	return err
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
