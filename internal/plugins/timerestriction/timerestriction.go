// Package timerestriction makes items and variations available only inside
// configured timeframes, optionally at a different price.
package timerestriction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/component"
	"github.com/mattjoyce/plugbus/internal/log"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

const ID = "plugbus.plugins.timerestriction"

// defaultValidity is the cache lifetime when no timeframe boundary lies ahead.
const defaultValidity = time.Hour

type Plugin struct {
	store  *Store
	now    func() time.Time
	logger *slog.Logger
}

func New(store *Store, now func() time.Time) *Plugin {
	if now == nil {
		now = time.Now
	}
	return &Plugin{store: store, now: now, logger: log.WithComponent(ID)}
}

func (p *Plugin) Component() component.Component {
	return component.Component{
		ID:          ID,
		Name:        "Restriction by time",
		Version:     "1.0.0",
		Description: "Sell items only inside configured timeframes.",
		MinPlatform: "1.0.0",
	}
}

func (p *Plugin) Register(channels *channel.Registry) error {
	return channels.Register(catalog.AvailabilityCheck, ID+".signals", p.availability)
}

// cached is the cache entry for one variation.
type cached struct {
	Available bool   `json:"available"`
	Price     *int64 `json:"price,omitempty"`
}

func (p *Plugin) availability(ctx context.Context, _ *channel.Channel, tc *tenant.Context, payload any) (any, error) {
	var req catalog.AvailabilityRequest
	switch v := payload.(type) {
	case catalog.AvailabilityRequest:
		req = v
	case *catalog.AvailabilityRequest:
		req = *v
	default:
		return nil, fmt.Errorf("timerestriction: unexpected payload %T", payload)
	}

	restrictions, err := p.store.ForItem(ctx, tc.ID, req.Item.ID)
	if err != nil {
		return nil, fmt.Errorf("timerestriction: %w", err)
	}
	if len(restrictions) == 0 {
		// No verdict: the caller's variations carry no availability of their own.
		return nil, nil
	}

	now := p.now()
	validity := cacheValidity(restrictions, now)
	vars := slices.Clone(req.Variations)

	for i := range vars {
		v := &vars[i]

		var applicable []Restriction
		for _, r := range restrictions {
			if r.appliesTo(v.ID) {
				applicable = append(applicable, r)
			}
		}
		if len(applicable) == 0 {
			v.Available = true
			v.Price = nil
			continue
		}

		key := fmt.Sprintf("timerestriction:%s:%s", req.Item.ID, v.ID)
		if hit, ok := p.recall(ctx, req.Cache, key); ok {
			v.Available, v.Price = hit.Available, hit.Price
			continue
		}

		entry := cached{}
		for _, r := range applicable {
			if !r.active(now) {
				continue
			}
			entry.Available = true
			if r.Price != nil && (entry.Price == nil || *r.Price < *entry.Price) {
				price := *r.Price
				entry.Price = &price
			}
		}
		v.Available, v.Price = entry.Available, entry.Price
		p.remember(ctx, req.Cache, key, entry, validity)
	}
	return vars, nil
}

func (p *Plugin) recall(ctx context.Context, cache catalog.Cache, key string) (cached, bool) {
	if cache == nil {
		return cached{}, false
	}
	raw, ok, err := cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("cache read failed", "key", key, "error", err)
		return cached{}, false
	}
	if !ok {
		return cached{}, false
	}
	var entry cached
	if err := json.Unmarshal(raw, &entry); err != nil {
		p.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return cached{}, false
	}
	return entry, true
}

func (p *Plugin) remember(ctx context.Context, cache catalog.Cache, key string, entry cached, ttl time.Duration) {
	if cache == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := cache.Set(ctx, key, raw, ttl); err != nil {
		p.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// cacheValidity is the time until the next start or end of any restriction.
func cacheValidity(restrictions []Restriction, now time.Time) time.Duration {
	next := time.Duration(-1)
	for _, r := range restrictions {
		for _, boundary := range []time.Time{r.From, r.Until} {
			if boundary.Before(now) {
				continue
			}
			if d := boundary.Sub(now); next < 0 || d < next {
				next = d
			}
		}
	}
	if next < 0 {
		return defaultValidity
	}
	return next
}
