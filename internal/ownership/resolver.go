// Package ownership maps a handler's declared origin to the component that owns it.
//
// An origin is a dot-delimited path such as "plugbus.plugins.stripe.signals".
// The owner is the most specific registered component id that is a prefix of
// the origin on segment boundaries: the full path is checked first, then the
// last segment is stripped until a registered id is found or the path is
// exhausted.
//
// Origins are static, so each distinct origin is walked once and the outcome
// (owner id or no owner) is memoized for the life of the Resolver. Concurrent
// first-time resolutions of one origin share a single walk.
package ownership

import (
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/mattjoyce/plugbus/internal/component"
)

// Registry is the read side of the component registry used by the resolver.
type Registry interface {
	Lookup(id string) (component.Component, bool)
	Status(id string) (component.Status, bool)
	Has(id string) bool
}

// Resolver resolves origins to owning components with a memoized walk.
type Resolver struct {
	registry Registry

	mu    sync.RWMutex
	cache map[string]string // origin -> owner id ("" = no owner)
	group singleflight.Group

	resolutions atomic.Uint64
	hits        atomic.Uint64
	walks       atomic.Uint64
}

// Stats reports resolver activity.
type Stats struct {
	Resolutions uint64 // calls to Resolve/OwnerOf
	CacheHits   uint64 // resolutions served from the cache
	Walks       uint64 // prefix walks performed
	Cached      int    // distinct origins cached
}

// New creates a Resolver over the given component registry.
func New(registry Registry) *Resolver {
	return &Resolver{
		registry: registry,
		cache:    make(map[string]string),
	}
}

// Resolve returns the component that owns origin. The second return value is
// false when no registered component encloses the origin.
func (r *Resolver) Resolve(origin string) (component.Component, bool) {
	id, ok := r.OwnerOf(origin)
	if !ok {
		return component.Component{}, false
	}
	return r.registry.Lookup(id)
}

// Owner returns the eligibility flags of the component that owns origin.
// Unlike Resolve it does not copy the component.
func (r *Resolver) Owner(origin string) (component.Status, bool) {
	id, ok := r.OwnerOf(origin)
	if !ok {
		return component.Status{}, false
	}
	return r.registry.Status(id)
}

// OwnerOf returns the id of the component that owns origin.
func (r *Resolver) OwnerOf(origin string) (string, bool) {
	r.resolutions.Add(1)

	r.mu.RLock()
	id, cached := r.cache[origin]
	r.mu.RUnlock()
	if cached {
		r.hits.Add(1)
		return id, id != ""
	}

	v, _, _ := r.group.Do(origin, func() (any, error) {
		// Another caller may have stored the result between our read and Do.
		r.mu.RLock()
		id, cached := r.cache[origin]
		r.mu.RUnlock()
		if cached {
			return id, nil
		}

		owner := r.walk(origin)

		r.mu.Lock()
		if existing, ok := r.cache[origin]; ok {
			owner = existing
		} else {
			r.cache[origin] = owner
		}
		r.mu.Unlock()
		return owner, nil
	})

	id = v.(string)
	return id, id != ""
}

// walk strips segments from the end of origin until a registered id remains.
func (r *Resolver) walk(origin string) string {
	r.walks.Add(1)

	path := strings.TrimSpace(origin)
	for path != "" {
		if r.registry.Has(path) {
			return path
		}
		i := strings.LastIndexByte(path, '.')
		if i < 0 {
			break
		}
		path = path[:i]
	}
	return ""
}

// Stats returns a snapshot of resolver counters.
func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	cached := len(r.cache)
	r.mu.RUnlock()

	return Stats{
		Resolutions: r.resolutions.Load(),
		CacheHits:   r.hits.Load(),
		Walks:       r.walks.Load(),
		Cached:      cached,
	}
}
