package ownership

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/plugbus/internal/component"
)

// countingRegistry wraps a component registry and counts membership probes.
type countingRegistry struct {
	*component.Registry
	probes atomic.Int64
}

func (c *countingRegistry) Has(id string) bool {
	c.probes.Add(1)
	return c.Registry.Has(id)
}

func newRegistry(t *testing.T, comps ...component.Component) *countingRegistry {
	t.Helper()
	reg := component.NewRegistry()
	for _, c := range comps {
		require.NoError(t, reg.Register(c))
	}
	return &countingRegistry{Registry: reg}
}

func TestResolveNearestEnclosingComponent(t *testing.T) {
	reg := newRegistry(t,
		component.Component{ID: "plugbus"},
		component.Component{ID: "plugbus.base", Core: true},
		component.Component{ID: "plugbus.plugins.stripe"},
	)
	r := New(reg)

	tests := []struct {
		origin string
		want   string
		found  bool
	}{
		{"plugbus.plugins.stripe.signals", "plugbus.plugins.stripe", true},
		{"plugbus.plugins.stripe", "plugbus.plugins.stripe", true},
		{"plugbus.base.handlers.orders", "plugbus.base", true},
		{"plugbus.plugins.unknown.signals", "plugbus", true},
		{"plugbus", "plugbus", true},
		{"other.module", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			c, ok := r.Resolve(tt.origin)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, c.ID)
		})
	}
}

func TestResolveSegmentBoundaries(t *testing.T) {
	reg := newRegistry(t, component.Component{ID: "pdf"})
	r := New(reg)

	_, ok := r.Resolve("pdfPlugin.y")
	assert.False(t, ok, "prefix matching must respect segment boundaries")

	c, ok := r.Resolve("pdf.y")
	require.True(t, ok)
	assert.Equal(t, "pdf", c.ID)
}

func TestResolveMemoizesWalk(t *testing.T) {
	reg := newRegistry(t, component.Component{ID: "pdfPlugin"})
	r := New(reg)

	first, ok := r.Resolve("pdfPlugin.output.y")
	require.True(t, ok)
	walks := r.Stats().Walks
	probes := reg.probes.Load()
	assert.Equal(t, uint64(1), walks)

	second, ok := r.Resolve("pdfPlugin.output.y")
	require.True(t, ok)
	assert.Equal(t, first, second)

	stats := r.Stats()
	assert.Equal(t, walks, stats.Walks, "second resolution must not walk")
	assert.Equal(t, probes, reg.probes.Load(), "second resolution must not probe the registry")
	assert.Equal(t, uint64(2), stats.Resolutions)
	assert.Equal(t, uint64(1), stats.CacheHits)
	assert.Equal(t, 1, stats.Cached)
}

func TestResolveMemoizesMissingOwner(t *testing.T) {
	reg := newRegistry(t)
	r := New(reg)

	_, ok := r.Resolve("nobody.home")
	assert.False(t, ok)
	_, ok = r.Resolve("nobody.home")
	assert.False(t, ok)

	assert.Equal(t, uint64(1), r.Stats().Walks)
}

func TestResolveReflectsCompatibilityErrors(t *testing.T) {
	reg := newRegistry(t, component.Component{ID: "pdf"})
	r := New(reg)

	c, ok := r.Resolve("pdf.signals")
	require.True(t, ok)
	assert.True(t, c.Compatible())

	require.NoError(t, reg.SetCompatibilityErrors("pdf", []string{"too old"}))
	c, ok = r.Resolve("pdf.signals")
	require.True(t, ok)
	assert.False(t, c.Compatible())
}

func TestResolveConcurrentFirstResolution(t *testing.T) {
	reg := newRegistry(t, component.Component{ID: "plugbus.plugins.stats"})
	r := New(reg)

	const workers = 32
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]string, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			id, _ := r.OwnerOf("plugbus.plugins.stats.signals")
			results[i] = id
		}()
	}
	close(start)
	wg.Wait()

	for _, id := range results {
		assert.Equal(t, "plugbus.plugins.stats", id)
	}
	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Walks)
	assert.Equal(t, uint64(workers), stats.Resolutions)
}

func TestOwnerReportsEligibilityWithoutAllocating(t *testing.T) {
	reg := newRegistry(t,
		component.Component{ID: "plugbus.base", Core: true},
		component.Component{ID: "plugbus.plugins.stats", Requires: []string{"plugbus.base"}},
	)
	require.NoError(t, reg.SetCompatibilityErrors("plugbus.plugins.stats", []string{"requires platform >= 9.0.0"}))
	r := New(reg)

	owner, ok := r.Owner("plugbus.plugins.stats.signals")
	require.True(t, ok)
	assert.Equal(t, component.Status{ID: "plugbus.plugins.stats", Core: false, Compatible: false}, owner)

	owner, ok = r.Owner("plugbus.base.signals")
	require.True(t, ok)
	assert.True(t, owner.Core)
	assert.True(t, owner.Compatible)

	_, ok = r.Owner("elsewhere.signals")
	assert.False(t, ok)

	allocs := testing.AllocsPerRun(100, func() {
		_, _ = r.Owner("plugbus.plugins.stats.signals")
	})
	assert.Zero(t, allocs, "a memoized owner lookup must not copy the component")
}
