package tenant

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/plugbus/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestStoreEnableDisableRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, Tenant{ID: "shop-a", Name: "Shop A"}))

	enabled, err := s.EnabledComponents(ctx, "shop-a")
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, s.Enable(ctx, "shop-a", "plugbus.plugins.stripe"))
	require.NoError(t, s.Enable(ctx, "shop-a", "plugbus.plugins.stripe"))
	require.NoError(t, s.Enable(ctx, "shop-a", "plugbus.plugins.statistics"))

	enabled, err = s.EnabledComponents(ctx, "shop-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"plugbus.plugins.statistics", "plugbus.plugins.stripe"}, enabled)

	require.NoError(t, s.Disable(ctx, "shop-a", "plugbus.plugins.stripe"))
	enabled, err = s.EnabledComponents(ctx, "shop-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"plugbus.plugins.statistics"}, enabled)
}

func TestStoreUnknownTenant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrTenantNotFound)
	assert.ErrorIs(t, s.Enable(ctx, "ghost", "x"), ErrTenantNotFound)
	assert.ErrorIs(t, s.Disable(ctx, "ghost", "x"), ErrTenantNotFound)

	enabled, err := s.EnabledComponents(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, enabled)
}

func TestStoreUpsertAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, Tenant{ID: "b"}))
	require.NoError(t, s.Upsert(ctx, Tenant{ID: "a", Name: "Alpha"}))
	require.NoError(t, s.Upsert(ctx, Tenant{ID: "a", Name: "Alpha Renamed"}))
	assert.Error(t, s.Upsert(ctx, Tenant{ID: " "}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Tenant{{ID: "a", Name: "Alpha Renamed"}, {ID: "b", Name: "b"}}, list)
}

func TestStoreSeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Seed(ctx, Tenant{ID: "shop"}, []string{"x", "y"}))
	require.NoError(t, s.Seed(ctx, Tenant{ID: "shop"}, []string{"y"}))

	enabled, err := s.EnabledComponents(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, enabled)
}
