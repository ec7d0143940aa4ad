package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTenantNotFound is returned when a tenant id has no stored record.
var ErrTenantNotFound = errors.New("tenant not found")

// Store persists tenants and their enabled components in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert creates the tenant or updates its name.
func (s *Store) Upsert(ctx context.Context, t Tenant) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("tenant id is empty")
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tenants(id, name, created_at)
VALUES(?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name;
`, t.ID, t.Name, now)
	if err != nil {
		return fmt.Errorf("upsert tenant: %w", err)
	}
	return nil
}

// Get returns the stored tenant.
func (s *Store) Get(ctx context.Context, id string) (*Tenant, error) {
	var t Tenant
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM tenants WHERE id = ?;", id).Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read tenant: %w", err)
	}
	return &t, nil
}

// List returns all tenants ordered by id.
func (s *Store) List(ctx context.Context) ([]Tenant, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM tenants ORDER BY id;")
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Enable turns an optional component on for the tenant. Enabling twice is a no-op.
func (s *Store) Enable(ctx context.Context, tenantID, componentID string) error {
	if strings.TrimSpace(componentID) == "" {
		return fmt.Errorf("component id is empty")
	}
	if _, err := s.Get(ctx, tenantID); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tenant_components(tenant_id, component_id, enabled_at)
VALUES(?, ?, ?)
ON CONFLICT(tenant_id, component_id) DO NOTHING;
`, tenantID, componentID, now)
	if err != nil {
		return fmt.Errorf("enable component: %w", err)
	}
	return nil
}

// Disable turns an optional component off for the tenant.
func (s *Store) Disable(ctx context.Context, tenantID, componentID string) error {
	if _, err := s.Get(ctx, tenantID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM tenant_components WHERE tenant_id = ? AND component_id = ?;",
		tenantID, componentID)
	if err != nil {
		return fmt.Errorf("disable component: %w", err)
	}
	return nil
}

// EnabledComponents returns the ids of the optional components enabled for
// the tenant, sorted. An unknown tenant has nothing enabled.
func (s *Store) EnabledComponents(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT component_id FROM tenant_components WHERE tenant_id = ? ORDER BY component_id;",
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("query enabled components: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enabled component: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Seed upserts t and enables each listed component. Components already
// enabled are left in place.
func (s *Store) Seed(ctx context.Context, t Tenant, components []string) error {
	if err := s.Upsert(ctx, t); err != nil {
		return err
	}
	for _, id := range components {
		if err := s.Enable(ctx, t.ID, id); err != nil {
			return fmt.Errorf("seed tenant %s: %w", t.ID, err)
		}
	}
	return nil
}
