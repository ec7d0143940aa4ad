package timerestriction

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Restriction limits sales of an item, or of some of its variations, to a
// timeframe and optionally overrides the price inside it.
type Restriction struct {
	ID         int64     `json:"id"`
	Item       string    `json:"item"`
	From       time.Time `json:"from"`
	Until      time.Time `json:"until"`
	Price      *int64    `json:"price,omitempty"`
	Variations []string  `json:"variations,omitempty"`
}

// appliesTo reports whether r restricts the variation with the given id.
// Restrictions on an item without variations apply to its only entry.
func (r Restriction) appliesTo(variationID string) bool {
	if variationID == "" {
		return true
	}
	for _, v := range r.Variations {
		if v == variationID {
			return true
		}
	}
	return false
}

func (r Restriction) active(now time.Time) bool {
	return !now.Before(r.From) && !now.After(r.Until)
}

// Store persists restrictions per tenant in the time_restrictions table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Add stores r for the tenant and returns its id.
func (s *Store) Add(ctx context.Context, tenantID string, r Restriction) (int64, error) {
	if r.Item == "" {
		return 0, fmt.Errorf("restriction item is empty")
	}
	if r.Until.Before(r.From) {
		return 0, fmt.Errorf("restriction ends before it starts")
	}
	vars := r.Variations
	if vars == nil {
		vars = []string{}
	}
	rawVars, err := json.Marshal(vars)
	if err != nil {
		return 0, fmt.Errorf("marshal variations: %w", err)
	}

	var price sql.NullInt64
	if r.Price != nil {
		price = sql.NullInt64{Int64: *r.Price, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO time_restrictions(tenant_id, item_id, time_from, time_until, price, variations)
VALUES(?, ?, ?, ?, ?, ?);
`, tenantID, r.Item, r.From.UTC().Format(time.RFC3339Nano), r.Until.UTC().Format(time.RFC3339Nano), price, string(rawVars))
	if err != nil {
		return 0, fmt.Errorf("insert restriction: %w", err)
	}
	return res.LastInsertId()
}

// ForItem returns the tenant's restrictions on item, oldest first.
func (s *Store) ForItem(ctx context.Context, tenantID, item string) ([]Restriction, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, item_id, time_from, time_until, price, variations
FROM time_restrictions
WHERE tenant_id = ? AND item_id = ?
ORDER BY id;
`, tenantID, item)
	if err != nil {
		return nil, fmt.Errorf("query restrictions: %w", err)
	}
	defer rows.Close()

	var out []Restriction
	for rows.Next() {
		var (
			r           Restriction
			from, until string
			price       sql.NullInt64
			rawVars     string
		)
		if err := rows.Scan(&r.ID, &r.Item, &from, &until, &price, &rawVars); err != nil {
			return nil, fmt.Errorf("scan restriction: %w", err)
		}
		if r.From, err = time.Parse(time.RFC3339Nano, from); err != nil {
			return nil, fmt.Errorf("parse restriction %d start: %w", r.ID, err)
		}
		if r.Until, err = time.Parse(time.RFC3339Nano, until); err != nil {
			return nil, fmt.Errorf("parse restriction %d end: %w", r.ID, err)
		}
		if price.Valid {
			p := price.Int64
			r.Price = &p
		}
		if err := json.Unmarshal([]byte(rawVars), &r.Variations); err != nil {
			return nil, fmt.Errorf("decode restriction %d variations: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
