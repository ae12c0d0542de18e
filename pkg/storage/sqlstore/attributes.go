package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/pantry/pkg/api"
	"github.com/platinummonkey/pantry/pkg/storage"
)

// AttributeStore implements api.AttributeStore for one attribute table.
// Tags and ingredients differ only in their table and link table names.
type AttributeStore struct {
	store     *Store
	table     string
	linkTable string
	linkCol   string
}

// Tags returns the store backing /api/recipe/tags/
func (s *Store) Tags() *AttributeStore {
	return &AttributeStore{store: s, table: "tags", linkTable: "recipe_tags", linkCol: "tag_id"}
}

// Ingredients returns the store backing /api/recipe/ingredients/
func (s *Store) Ingredients() *AttributeStore {
	return &AttributeStore{store: s, table: "ingredients", linkTable: "recipe_ingredients", linkCol: "ingredient_id"}
}

// ListAttributes implements api.AttributeStore
func (a *AttributeStore) ListAttributes(ctx context.Context, userID int64, assignedOnly bool) ([]*api.Attribute, error) {
	query := `SELECT id, name, user_id FROM ` + a.table + ` WHERE user_id = $1`
	if assignedOnly {
		query += ` AND id IN (SELECT ` + a.linkCol + ` FROM ` + a.linkTable + `)`
	}
	query += ` ORDER BY name DESC, id DESC`

	return a.query(ctx, query, userID)
}

// CreateAttribute implements api.AttributeStore
func (a *AttributeStore) CreateAttribute(ctx context.Context, attr *api.Attribute) error {
	err := a.store.db.QueryRowContext(ctx,
		`INSERT INTO `+a.table+` (name, user_id) VALUES ($1, $2) RETURNING id`,
		attr.Name, attr.UserID,
	).Scan(&attr.ID)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("owner of %s: %w", a.table, storage.ErrInvalidReference)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", a.table, err)
	}
	return nil
}

// GetAttributes implements api.AttributeStore
func (a *AttributeStore) GetAttributes(ctx context.Context, userID int64, ids []int64) ([]*api.Attribute, error) {
	return a.getAttributes(ctx, a.store.db, userID, ids)
}

func (a *AttributeStore) getAttributes(ctx context.Context, q querier, userID int64, ids []int64) ([]*api.Attribute, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []*api.Attribute{}, nil
	}

	query := `SELECT id, name, user_id FROM ` + a.table +
		` WHERE user_id = $1 AND id IN (` + placeholders(2, len(ids)) + `) ORDER BY id`
	args := append([]interface{}{userID}, int64Args(ids)...)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", a.table, err)
	}
	defer rows.Close()
	return scanAttributes(rows, a.table)
}

func (a *AttributeStore) query(ctx context.Context, query string, args ...interface{}) ([]*api.Attribute, error) {
	rows, err := a.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", a.table, err)
	}
	defer rows.Close()
	return scanAttributes(rows, a.table)
}

func scanAttributes(rows *sql.Rows, table string) ([]*api.Attribute, error) {
	attrs := []*api.Attribute{}
	for rows.Next() {
		var attr api.Attribute
		if err := rows.Scan(&attr.ID, &attr.Name, &attr.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		attrs = append(attrs, &attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return attrs, nil
}
