package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one schema step with a statement per dialect
type Migration struct {
	Version     int
	Description string
	Postgres    string
	SQLite      string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users and auth_tokens tables",
			Postgres: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL DEFAULT '',
					password_hash VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					is_staff BOOLEAN NOT NULL DEFAULT FALSE,
					is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE TABLE IF NOT EXISTS auth_tokens (
					token_key VARCHAR(40) PRIMARY KEY,
					user_id BIGINT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL
				);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					email VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL DEFAULT '',
					password_hash VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					is_staff BOOLEAN NOT NULL DEFAULT 0,
					is_superuser BOOLEAN NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE TABLE IF NOT EXISTS auth_tokens (
					token_key VARCHAR(40) PRIMARY KEY,
					user_id INTEGER NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL
				);
			`,
		},
		{
			Version:     2,
			Description: "Create tags and ingredients tables",
			Postgres: `
				CREATE TABLE IF NOT EXISTS tags (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE
				);
				CREATE INDEX IF NOT EXISTS idx_tags_user_id ON tags(user_id);

				CREATE TABLE IF NOT EXISTS ingredients (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE
				);
				CREATE INDEX IF NOT EXISTS idx_ingredients_user_id ON ingredients(user_id);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS tags (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name VARCHAR(255) NOT NULL,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE
				);
				CREATE INDEX IF NOT EXISTS idx_tags_user_id ON tags(user_id);

				CREATE TABLE IF NOT EXISTS ingredients (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name VARCHAR(255) NOT NULL,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE
				);
				CREATE INDEX IF NOT EXISTS idx_ingredients_user_id ON ingredients(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create recipes and recipe link tables",
			Postgres: `
				CREATE TABLE IF NOT EXISTS recipes (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					time_minutes INTEGER NOT NULL,
					price NUMERIC(5,2) NOT NULL,
					link VARCHAR(255) NOT NULL DEFAULT '',
					image VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_recipes_user_id ON recipes(user_id);

				CREATE TABLE IF NOT EXISTS recipe_tags (
					recipe_id BIGINT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
					tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
					PRIMARY KEY (recipe_id, tag_id)
				);
				CREATE INDEX IF NOT EXISTS idx_recipe_tags_tag_id ON recipe_tags(tag_id);

				CREATE TABLE IF NOT EXISTS recipe_ingredients (
					recipe_id BIGINT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
					ingredient_id BIGINT NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
					PRIMARY KEY (recipe_id, ingredient_id)
				);
				CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_ingredient_id ON recipe_ingredients(ingredient_id);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS recipes (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					time_minutes INTEGER NOT NULL,
					price NUMERIC(5,2) NOT NULL,
					link VARCHAR(255) NOT NULL DEFAULT '',
					image VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_recipes_user_id ON recipes(user_id);

				CREATE TABLE IF NOT EXISTS recipe_tags (
					recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
					tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
					PRIMARY KEY (recipe_id, tag_id)
				);
				CREATE INDEX IF NOT EXISTS idx_recipe_tags_tag_id ON recipe_tags(tag_id);

				CREATE TABLE IF NOT EXISTS recipe_ingredients (
					recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
					ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
					PRIMARY KEY (recipe_id, ingredient_id)
				);
				CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_ingredient_id ON recipe_ingredients(ingredient_id);
			`,
		},
	}
}

// Migrate applies pending migrations for the store's dialect and returns the
// versions it applied
func (s *Store) Migrate(ctx context.Context) ([]int, error) {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var ran []int
	for _, m := range GetMigrations() {
		if applied[m.Version] {
			continue
		}

		stmt := m.Postgres
		if s.driver == DriverSQLite {
			stmt = m.SQLite
		}

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
				m.Version, m.Description, s.now(),
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return ran, err
		}
		ran = append(ran, m.Version)
	}

	return ran, nil
}
