package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/pantry/pkg/api"
	"github.com/platinummonkey/pantry/pkg/storage"
)

const recipeColumns = `id, user_id, title, time_minutes, price, link, image, created_at, updated_at`

func scanRecipe(row rowScanner) (*api.Recipe, error) {
	var r api.Recipe
	err := row.Scan(
		&r.ID, &r.UserID, &r.Title, &r.TimeMinutes, &r.Price,
		&r.Link, &r.ImageKey, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.TagIDs = []int64{}
	r.IngredientIDs = []int64{}
	return &r, nil
}

// Recipes returns the store backing /api/recipe/recipes/
func (s *Store) Recipes() *RecipeStore {
	return &RecipeStore{store: s, tags: s.Tags(), ingredients: s.Ingredients()}
}

// RecipeStore implements api.RecipeStore
type RecipeStore struct {
	store       *Store
	tags        *AttributeStore
	ingredients *AttributeStore
}

// ListRecipes implements api.RecipeStore. A recipe matches when it is linked
// to any of the requested tags and any of the requested ingredients.
func (rs *RecipeStore) ListRecipes(ctx context.Context, filter api.RecipeFilter) ([]*api.Recipe, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.ListRecipes")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", filter.UserID),
		attribute.Int("filter.tags", len(filter.TagIDs)),
		attribute.Int("filter.ingredients", len(filter.IngredientIDs)),
	)

	query, args := buildRecipeListQuery(filter)

	rows, err := rs.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recipe list failed")
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	recipes := []*api.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recipes: %w", err)
	}

	if err := rs.loadLinks(ctx, rs.store.db, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

func buildRecipeListQuery(filter api.RecipeFilter) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`SELECT ` + recipeColumns + ` FROM recipes WHERE user_id = $1`)
	args := []interface{}{filter.UserID}

	if ids := uniqueIDs(filter.TagIDs); len(ids) > 0 {
		fmt.Fprintf(&b, ` AND id IN (SELECT recipe_id FROM recipe_tags WHERE tag_id IN (%s))`,
			placeholders(len(args)+1, len(ids)))
		args = append(args, int64Args(ids)...)
	}
	if ids := uniqueIDs(filter.IngredientIDs); len(ids) > 0 {
		fmt.Fprintf(&b, ` AND id IN (SELECT recipe_id FROM recipe_ingredients WHERE ingredient_id IN (%s))`,
			placeholders(len(args)+1, len(ids)))
		args = append(args, int64Args(ids)...)
	}

	b.WriteString(` ORDER BY id DESC`)
	return b.String(), args
}

// GetRecipe implements api.RecipeStore
func (rs *RecipeStore) GetRecipe(ctx context.Context, userID, id int64) (*api.Recipe, error) {
	return rs.getRecipe(ctx, rs.store.db, userID, id)
}

func (rs *RecipeStore) getRecipe(ctx context.Context, q querier, userID, id int64) (*api.Recipe, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	r, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	if err := rs.loadLinks(ctx, q, []*api.Recipe{r}); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateRecipe implements api.RecipeStore
func (rs *RecipeStore) CreateRecipe(ctx context.Context, recipe *api.Recipe) error {
	ctx, span := tracer.Start(ctx, "sqlstore.CreateRecipe")
	defer span.End()

	recipe.TagIDs = uniqueIDs(recipe.TagIDs)
	recipe.IngredientIDs = uniqueIDs(recipe.IngredientIDs)
	now := rs.store.now()

	err := rs.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := rs.checkReferences(ctx, tx, recipe); err != nil {
			return err
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO recipes (user_id, title, time_minutes, price, link, image, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`,
			recipe.UserID, recipe.Title, recipe.TimeMinutes, recipe.Price,
			recipe.Link, recipe.ImageKey, now, now,
		).Scan(&recipe.ID)
		if err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}

		return rs.writeLinks(ctx, tx, recipe)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recipe create failed")
		return err
	}

	recipe.CreatedAt = now
	recipe.UpdatedAt = now
	span.SetAttributes(attribute.Int64("recipe.id", recipe.ID))
	return nil
}

// UpdateRecipe implements api.RecipeStore. The tag and ingredient sets are
// replaced with the ones on recipe.
func (rs *RecipeStore) UpdateRecipe(ctx context.Context, recipe *api.Recipe) error {
	ctx, span := tracer.Start(ctx, "sqlstore.UpdateRecipe")
	defer span.End()
	span.SetAttributes(attribute.Int64("recipe.id", recipe.ID))

	recipe.TagIDs = uniqueIDs(recipe.TagIDs)
	recipe.IngredientIDs = uniqueIDs(recipe.IngredientIDs)
	now := rs.store.now()

	err := rs.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := rs.checkReferences(ctx, tx, recipe); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE recipes
			SET title = $1, time_minutes = $2, price = $3, link = $4, updated_at = $5
			WHERE id = $6 AND user_id = $7
		`,
			recipe.Title, recipe.TimeMinutes, recipe.Price, recipe.Link, now,
			recipe.ID, recipe.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		if n == 0 {
			return storage.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_tags WHERE recipe_id = $1`, recipe.ID); err != nil {
			return fmt.Errorf("failed to clear recipe tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = $1`, recipe.ID); err != nil {
			return fmt.Errorf("failed to clear recipe ingredients: %w", err)
		}
		return rs.writeLinks(ctx, tx, recipe)
	})
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrInvalidReference) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "recipe update failed")
		}
		return err
	}

	recipe.UpdatedAt = now
	return nil
}

// DeleteRecipe implements api.RecipeStore
func (rs *RecipeStore) DeleteRecipe(ctx context.Context, userID, id int64) error {
	result, err := rs.store.db.ExecContext(ctx,
		`DELETE FROM recipes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetRecipeImage implements api.RecipeStore
func (rs *RecipeStore) SetRecipeImage(ctx context.Context, userID, id int64, key string) (string, error) {
	var previous string
	err := rs.store.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT image FROM recipes WHERE id = $1 AND user_id = $2`, id, userID,
		).Scan(&previous)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load recipe image: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE recipes SET image = $1, updated_at = $2 WHERE id = $3`,
			key, rs.store.now(), id,
		); err != nil {
			return fmt.Errorf("failed to set recipe image: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

// checkReferences rejects tag and ingredient ids the recipe owner does not own
func (rs *RecipeStore) checkReferences(ctx context.Context, q querier, recipe *api.Recipe) error {
	tags, err := rs.tags.getAttributes(ctx, q, recipe.UserID, recipe.TagIDs)
	if err != nil {
		return err
	}
	if len(tags) != len(recipe.TagIDs) {
		return fmt.Errorf("unknown tag: %w", storage.ErrInvalidReference)
	}

	ingredients, err := rs.ingredients.getAttributes(ctx, q, recipe.UserID, recipe.IngredientIDs)
	if err != nil {
		return err
	}
	if len(ingredients) != len(recipe.IngredientIDs) {
		return fmt.Errorf("unknown ingredient: %w", storage.ErrInvalidReference)
	}
	return nil
}

func (rs *RecipeStore) writeLinks(ctx context.Context, q querier, recipe *api.Recipe) error {
	for _, tagID := range recipe.TagIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO recipe_tags (recipe_id, tag_id) VALUES ($1, $2)`, recipe.ID, tagID,
		); err != nil {
			return fmt.Errorf("failed to link tag %d: %w", tagID, err)
		}
	}
	for _, ingredientID := range recipe.IngredientIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO recipe_ingredients (recipe_id, ingredient_id) VALUES ($1, $2)`, recipe.ID, ingredientID,
		); err != nil {
			return fmt.Errorf("failed to link ingredient %d: %w", ingredientID, err)
		}
	}
	return nil
}

// loadLinks fills TagIDs and IngredientIDs for the given recipes
func (rs *RecipeStore) loadLinks(ctx context.Context, q querier, recipes []*api.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	byID := make(map[int64]*api.Recipe, len(recipes))
	ids := make([]int64, 0, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}
	in := placeholders(1, len(ids))
	args := int64Args(ids)

	load := func(query string, add func(r *api.Recipe, id int64)) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to load recipe links: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var recipeID, id int64
			if err := rows.Scan(&recipeID, &id); err != nil {
				return fmt.Errorf("failed to scan recipe link: %w", err)
			}
			if r, ok := byID[recipeID]; ok {
				add(r, id)
			}
		}
		return rows.Err()
	}

	err := load(
		`SELECT recipe_id, tag_id FROM recipe_tags WHERE recipe_id IN (`+in+`) ORDER BY recipe_id, tag_id`,
		func(r *api.Recipe, id int64) { r.TagIDs = append(r.TagIDs, id) },
	)
	if err != nil {
		return err
	}
	return load(
		`SELECT recipe_id, ingredient_id FROM recipe_ingredients WHERE recipe_id IN (`+in+`) ORDER BY recipe_id, ingredient_id`,
		func(r *api.Recipe, id int64) { r.IngredientIDs = append(r.IngredientIDs, id) },
	)
}
