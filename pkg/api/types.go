package api

import (
	"context"
	"time"
)

// Attribute is a user-owned label attached to recipes. Tags and ingredients
// share this shape.
type Attribute struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UserID int64  `json:"-"`
}

// Tag labels a recipe (e.g. "Vegan", "Dessert")
type Tag = Attribute

// Ingredient is something a recipe uses (e.g. "Carrot")
type Ingredient = Attribute

// AttributeKind selects the tags or the ingredients table
type AttributeKind string

const (
	KindTag        AttributeKind = "tag"
	KindIngredient AttributeKind = "ingredient"
)

// Recipe represents a recipe owned by a user
type Recipe struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"-"`
	Title         string    `json:"title"`
	TimeMinutes   int       `json:"time_minutes"`
	Price         Price     `json:"price"`
	Link          string    `json:"link"`
	TagIDs        []int64   `json:"tags"`
	IngredientIDs []int64   `json:"ingredients"`
	ImageKey      string    `json:"-"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// RecipeDetail is a recipe with its tags and ingredients expanded
type RecipeDetail struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	TimeMinutes int           `json:"time_minutes"`
	Price       Price         `json:"price"`
	Link        string        `json:"link"`
	Image       *string       `json:"image"`
	Tags        []*Tag        `json:"tags"`
	Ingredients []*Ingredient `json:"ingredients"`
}

// RecipeImage is the response of an image upload
type RecipeImage struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
}

// RecipeFilter narrows a recipe listing. A recipe matches when it has any of
// TagIDs (if set) and any of IngredientIDs (if set).
type RecipeFilter struct {
	UserID        int64
	TagIDs        []int64
	IngredientIDs []int64
}

// AttributeStore persists tags or ingredients
type AttributeStore interface {
	// ListAttributes returns the user's attributes ordered by name descending.
	// assignedOnly keeps those attached to at least one recipe.
	ListAttributes(ctx context.Context, userID int64, assignedOnly bool) ([]*Attribute, error)
	CreateAttribute(ctx context.Context, attr *Attribute) error
	// GetAttributes returns the user's attributes with the given ids, ordered by id
	GetAttributes(ctx context.Context, userID int64, ids []int64) ([]*Attribute, error)
}

// RecipeStore persists recipes and their tag/ingredient links
type RecipeStore interface {
	ListRecipes(ctx context.Context, filter RecipeFilter) ([]*Recipe, error)
	// GetRecipe returns storage.ErrNotFound for recipes owned by other users
	GetRecipe(ctx context.Context, userID, id int64) (*Recipe, error)
	// CreateRecipe returns storage.ErrInvalidReference when a tag or ingredient
	// id does not belong to the recipe owner
	CreateRecipe(ctx context.Context, recipe *Recipe) error
	UpdateRecipe(ctx context.Context, recipe *Recipe) error
	DeleteRecipe(ctx context.Context, userID, id int64) error
	// SetRecipeImage stores the image key and returns the key it replaced
	SetRecipeImage(ctx context.Context, userID, id int64, key string) (previous string, err error)
}
