package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/platinummonkey/pantry/pkg/async"
	"github.com/platinummonkey/pantry/pkg/httputil"
	"github.com/platinummonkey/pantry/pkg/observability"
)

// imageFormats are the accepted upload types and the extension stored with them
var imageFormats = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

const (
	imageField        = "image"
	imageKeyPrefix    = "uploads/recipe/"
	maxUploadInMemory = 1 << 20
	msgInvalidImage   = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	msgNoImage        = "No file was submitted."
)

// recipeRequest is the body of recipe writes. Nil fields were absent.
type recipeRequest struct {
	Title       *string  `json:"title"`
	TimeMinutes *int     `json:"time_minutes"`
	Price       *Price   `json:"price"`
	Link        *string  `json:"link"`
	Tags        *[]int64 `json:"tags"`
	Ingredients *[]int64 `json:"ingredients"`
}

// apply copies the present fields onto recipe. Unless partial, title,
// time_minutes and price are required. Tag and ingredient sets are only
// replaced when given.
func (req recipeRequest) apply(recipe *Recipe, partial bool) map[string]string {
	details := map[string]string{}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		switch {
		case title == "":
			details["title"] = msgFieldRequired
		case len(title) > maxNameLength:
			details["title"] = msgMaxLength
		default:
			recipe.Title = title
		}
	} else if !partial {
		details["title"] = msgFieldRequired
	}

	if req.TimeMinutes != nil {
		if *req.TimeMinutes < 0 {
			details["time_minutes"] = "Ensure this value is greater than or equal to 0."
		} else {
			recipe.TimeMinutes = *req.TimeMinutes
		}
	} else if !partial {
		details["time_minutes"] = msgFieldRequired
	}

	if req.Price != nil {
		if *req.Price < 0 || *req.Price > MaxPrice {
			details["price"] = "Ensure that there are no more than 5 digits in total."
		} else {
			recipe.Price = *req.Price
		}
	} else if !partial {
		details["price"] = msgFieldRequired
	}

	if req.Link != nil {
		if len(*req.Link) > maxNameLength {
			details["link"] = msgMaxLength
		} else {
			recipe.Link = *req.Link
		}
	}

	if req.Tags != nil {
		recipe.TagIDs = *req.Tags
	}
	if req.Ingredients != nil {
		recipe.IngredientIDs = *req.Ingredients
	}

	return details
}

// listRecipes handles GET /api/recipe/recipes/?tags=1,2&ingredients=3
func (s *Server) listRecipes(w http.ResponseWriter, r *http.Request) {
	tagIDs, err := httputil.ParseQueryIDs(r, "tags")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	ingredientIDs, err := httputil.ParseQueryIDs(r, "ingredients")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	recipes, err := s.recipes.ListRecipes(r.Context(), RecipeFilter{
		UserID:        caller(r).UserID(),
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if recipes == nil {
		recipes = []*Recipe{}
	}
	httputil.WriteSuccess(w, recipes)
}

// createRecipe handles POST /api/recipe/recipes/
func (s *Server) createRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	recipe := &Recipe{UserID: caller(r).UserID(), TagIDs: []int64{}, IngredientIDs: []int64{}}
	if details := req.apply(recipe, false); len(details) > 0 {
		httputil.WriteValidationError(w, "invalid recipe", details)
		return
	}

	if err := s.recipes.CreateRecipe(r.Context(), recipe); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, recipe)
}

// getRecipe handles GET /api/recipe/recipes/{id}/
func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrNotFound(w, r, "id")
	if !ok {
		return
	}

	recipe, err := s.recipes.GetRecipe(r.Context(), caller(r).UserID(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	detail, err := s.recipeDetail(r.Context(), recipe)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, detail)
}

// recipeDetail expands tag and ingredient ids into objects
func (s *Server) recipeDetail(ctx context.Context, recipe *Recipe) (*RecipeDetail, error) {
	tags, err := s.tags.GetAttributes(ctx, recipe.UserID, recipe.TagIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	ingredients, err := s.ingredients.GetAttributes(ctx, recipe.UserID, recipe.IngredientIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredients: %w", err)
	}
	if tags == nil {
		tags = []*Tag{}
	}
	if ingredients == nil {
		ingredients = []*Ingredient{}
	}

	detail := &RecipeDetail{
		ID:          recipe.ID,
		Title:       recipe.Title,
		TimeMinutes: recipe.TimeMinutes,
		Price:       recipe.Price,
		Link:        recipe.Link,
		Tags:        tags,
		Ingredients: ingredients,
	}
	if recipe.ImageKey != "" && s.images != nil {
		url := s.images.URL(recipe.ImageKey)
		detail.Image = &url
	}
	return detail, nil
}

// updateRecipe handles PUT and PATCH /api/recipe/recipes/{id}/
func (s *Server) updateRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrNotFound(w, r, "id")
	if !ok {
		return
	}

	var req recipeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	recipe, err := s.recipes.GetRecipe(r.Context(), caller(r).UserID(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	if details := req.apply(recipe, r.Method == http.MethodPatch); len(details) > 0 {
		httputil.WriteValidationError(w, "invalid recipe", details)
		return
	}

	if err := s.recipes.UpdateRecipe(r.Context(), recipe); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, recipe)
}

// deleteRecipe handles DELETE /api/recipe/recipes/{id}/
func (s *Server) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrNotFound(w, r, "id")
	if !ok {
		return
	}
	userID := caller(r).UserID()

	recipe, err := s.recipes.GetRecipe(r.Context(), userID, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := s.recipes.DeleteRecipe(r.Context(), userID, id); err != nil {
		writeStoreError(w, r, err)
		return
	}

	s.deleteImageLater(r.Context(), recipe.ImageKey)
	httputil.WriteNoContent(w)
}

// uploadRecipeImage handles POST /api/recipe/recipes/{id}/upload-image/
func (s *Server) uploadRecipeImage(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrNotFound(w, r, "id")
	if !ok {
		return
	}
	userID := caller(r).UserID()

	// Reject foreign recipes before reading the upload
	if _, err := s.recipes.GetRecipe(r.Context(), userID, id); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if s.images == nil {
		observability.FromContext(r.Context()).Error("image upload without an image store")
		httputil.WriteInternalError(w)
		return
	}

	if err := r.ParseMultipartForm(maxUploadInMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.recordImageUpload("rejected")
			httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxBytes.Limit))
			return
		}
		s.recordImageUpload("rejected")
		httputil.WriteValidationError(w, "invalid image", map[string]string{imageField: msgNoImage})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(imageField)
	if err != nil {
		s.recordImageUpload("rejected")
		httputil.WriteValidationError(w, "invalid image", map[string]string{imageField: msgNoImage})
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		s.recordImageUpload("error")
		observability.FromContext(r.Context()).WithError(err).Error("failed to read upload")
		httputil.WriteInternalError(w)
		return
	}
	ext, allowed := imageFormats[mtype.String()]
	if !allowed {
		s.recordImageUpload("rejected")
		httputil.WriteValidationError(w, "invalid image", map[string]string{imageField: msgInvalidImage})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		s.recordImageUpload("error")
		observability.FromContext(r.Context()).WithError(err).Error("failed to rewind upload")
		httputil.WriteInternalError(w)
		return
	}

	key := imageKeyPrefix + uuid.NewString() + ext
	if err := s.images.Put(r.Context(), key, mtype.String(), file, header.Size); err != nil {
		s.recordImageUpload("error")
		observability.FromContext(r.Context()).WithError(err).Error("failed to store image")
		httputil.WriteInternalError(w)
		return
	}

	previous, err := s.recipes.SetRecipeImage(r.Context(), userID, id, key)
	if err != nil {
		s.recordImageUpload("error")
		// The recipe vanished or the write failed; the new object is orphaned
		s.deleteImageLater(r.Context(), key)
		writeStoreError(w, r, err)
		return
	}
	if previous != key {
		s.deleteImageLater(r.Context(), previous)
	}

	s.recordImageUpload("success")
	httputil.WriteSuccess(w, RecipeImage{ID: id, Image: s.images.URL(key)})
}

// deleteImageLater removes a stored image after the response is written
func (s *Server) deleteImageLater(ctx context.Context, key string) <-chan struct{} {
	if key == "" || s.images == nil {
		done := make(chan struct{})
		close(done)
		return done
	}

	return async.SafeGo(ctx, s.imageTimeout, "delete recipe image", func(ctx context.Context) error {
		err := s.images.Delete(ctx, key)
		if s.metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			s.metrics.ImageDeletionsTotal.WithLabelValues(status).Inc()
		}
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

func (s *Server) recordImageUpload(status string) {
	if s.metrics != nil {
		s.metrics.ImageUploadsTotal.WithLabelValues(status).Inc()
	}
}
