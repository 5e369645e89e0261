package types

import (
	"time"

	"github.com/google/uuid"
)

// Tag is a user-owned recipe label.
type Tag struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	UserID uuid.UUID `json:"-"`
}

// Ingredient is a user-owned recipe component.
type Ingredient struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	UserID uuid.UUID `json:"-"`
}

// Recipe is the list/summary shape: related tags and ingredients appear as
// id sets only.
type Recipe struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	TimeMinutes   int       `json:"time_minutes"`
	Price         float64   `json:"price"`
	Link          *string   `json:"link"`
	Tags          []int64   `json:"tags"`
	Ingredients   []int64   `json:"ingredients"`
	UserID        uuid.UUID `json:"-"`
	CreatedAt     time.Time `json:"-"`
	ImageLocation *string   `json:"-"`
}

// RecipeDetail is the detail shape with embedded related objects and the
// stored image location.
type RecipeDetail struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	TimeMinutes int          `json:"time_minutes"`
	Price       float64      `json:"price"`
	Link        *string      `json:"link"`
	Tags        []Tag        `json:"tags"`
	Ingredients []Ingredient `json:"ingredients"`
	Image       *string      `json:"image"`
}

// CreateAttributeRequest is the payload for tag/ingredient creation.
type CreateAttributeRequest struct {
	Name string `json:"name"`
}

// CreateRecipeRequest is the POST /recipe/recipes payload. It doubles as
// the PUT payload: omitted tags/ingredients decode to nil and a full update
// treats that as the empty set.
type CreateRecipeRequest struct {
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       float64 `json:"price"`
	Link        *string `json:"link,omitempty"`
	Tags        []int64 `json:"tags,omitempty"`
	Ingredients []int64 `json:"ingredients,omitempty"`
}

// PatchRecipeRequest is the PATCH payload; nil fields are left unchanged.
type PatchRecipeRequest struct {
	Title       *string  `json:"title,omitempty"`
	TimeMinutes *int     `json:"time_minutes,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Link        *string  `json:"link,omitempty"`
	Tags        *[]int64 `json:"tags,omitempty"`
	Ingredients *[]int64 `json:"ingredients,omitempty"`
}

// RecipeFilter restricts a recipe listing. TagIDs/IngredientIDs each apply
// OR semantics; both compose as an intersection, always under the owner
// restriction.
type RecipeFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}

// AttributeFilter restricts a tag/ingredient listing. AssignedOnly keeps
// only records referenced by at least one recipe.
type AttributeFilter struct {
	AssignedOnly bool
}

// RecipeImageResponse is returned by the upload-image endpoint.
type RecipeImageResponse struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
}
