package recipe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"path"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pmoura/go-recipe-api/internal/media"
	"github.com/pmoura/go-recipe-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service exposes the recipe resource operations, caller identity passed
// explicitly. Create and FullUpdate take the complete payload; Patch only
// touches the non-nil fields.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, filter types.RecipeFilter) ([]types.Recipe, error)
	Get(ctx context.Context, userID uuid.UUID, recipeID int64) (*types.RecipeDetail, error)
	Create(ctx context.Context, userID uuid.UUID, req types.CreateRecipeRequest) (*types.Recipe, error)
	FullUpdate(ctx context.Context, userID uuid.UUID, recipeID int64, req types.CreateRecipeRequest) (*types.RecipeDetail, error)
	Patch(ctx context.Context, userID uuid.UUID, recipeID int64, req types.PatchRecipeRequest) (*types.RecipeDetail, error)
	Delete(ctx context.Context, userID uuid.UUID, recipeID int64) error
	AttachImage(ctx context.Context, userID uuid.UUID, recipeID int64, filename string, data []byte) (*types.RecipeImageResponse, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   RecipeRepo
	store  media.Store
}

func NewService(repo RecipeRepo, store media.Store, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		store:  store,
	}
}

func validateRecipeFields(req types.CreateRecipeRequest) error {
	fe := types.FieldErrors{}
	if strings.TrimSpace(req.Title) == "" {
		fe["title"] = append(fe["title"], "this field may not be blank")
	}
	if req.TimeMinutes <= 0 {
		fe["time_minutes"] = append(fe["time_minutes"], "must be a positive integer")
	}
	if req.Price <= 0 {
		fe["price"] = append(fe["price"], "must be a positive number")
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

// List implements recipe.Service.
func (s *ServiceImpl) List(ctx context.Context, userID uuid.UUID, filter types.RecipeFilter) ([]types.Recipe, error) {
	ctx, span := otel.Tracer("RecipeService").Start(ctx, "List")
	defer span.End()

	recipes, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		span.SetStatus(codes.Error, "List failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Recipes listed")
	return recipes, nil
}

// Get implements recipe.Service.
func (s *ServiceImpl) Get(ctx context.Context, userID uuid.UUID, recipeID int64) (*types.RecipeDetail, error) {
	ctx, span := otel.Tracer("RecipeService").Start(ctx, "Get")
	defer span.End()

	detail, err := s.repo.GetDetail(ctx, userID, recipeID)
	if err != nil {
		span.SetStatus(codes.Error, "Get failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Recipe fetched")
	return detail, nil
}

// Create implements recipe.Service. Omitted tag/ingredient sets become
// empty sets.
func (s *ServiceImpl) Create(ctx context.Context, userID uuid.UUID, req types.CreateRecipeRequest) (*types.Recipe, error) {
	ctx, span := otel.Tracer("RecipeService").Start(ctx, "Create")
	defer span.End()

	if err := validateRecipeFields(req); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		return nil, err
	}

	params := CreateRecipeParams{
		Title:       req.Title,
		TimeMinutes: req.TimeMinutes,
		Price:       req.Price,
		Link:        req.Link,
		Tags:        req.Tags,
		Ingredients: req.Ingredients,
	}
	if params.Tags == nil {
		params.Tags = []int64{}
	}
	if params.Ingredients == nil {
		params.Ingredients = []int64{}
	}

	rec, err := s.repo.Create(ctx, userID, params)
	if err != nil {
		span.SetStatus(codes.Error, "Create failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Recipe created")
	return rec, nil
}

// FullUpdate implements recipe.Service. Every field is replaced; omitted
// tag/ingredient sets clear the relations.
func (s *ServiceImpl) FullUpdate(ctx context.Context, userID uuid.UUID, recipeID int64, req types.CreateRecipeRequest) (*types.RecipeDetail, error) {
	ctx, span := otel.Tracer("RecipeService").Start(ctx, "FullUpdate")
	defer span.End()

	if err := validateRecipeFields(req); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		return nil, err
	}

	tags := req.Tags
	if tags == nil {
		tags = []int64{}
	}
	ingredients := req.Ingredients
	if ingredients == nil {
		ingredients = []int64{}
	}

	params := UpdateRecipeParams{
		Title:       &req.Title,
		TimeMinutes: &req.TimeMinutes,
		Price:       &req.Price,
		Link:        req.Link,
		Tags:        &tags,
		Ingredients: &ingredients,
	}
	if err := s.repo.Update(ctx, userID, recipeID, params); err != nil {
		span.SetStatus(codes.Error, "Update failed")
		return nil, err
	}

	detail, err := s.repo.GetDetail(ctx, userID, recipeID)
	if err != nil {
		span.SetStatus(codes.Error, "Fetch after update failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Recipe updated")
	return detail, nil
}

// Patch implements recipe.Service.
func (s *ServiceImpl) Patch(ctx context.Context, userID uuid.UUID, recipeID int64, req types.PatchRecipeRequest) (*types.RecipeDetail, error) {
	ctx, span := otel.Tracer("RecipeService").Start(ctx, "Patch")
	defer span.End()

	fe := types.FieldErrors{}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		fe["title"] = append(fe["title"], "this field may not be blank")
	}
	if req.TimeMinutes != nil && *req.TimeMinutes <= 0 {
		fe["time_minutes"] = append(fe["time_minutes"], "must be a positive integer")
	}
	if req.Price != nil && *req.Price <= 0 {
		fe["price"] = append(fe["price"], "must be a positive number")
	}
	if len(fe) > 0 {
		span.SetStatus(codes.Error, "Validation failed")
		return nil, fe
	}

	params := UpdateRecipeParams{
		Title:       req.Title,
		TimeMinutes: req.TimeMinutes,
		Price:       req.Price,
		Link:        req.Link,
		Tags:        req.Tags,
		Ingredients: req.Ingredients,
	}
	if err := s.repo.Update(ctx, userID, recipeID, params); err != nil {
		span.SetStatus(codes.Error, "Update failed")
		return nil, err
	}

	detail, err := s.repo.GetDetail(ctx, userID, recipeID)
	if err != nil {
		span.SetStatus(codes.Error, "Fetch after update failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Recipe patched")
	return detail, nil
}

// Delete implements recipe.Service. The stored image file, if any, is
// released after the row is gone; a failed file removal only logs.
func (s *ServiceImpl) Delete(ctx context.Context, userID uuid.UUID, recipeID int64) error {
	ctx, span := otel.Tracer("RecipeService").Start(ctx, "Delete")
	defer span.End()

	imageLocation, err := s.repo.Delete(ctx, userID, recipeID)
	if err != nil {
		span.SetStatus(codes.Error, "Delete failed")
		return err
	}

	if imageLocation != nil {
		if err := s.store.Remove(ctx, *imageLocation); err != nil {
			s.logger.WarnContext(ctx, "Failed to remove recipe image file",
				slog.String("path", *imageLocation), slog.Any("error", err))
		}
	}

	span.SetStatus(codes.Ok, "Recipe deleted")
	return nil
}

// extensionFor keeps the uploaded filename's extension when it has one and
// falls back to the decoded format otherwise.
func extensionFor(filename, format string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		return ext
	}
	switch format {
	case "jpeg":
		return ".jpg"
	default:
		return "." + format
	}
}

// AttachImage implements recipe.Service. The payload must decode as an
// image; the file is stored under a fresh random name and any previously
// attached image is removed.
func (s *ServiceImpl) AttachImage(ctx context.Context, userID uuid.UUID, recipeID int64, filename string, data []byte) (*types.RecipeImageResponse, error) {
	ctx, span := otel.Tracer("RecipeService").Start(ctx, "AttachImage")
	defer span.End()
	span.SetAttributes(attribute.Int64("recipe.id", recipeID))

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		span.SetStatus(codes.Error, "Not an image")
		return nil, types.NewFieldError("image", "upload a valid image, the file you uploaded was either not an image or a corrupted image")
	}

	location := fmt.Sprintf("uploads/recipe/%s%s", uuid.NewString(), extensionFor(filename, format))
	if err := s.store.Save(ctx, location, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Store failed")
		return nil, err
	}

	previous, err := s.repo.SetImage(ctx, userID, recipeID, location)
	if err != nil {
		// the row update failed, so the freshly written file is orphaned
		if rmErr := s.store.Remove(ctx, location); rmErr != nil {
			s.logger.WarnContext(ctx, "Failed to clean up orphaned image file",
				slog.String("path", location), slog.Any("error", rmErr))
		}
		span.SetStatus(codes.Error, "SetImage failed")
		return nil, err
	}

	if previous != nil && *previous != location {
		if err := s.store.Remove(ctx, *previous); err != nil {
			s.logger.WarnContext(ctx, "Failed to remove replaced image file",
				slog.String("path", *previous), slog.Any("error", err))
		}
	}

	span.SetStatus(codes.Ok, "Image attached")
	return &types.RecipeImageResponse{ID: recipeID, Image: location}, nil
}
