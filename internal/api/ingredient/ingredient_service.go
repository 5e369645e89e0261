package ingredient

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/pmoura/go-recipe-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service exposes the ingredient resource operations, caller identity
// passed explicitly.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, filter types.AttributeFilter) ([]types.Ingredient, error)
	Create(ctx context.Context, userID uuid.UUID, name string) (*types.Ingredient, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   IngredientRepo
}

func NewService(repo IngredientRepo, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// List implements ingredient.Service.
func (s *ServiceImpl) List(ctx context.Context, userID uuid.UUID, filter types.AttributeFilter) ([]types.Ingredient, error) {
	ctx, span := otel.Tracer("IngredientService").Start(ctx, "List")
	defer span.End()

	ingredients, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		span.SetStatus(codes.Error, "List failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Ingredients listed")
	return ingredients, nil
}

// Create implements ingredient.Service.
func (s *ServiceImpl) Create(ctx context.Context, userID uuid.UUID, name string) (*types.Ingredient, error) {
	ctx, span := otel.Tracer("IngredientService").Start(ctx, "Create")
	defer span.End()

	if strings.TrimSpace(name) == "" {
		span.SetStatus(codes.Error, "Missing name")
		return nil, types.NewFieldError("name", "this field may not be blank")
	}

	ing, err := s.repo.Create(ctx, userID, name)
	if err != nil {
		span.SetStatus(codes.Error, "Create failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Ingredient created")
	return ing, nil
}
