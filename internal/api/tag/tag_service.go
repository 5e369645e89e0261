package tag

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

// Service exposes the tag resource operations. The caller identity is
// passed explicitly into every call; ownership scoping happens below.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, filter types.AttributeFilter) ([]types.Tag, error)
	Create(ctx context.Context, userID uuid.UUID, name string) (*types.Tag, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   TagRepo
}

func NewService(repo TagRepo, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// List implements tag.Service.
func (s *ServiceImpl) List(ctx context.Context, userID uuid.UUID, filter types.AttributeFilter) ([]types.Tag, error) {
	ctx, span := otel.Tracer("TagService").Start(ctx, "List")
	defer span.End()

	tags, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		span.SetStatus(codes.Error, "List failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Tags listed")
	return tags, nil
}

// Create implements tag.Service.
func (s *ServiceImpl) Create(ctx context.Context, userID uuid.UUID, name string) (*types.Tag, error) {
	ctx, span := otel.Tracer("TagService").Start(ctx, "Create")
	defer span.End()

	if strings.TrimSpace(name) == "" {
		span.SetStatus(codes.Error, "Missing name")
		return nil, types.NewFieldError("name", "this field may not be blank")
	}

	tag, err := s.repo.Create(ctx, userID, name)
	if err != nil {
		span.SetStatus(codes.Error, "Create failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Tag created")
	return tag, nil
}
