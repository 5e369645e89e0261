package ingredient

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pmoura/go-recipe-api/internal/api"
	"github.com/pmoura/go-recipe-api/internal/api/auth"
	"github.com/pmoura/go-recipe-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListIngredientsHandler(w http.ResponseWriter, r *http.Request)
	CreateIngredientHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
	}
}

// ListIngredientsHandler handles GET /recipe/ingredients.
func (h *HandlerImpl) ListIngredientsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("IngredientHandler").Start(r.Context(), "ListIngredients")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ListIngredientsHandler"))

	caller, ok := auth.GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", caller.ID.String()))

	filter, err := api.ParseAttributeFilter(r.URL.Query())
	if err != nil {
		l.WarnContext(ctx, "Invalid assigned_only filter", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad filter")
		api.HandleServiceError(w, r, err)
		return
	}

	ingredients, err := h.service.List(ctx, caller.ID, filter)
	if err != nil {
		l.ErrorContext(ctx, "Service failed to list ingredients", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		api.HandleServiceError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Ingredients listed")
	api.WriteJSONResponse(w, r, http.StatusOK, ingredients)
}

// CreateIngredientHandler handles POST /recipe/ingredients.
func (h *HandlerImpl) CreateIngredientHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("IngredientHandler").Start(r.Context(), "CreateIngredient")
	defer span.End()
	l := h.logger.With(slog.String("handler", "CreateIngredientHandler"))

	caller, ok := auth.GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", caller.ID.String()))

	var req types.CreateAttributeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ing, err := h.service.Create(ctx, caller.ID, req.Name)
	if err != nil {
		l.WarnContext(ctx, "Service failed to create ingredient", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		api.HandleServiceError(w, r, err)
		return
	}

	span.SetAttributes(attribute.Int64("ingredient.id", ing.ID))
	span.SetStatus(codes.Ok, "Ingredient created")
	api.WriteJSONResponse(w, r, http.StatusCreated, ing)
}
