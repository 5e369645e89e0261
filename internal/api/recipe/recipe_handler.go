package recipe

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pmoura/go-recipe-api/app/observability/metrics"
	"github.com/pmoura/go-recipe-api/internal/api"
	"github.com/pmoura/go-recipe-api/internal/api/auth"
	"github.com/pmoura/go-recipe-api/internal/types"
)

// Uploads above this size are rejected before decoding.
const maxUploadBytes = 10 << 20

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListRecipesHandler(w http.ResponseWriter, r *http.Request)
	CreateRecipeHandler(w http.ResponseWriter, r *http.Request)
	GetRecipeHandler(w http.ResponseWriter, r *http.Request)
	UpdateRecipeHandler(w http.ResponseWriter, r *http.Request)
	PatchRecipeHandler(w http.ResponseWriter, r *http.Request)
	DeleteRecipeHandler(w http.ResponseWriter, r *http.Request)
	UploadImageHandler(w http.ResponseWriter, r *http.Request)
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

// recipeIDParam parses the {recipeID} route segment. A non-numeric id maps
// to not-found, same as an id that matches no row.
func recipeIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "recipeID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid recipe id %q: %w", raw, types.ErrNotFound)
	}
	return id, nil
}

// ListRecipesHandler handles GET /recipe/recipes.
func (h *HandlerImpl) ListRecipesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecipeHandler").Start(r.Context(), "ListRecipes")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ListRecipesHandler"))

	caller, ok := auth.GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", caller.ID.String()))

	filter, err := api.ParseRecipeFilter(r.URL.Query())
	if err != nil {
		l.WarnContext(ctx, "Invalid recipe filter", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad filter")
		api.HandleServiceError(w, r, err)
		return
	}

	recipes, err := h.service.List(ctx, caller.ID, filter)
	if err != nil {
		l.ErrorContext(ctx, "Service failed to list recipes", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		api.HandleServiceError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Recipes listed")
	api.WriteJSONResponse(w, r, http.StatusOK, recipes)
}

// CreateRecipeHandler handles POST /recipe/recipes.
func (h *HandlerImpl) CreateRecipeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecipeHandler").Start(r.Context(), "CreateRecipe")
	defer span.End()
	l := h.logger.With(slog.String("handler", "CreateRecipeHandler"))

	caller, ok := auth.GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", caller.ID.String()))

	var req types.CreateRecipeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.service.Create(ctx, caller.ID, req)
	if err != nil {
		l.WarnContext(ctx, "Service failed to create recipe", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		api.HandleServiceError(w, r, err)
		return
	}

	if m := metrics.Get(); m != nil {
		m.RecipeCreatedTotal.Add(ctx, 1)
	}
	span.SetAttributes(attribute.Int64("recipe.id", rec.ID))
	span.SetStatus(codes.Ok, "Recipe created")
	api.WriteJSONResponse(w, r, http.StatusCreated, rec)
}

// GetRecipeHandler handles GET /recipe/recipes/{recipeID}.
func (h *HandlerImpl) GetRecipeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecipeHandler").Start(r.Context(), "GetRecipe")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetRecipeHandler"))

	caller, ok := auth.GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", caller.ID.String()))

	recipeID, err := recipeIDParam(r)
	if err != nil {
		span.SetStatus(codes.Error, "Bad recipe id")
		api.HandleServiceError(w, r, err)
		return
	}
	span.SetAttributes(attribute.Int64("recipe.id", recipeID))

	detail, err := h.service.Get(ctx, caller.ID, recipeID)
	if err != nil {
		l.WarnContext(ctx, "Service failed to fetch recipe", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Get failed")
		api.HandleServiceError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Recipe fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, detail)
}

// UpdateRecipeHandler handles PUT /recipe/recipes/{recipeID}. The payload
// replaces the recipe wholesale; omitted tag/ingredient sets clear the
// relations.
func (h *HandlerImpl) UpdateRecipeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecipeHandler").Start(r.Context(), "UpdateRecipe")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateRecipeHandler"))

	caller, ok := auth.GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", caller.ID.String()))

	recipeID, err := recipeIDParam(r)
	if err != nil {
		span.SetStatus(codes.Error, "Bad recipe id")
		api.HandleServiceError(w, r, err)
		return
	}
	span.SetAttributes(attribute.Int64("recipe.id", recipeID))

	var req types.CreateRecipeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.service.FullUpdate(ctx, caller.ID, recipeID, req)
	if err != nil {
		l.WarnContext(ctx, "Service failed to update recipe", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		api.HandleServiceError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Recipe updated")
	api.WriteJSONResponse(w, r, http.StatusOK, detail)
}

// PatchRecipeHandler handles PATCH /recipe/recipes/{recipeID}.
func (h *HandlerImpl) PatchRecipeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecipeHandler").Start(r.Context(), "PatchRecipe")
	defer span.End()
	l := h.logger.With(slog.String("handler", "PatchRecipeHandler"))

	caller, ok := auth.GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", caller.ID.String()))

	recipeID, err := recipeIDParam(r)
	if err != nil {
		span.SetStatus(codes.Error, "Bad recipe id")
		api.HandleServiceError(w, r, err)
		return
	}
	span.SetAttributes(attribute.Int64("recipe.id", recipeID))

	var req types.PatchRecipeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.service.Patch(ctx, caller.ID, recipeID, req)
	if err != nil {
		l.WarnContext(ctx, "Service failed to patch recipe", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Patch failed")
		api.HandleServiceError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Recipe patched")
	api.WriteJSONResponse(w, r, http.StatusOK, detail)
}

// DeleteRecipeHandler handles DELETE /recipe/recipes/{recipeID}.
func (h *HandlerImpl) DeleteRecipeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecipeHandler").Start(r.Context(), "DeleteRecipe")
	defer span.End()
	l := h.logger.With(slog.String("handler", "DeleteRecipeHandler"))

	caller, ok := auth.GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", caller.ID.String()))

	recipeID, err := recipeIDParam(r)
	if err != nil {
		span.SetStatus(codes.Error, "Bad recipe id")
		api.HandleServiceError(w, r, err)
		return
	}
	span.SetAttributes(attribute.Int64("recipe.id", recipeID))

	if err := h.service.Delete(ctx, caller.ID, recipeID); err != nil {
		l.WarnContext(ctx, "Service failed to delete recipe", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Delete failed")
		api.HandleServiceError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Recipe deleted")
	w.WriteHeader(http.StatusNoContent)
}

// UploadImageHandler handles POST /recipe/recipes/{recipeID}/upload-image.
// The request is multipart/form-data with the file under the "image" field.
func (h *HandlerImpl) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecipeHandler").Start(r.Context(), "UploadImage")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UploadImageHandler"))

	caller, ok := auth.GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", caller.ID.String()))

	recipeID, err := recipeIDParam(r)
	if err != nil {
		span.SetStatus(codes.Error, "Bad recipe id")
		api.HandleServiceError(w, r, err)
		return
	}
	span.SetAttributes(attribute.Int64("recipe.id", recipeID))

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		l.WarnContext(ctx, "Failed to parse multipart form", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad multipart form")
		api.HandleServiceError(w, r, types.NewFieldError("image", "no file was submitted"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		l.WarnContext(ctx, "Missing image field", slog.Any("error", err))
		span.SetStatus(codes.Error, "Missing image field")
		api.HandleServiceError(w, r, types.NewFieldError("image", "no file was submitted"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		l.ErrorContext(ctx, "Failed to read uploaded file", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Read failed")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Unable to read uploaded file")
		return
	}

	resp, err := h.service.AttachImage(ctx, caller.ID, recipeID, header.Filename, data)
	if err != nil {
		l.WarnContext(ctx, "Service failed to attach image", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Attach failed")
		api.HandleServiceError(w, r, err)
		return
	}

	if m := metrics.Get(); m != nil {
		m.ImageUploadsTotal.Add(ctx, 1)
	}
	span.SetStatus(codes.Ok, "Image attached")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
