package auth

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pmoura/go-recipe-api/app/observability/metrics"
	"github.com/pmoura/go-recipe-api/internal/api"
	"github.com/pmoura/go-recipe-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	RegisterHandler(w http.ResponseWriter, r *http.Request)
	TokenHandler(w http.ResponseWriter, r *http.Request)
	GetMeHandler(w http.ResponseWriter, r *http.Request)
	UpdateMeHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service AuthService
}

func NewHandler(service AuthService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
	}
}

func userResponse(u *types.User) types.UserResponse {
	return types.UserResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

// RegisterHandler handles POST /user/create.
func (h *HandlerImpl) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Register")
	defer span.End()
	l := h.logger.With(slog.String("handler", "RegisterHandler"))

	var req types.RegisterUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Register(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		l.WarnContext(ctx, "Registration failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Registration failed")
		api.HandleServiceError(w, r, err)
		return
	}

	if m := metrics.Get(); m != nil {
		m.RegisterRequestsTotal.Add(ctx, 1)
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	span.SetStatus(codes.Ok, "User registered")
	api.WriteJSONResponse(w, r, http.StatusCreated, userResponse(user))
}

// TokenHandler handles POST /user/token.
func (h *HandlerImpl) TokenHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Token")
	defer span.End()
	l := h.logger.With(slog.String("handler", "TokenHandler"))

	var req types.TokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.service.IssueToken(ctx, req.Email, req.Password)
	if err != nil {
		l.WarnContext(ctx, "Token issuance failed", slog.Any("error", err))
		span.SetStatus(codes.Error, "Token issuance failed")
		api.HandleServiceError(w, r, err)
		return
	}

	if m := metrics.Get(); m != nil {
		m.TokenRequestsTotal.Add(ctx, 1)
	}

	span.SetStatus(codes.Ok, "Token issued")
	api.WriteJSONResponse(w, r, http.StatusOK, types.TokenResponse{Token: token})
}

// GetMeHandler handles GET /user/me.
func (h *HandlerImpl) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "GetMe")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetMeHandler"))

	caller, ok := GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.service.GetProfile(ctx, caller.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Profile fetch failed")
		api.HandleServiceError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Profile fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, userResponse(user))
}

// UpdateMeHandler handles PUT and PATCH /user/me. A PUT requires the full
// field set; a PATCH merges only the supplied fields.
func (h *HandlerImpl) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "UpdateMe")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateMeHandler"))

	caller, ok := GetUserFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User not found in context")
		span.SetStatus(codes.Error, "Unauthenticated")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var params types.UpdateProfileParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if r.Method == http.MethodPut {
		fe := types.FieldErrors{}
		if params.Email == nil {
			fe["email"] = append(fe["email"], "this field is required")
		}
		if params.Name == nil {
			fe["name"] = append(fe["name"], "this field is required")
		}
		if params.Password == nil {
			fe["password"] = append(fe["password"], "this field is required")
		}
		if len(fe) > 0 {
			span.SetStatus(codes.Error, "Missing required fields")
			api.ValidationErrorResponse(w, r, fe)
			return
		}
	}

	user, err := h.service.UpdateProfile(ctx, caller.ID, params)
	if err != nil {
		l.WarnContext(ctx, "Profile update failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Profile update failed")
		api.HandleServiceError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Profile updated")
	api.WriteJSONResponse(w, r, http.StatusOK, userResponse(user))
}
