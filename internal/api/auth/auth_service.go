package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"github.com/pmoura/go-recipe-api/internal/types"
)

const minPasswordLength = 5

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService is the credential service: account creation, credential
// validation, token issuance and profile management.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*types.User, error)
	CreateSuperuser(ctx context.Context, email, password string) (*types.User, error)
	// IssueToken validates the email/password pair and returns the user's
	// opaque bearer token. All failure modes (unknown email, wrong
	// password, inactive user) collapse into types.ErrInvalidCredentials.
	IssueToken(ctx context.Context, email, password string) (string, error)
	GetUserByToken(ctx context.Context, token string) (*types.AuthenticatedUser, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error)
}

type AuthServiceImpl struct {
	logger *slog.Logger
	repo   AuthRepo
}

func NewAuthService(repo AuthRepo, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func validateCredentialsInput(email, password string) types.FieldErrors {
	fe := types.FieldErrors{}
	if email == "" {
		fe["email"] = append(fe["email"], "user must have an email address")
	}
	if len(password) < minPasswordLength {
		fe["password"] = append(fe["password"], fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func (s *AuthServiceImpl) createUser(ctx context.Context, email, password, name string, isStaff, isSuperuser bool) (*types.User, error) {
	if fe := validateCredentialsInput(email, password); fe != nil {
		return nil, fe
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, NormalizeEmail(email), name, string(hash), isStaff, isSuperuser)
}

// Register implements auth.AuthService.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password, name string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"))

	user, err := s.createUser(ctx, email, password, name, false, false)
	if err != nil {
		span.SetStatus(codes.Error, "Registration failed")
		return nil, err
	}

	l.InfoContext(ctx, "User registered", slog.String("user_id", user.ID.String()))
	span.SetStatus(codes.Ok, "User registered")
	return user, nil
}

// CreateSuperuser implements auth.AuthService.
func (s *AuthServiceImpl) CreateSuperuser(ctx context.Context, email, password string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "CreateSuperuser")
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateSuperuser"))

	user, err := s.createUser(ctx, email, password, "", true, true)
	if err != nil {
		span.SetStatus(codes.Error, "Superuser creation failed")
		return nil, err
	}

	l.InfoContext(ctx, "Superuser created", slog.String("user_id", user.ID.String()))
	span.SetStatus(codes.Ok, "Superuser created")
	return user, nil
}

// IssueToken implements auth.AuthService.
func (s *AuthServiceImpl) IssueToken(ctx context.Context, email, password string) (string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "IssueToken")
	defer span.End()

	l := s.logger.With(slog.String("method", "IssueToken"))

	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			// Same response as a wrong password so callers cannot probe
			// which emails exist.
			l.WarnContext(ctx, "Token request for unknown email")
			span.SetStatus(codes.Error, "Invalid credentials")
			return "", types.ErrInvalidCredentials
		}
		span.RecordError(err)
		return "", err
	}

	if !user.IsActive {
		l.WarnContext(ctx, "Token request for inactive user", slog.String("user_id", user.ID.String()))
		span.SetStatus(codes.Error, "Invalid credentials")
		return "", types.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		l.WarnContext(ctx, "Token request with wrong password", slog.String("user_id", user.ID.String()))
		span.SetStatus(codes.Error, "Invalid credentials")
		return "", types.ErrInvalidCredentials
	}

	token, err := s.repo.GetOrCreateToken(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	l.InfoContext(ctx, "Token issued", slog.String("user_id", user.ID.String()))
	span.SetStatus(codes.Ok, "Token issued")
	return token, nil
}

// GetUserByToken implements auth.AuthService.
func (s *AuthServiceImpl) GetUserByToken(ctx context.Context, token string) (*types.AuthenticatedUser, error) {
	return s.repo.GetUserByToken(ctx, token)
}

// GetProfile implements auth.AuthService.
func (s *AuthServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateProfile implements auth.AuthService.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "UpdateProfile")
	defer span.End()

	var email, hash *string
	if params.Email != nil {
		if *params.Email == "" {
			return nil, types.NewFieldError("email", "user must have an email address")
		}
		normalized := NormalizeEmail(*params.Email)
		email = &normalized
	}
	if params.Password != nil {
		if len(*params.Password) < minPasswordLength {
			return nil, types.NewFieldError("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
		h, err := bcrypt.GenerateFromPassword([]byte(*params.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		hashStr := string(h)
		hash = &hashStr
	}

	if err := s.repo.UpdateProfile(ctx, userID, email, params.Name, hash); err != nil {
		span.SetStatus(codes.Error, "Profile update failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Profile updated")
	return s.repo.GetUserByID(ctx, userID)
}
