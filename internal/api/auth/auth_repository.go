package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/pmoura/go-recipe-api/internal/api"
	"github.com/pmoura/go-recipe-api/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo defines the contract for identity and token persistence.
type AuthRepo interface {
	// CreateUser persists a new user. The email is expected to be
	// normalized and the password already hashed by the caller.
	CreateUser(ctx context.Context, email, name, passwordHash string, isStaff, isSuperuser bool) (*types.User, error)

	// GetUserByEmail returns the full user record including the password
	// hash. Returns types.ErrNotFound if no such user exists.
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)

	// GetUserByID returns the user record. Returns types.ErrNotFound if
	// the user doesn't exist.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)

	// GetOrCreateToken returns the user's opaque token, issuing a new one
	// only when the user has none yet.
	GetOrCreateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// GetUserByToken resolves a bearer token to an active user.
	// Returns types.ErrUnauthenticated for unknown tokens or inactive users.
	GetUserByToken(ctx context.Context, token string) (*types.AuthenticatedUser, error)

	// UpdateProfile applies the non-nil fields. The password, if present,
	// must already be hashed.
	UpdateProfile(ctx context.Context, userID uuid.UUID, email, name, passwordHash *string) error
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresAuthRepo(pgpool api.PgxPool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = "id, email, name, password_hash, is_active, is_staff, is_superuser, created_at, updated_at"

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser implements auth.AuthRepo.
func (r *PostgresAuthRepo) CreateUser(ctx context.Context, email, name, passwordHash string, isStaff, isSuperuser bool) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateUser"))

	query := `
        INSERT INTO users (email, name, password_hash, is_staff, is_superuser)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + userColumns

	user, err := scanUser(r.pgpool.QueryRow(ctx, query, email, name, passwordHash, isStaff, isSuperuser))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			l.WarnContext(ctx, "Attempted to register duplicate email")
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, types.NewFieldError("email", "user with this email address already exists")
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating user: %w", err)
	}

	l.InfoContext(ctx, "User created", slog.String("user_id", user.ID.String()))
	span.SetStatus(codes.Ok, "User created")
	return user, nil
}

// GetUserByEmail implements auth.AuthRepo.
func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	user, err := scanUser(r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User fetched")
	return user, nil
}

// GetUserByID implements auth.AuthRepo.
func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	user, err := scanUser(r.pgpool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User fetched")
	return user, nil
}

// GetOrCreateToken implements auth.AuthRepo. The no-op DO UPDATE makes the
// statement return the existing token when one is already issued.
func (r *PostgresAuthRepo) GetOrCreateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetOrCreateToken", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "auth_tokens"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetOrCreateToken"), slog.String("userID", userID.String()))

	newToken, err := generateToken()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	query := `
        INSERT INTO auth_tokens (token, user_id)
        VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE SET user_id = auth_tokens.user_id
        RETURNING token`

	var token string
	err = r.pgpool.QueryRow(ctx, query, newToken, userID).Scan(&token)
	if err != nil {
		l.ErrorContext(ctx, "Failed to get or create token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return "", fmt.Errorf("database error issuing token: %w", err)
	}

	l.DebugContext(ctx, "Token issued or reused")
	span.SetStatus(codes.Ok, "Token issued")
	return token, nil
}

// GetUserByToken implements auth.AuthRepo.
func (r *PostgresAuthRepo) GetUserByToken(ctx context.Context, token string) (*types.AuthenticatedUser, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByToken", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "auth_tokens, users"),
	))
	defer span.End()

	query := `
        SELECT u.id, u.email
        FROM auth_tokens t
        JOIN users u ON u.id = t.user_id
        WHERE t.token = $1 AND u.is_active = TRUE`

	var user types.AuthenticatedUser
	err := r.pgpool.QueryRow(ctx, query, token).Scan(&user.ID, &user.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Invalid token")
			return nil, fmt.Errorf("invalid token: %w", types.ErrUnauthenticated)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error resolving token: %w", err)
	}

	span.SetAttributes(attribute.String("db.user.id", user.ID.String()))
	span.SetStatus(codes.Ok, "Token resolved")
	return &user, nil
}

// UpdateProfile implements auth.AuthRepo.
func (r *PostgresAuthRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, email, name, passwordHash *string) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "UpdateProfile", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", userID.String()))

	query := `
        UPDATE users
        SET email = COALESCE($1, email),
            name = COALESCE($2, name),
            password_hash = COALESCE($3, password_hash),
            updated_at = $4
        WHERE id = $5`

	tag, err := r.pgpool.Exec(ctx, query, email, name, passwordHash, time.Now(), userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			l.WarnContext(ctx, "Attempted to change to an email already in use")
			span.SetStatus(codes.Error, "Duplicate email")
			return types.NewFieldError("email", "user with this email address already exists")
		}
		l.ErrorContext(ctx, "Failed to update profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return fmt.Errorf("user not found for update: %w", types.ErrNotFound)
	}

	l.InfoContext(ctx, "Profile updated")
	span.SetStatus(codes.Ok, "Profile updated")
	return nil
}
