package tag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/pmoura/go-recipe-api/internal/api"
	"github.com/pmoura/go-recipe-api/internal/types"
)

var _ TagRepo = (*PostgresTagRepo)(nil)

// TagRepo defines the contract for tag persistence. Every query is scoped
// to the owning user.
type TagRepo interface {
	// List returns the caller's tags ordered by descending name. With
	// AssignedOnly set, only tags referenced by at least one recipe are
	// returned, each exactly once.
	List(ctx context.Context, userID uuid.UUID, filter types.AttributeFilter) ([]types.Tag, error)

	// Create inserts a tag owned by the caller.
	Create(ctx context.Context, userID uuid.UUID, name string) (*types.Tag, error)
}

type PostgresTagRepo struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresTagRepo(pgpool api.PgxPool, logger *slog.Logger) *PostgresTagRepo {
	return &PostgresTagRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// List implements tag.TagRepo. The EXISTS form deduplicates tags attached
// to multiple recipes; the relation check is deliberately not restricted
// to the caller's recipes, only the outer owner filter is.
func (r *PostgresTagRepo) List(ctx context.Context, userID uuid.UUID, filter types.AttributeFilter) ([]types.Tag, error) {
	ctx, span := otel.Tracer("TagRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "tags"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "List"), slog.String("userID", userID.String()))

	query := `
        SELECT id, name, user_id
        FROM tags
        WHERE user_id = $1`
	if filter.AssignedOnly {
		query += `
        AND EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.tag_id = tags.id)`
	}
	query += `
        ORDER BY name DESC`

	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query tags", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching tags: %w", err)
	}
	defer rows.Close()

	tags := []types.Tag{}
	for rows.Next() {
		var t types.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.UserID); err != nil {
			l.ErrorContext(ctx, "Failed to scan tag row", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning tag: %w", err)
		}
		tags = append(tags, t)
	}

	if err = rows.Err(); err != nil {
		l.ErrorContext(ctx, "Error iterating tag rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading tags: %w", err)
	}

	span.SetStatus(codes.Ok, "Tags fetched")
	return tags, nil
}

// Create implements tag.TagRepo.
func (r *PostgresTagRepo) Create(ctx context.Context, userID uuid.UUID, name string) (*types.Tag, error) {
	ctx, span := otel.Tracer("TagRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "tags"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("userID", userID.String()))

	tag := types.Tag{Name: name, UserID: userID}
	err := r.pgpool.QueryRow(ctx,
		"INSERT INTO tags (name, user_id) VALUES ($1, $2) RETURNING id",
		name, userID).Scan(&tag.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert tag", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating tag: %w", err)
	}

	l.InfoContext(ctx, "Tag created", slog.Int64("tag_id", tag.ID))
	span.SetStatus(codes.Ok, "Tag created")
	return &tag, nil
}
