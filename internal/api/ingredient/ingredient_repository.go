package ingredient

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

var _ IngredientRepo = (*PostgresIngredientRepo)(nil)

// IngredientRepo defines the contract for ingredient persistence. Every
// query is scoped to the owning user.
type IngredientRepo interface {
	// List returns the caller's ingredients ordered by descending name.
	// With AssignedOnly set, only ingredients referenced by at least one
	// recipe are returned, each exactly once.
	List(ctx context.Context, userID uuid.UUID, filter types.AttributeFilter) ([]types.Ingredient, error)

	// Create inserts an ingredient owned by the caller.
	Create(ctx context.Context, userID uuid.UUID, name string) (*types.Ingredient, error)
}

type PostgresIngredientRepo struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresIngredientRepo(pgpool api.PgxPool, logger *slog.Logger) *PostgresIngredientRepo {
	return &PostgresIngredientRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// List implements ingredient.IngredientRepo.
func (r *PostgresIngredientRepo) List(ctx context.Context, userID uuid.UUID, filter types.AttributeFilter) ([]types.Ingredient, error) {
	ctx, span := otel.Tracer("IngredientRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "ingredients"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "List"), slog.String("userID", userID.String()))

	query := `
        SELECT id, name, user_id
        FROM ingredients
        WHERE user_id = $1`
	if filter.AssignedOnly {
		query += `
        AND EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.ingredient_id = ingredients.id)`
	}
	query += `
        ORDER BY name DESC`

	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query ingredients", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching ingredients: %w", err)
	}
	defer rows.Close()

	ingredients := []types.Ingredient{}
	for rows.Next() {
		var ing types.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.UserID); err != nil {
			l.ErrorContext(ctx, "Failed to scan ingredient row", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning ingredient: %w", err)
		}
		ingredients = append(ingredients, ing)
	}

	if err = rows.Err(); err != nil {
		l.ErrorContext(ctx, "Error iterating ingredient rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading ingredients: %w", err)
	}

	span.SetStatus(codes.Ok, "Ingredients fetched")
	return ingredients, nil
}

// Create implements ingredient.IngredientRepo.
func (r *PostgresIngredientRepo) Create(ctx context.Context, userID uuid.UUID, name string) (*types.Ingredient, error) {
	ctx, span := otel.Tracer("IngredientRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "ingredients"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("userID", userID.String()))

	ing := types.Ingredient{Name: name, UserID: userID}
	err := r.pgpool.QueryRow(ctx,
		"INSERT INTO ingredients (name, user_id) VALUES ($1, $2) RETURNING id",
		name, userID).Scan(&ing.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert ingredient", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating ingredient: %w", err)
	}

	l.InfoContext(ctx, "Ingredient created", slog.Int64("ingredient_id", ing.ID))
	span.SetStatus(codes.Ok, "Ingredient created")
	return &ing, nil
}
