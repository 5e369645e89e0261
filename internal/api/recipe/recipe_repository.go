package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/pmoura/go-recipe-api/internal/api"
	"github.com/pmoura/go-recipe-api/internal/types"
)

var _ RecipeRepo = (*PostgresRecipeRepo)(nil)

// CreateRecipeParams is the validated input for a recipe insert. Tags and
// Ingredients are never nil; an empty slice means no links.
type CreateRecipeParams struct {
	Title       string
	TimeMinutes int
	Price       float64
	Link        *string
	Tags        []int64
	Ingredients []int64
}

// UpdateRecipeParams applies the non-nil fields. A non-nil Tags or
// Ingredients slice replaces the whole relation set; nil leaves it alone.
type UpdateRecipeParams struct {
	Title       *string
	TimeMinutes *int
	Price       *float64
	Link        *string
	Tags        *[]int64
	Ingredients *[]int64
}

// RecipeRepo defines the contract for recipe persistence. Every operation
// narrows its row set by the owning user before anything else, so a
// foreign-owned id is indistinguishable from a missing one.
type RecipeRepo interface {
	List(ctx context.Context, userID uuid.UUID, filter types.RecipeFilter) ([]types.Recipe, error)
	GetDetail(ctx context.Context, userID uuid.UUID, recipeID int64) (*types.RecipeDetail, error)
	Create(ctx context.Context, userID uuid.UUID, params CreateRecipeParams) (*types.Recipe, error)
	Update(ctx context.Context, userID uuid.UUID, recipeID int64, params UpdateRecipeParams) error
	// Delete removes the recipe and returns the stored image location, if
	// any, so the caller can release the file.
	Delete(ctx context.Context, userID uuid.UUID, recipeID int64) (*string, error)
	// SetImage stores the new image location and returns the previous one.
	SetImage(ctx context.Context, userID uuid.UUID, recipeID int64, location string) (*string, error)
}

type PostgresRecipeRepo struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresRecipeRepo(pgpool api.PgxPool, logger *slog.Logger) *PostgresRecipeRepo {
	return &PostgresRecipeRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// List implements recipe.RecipeRepo. The tag and ingredient filters each
// use OR semantics over their id set; together they intersect, always
// under the owner restriction. Newest recipes come first.
func (r *PostgresRecipeRepo) List(ctx context.Context, userID uuid.UUID, filter types.RecipeFilter) ([]types.Recipe, error) {
	ctx, span := otel.Tracer("RecipeRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "recipes"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "List"), slog.String("userID", userID.String()))

	query := `
        SELECT id, title, time_minutes, price, link, image, created_at
        FROM recipes
        WHERE user_id = $1`
	args := []any{userID}
	if len(filter.TagIDs) > 0 {
		args = append(args, filter.TagIDs)
		query += fmt.Sprintf(`
        AND EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.recipe_id = recipes.id AND rt.tag_id = ANY($%d))`, len(args))
	}
	if len(filter.IngredientIDs) > 0 {
		args = append(args, filter.IngredientIDs)
		query += fmt.Sprintf(`
        AND EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.recipe_id = recipes.id AND ri.ingredient_id = ANY($%d))`, len(args))
	}
	query += `
        ORDER BY id DESC`

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query recipes", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching recipes: %w", err)
	}
	defer rows.Close()

	recipes := []types.Recipe{}
	for rows.Next() {
		var rec types.Recipe
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.TimeMinutes, &rec.Price, &rec.Link, &rec.ImageLocation, &rec.CreatedAt); err != nil {
			l.ErrorContext(ctx, "Failed to scan recipe row", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning recipe: %w", err)
		}
		rec.UserID = userID
		rec.Tags = []int64{}
		rec.Ingredients = []int64{}
		recipes = append(recipes, rec)
	}
	if err = rows.Err(); err != nil {
		l.ErrorContext(ctx, "Error iterating recipe rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading recipes: %w", err)
	}

	if err := r.attachRelationIDs(ctx, recipes); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetStatus(codes.Ok, "Recipes fetched")
	return recipes, nil
}

// attachRelationIDs fills the tag/ingredient id sets for a listing with
// one query per relation instead of one per recipe.
func (r *PostgresRecipeRepo) attachRelationIDs(ctx context.Context, recipes []types.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	ids := make([]int64, len(recipes))
	index := make(map[int64]*types.Recipe, len(recipes))
	for i := range recipes {
		ids[i] = recipes[i].ID
		index[recipes[i].ID] = &recipes[i]
	}

	rows, err := r.pgpool.Query(ctx,
		"SELECT recipe_id, tag_id FROM recipe_tags WHERE recipe_id = ANY($1) ORDER BY tag_id", ids)
	if err != nil {
		return fmt.Errorf("database error fetching recipe tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var recipeID, tagID int64
		if err := rows.Scan(&recipeID, &tagID); err != nil {
			return fmt.Errorf("database error scanning recipe tag link: %w", err)
		}
		rec := index[recipeID]
		rec.Tags = append(rec.Tags, tagID)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("database error reading recipe tag links: %w", err)
	}

	rows, err = r.pgpool.Query(ctx,
		"SELECT recipe_id, ingredient_id FROM recipe_ingredients WHERE recipe_id = ANY($1) ORDER BY ingredient_id", ids)
	if err != nil {
		return fmt.Errorf("database error fetching recipe ingredients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var recipeID, ingredientID int64
		if err := rows.Scan(&recipeID, &ingredientID); err != nil {
			return fmt.Errorf("database error scanning recipe ingredient link: %w", err)
		}
		rec := index[recipeID]
		rec.Ingredients = append(rec.Ingredients, ingredientID)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("database error reading recipe ingredient links: %w", err)
	}

	return nil
}

// GetDetail implements recipe.RecipeRepo.
func (r *PostgresRecipeRepo) GetDetail(ctx context.Context, userID uuid.UUID, recipeID int64) (*types.RecipeDetail, error) {
	ctx, span := otel.Tracer("RecipeRepo").Start(ctx, "GetDetail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "recipes"),
		attribute.String("db.user.id", userID.String()),
		attribute.Int64("db.recipe.id", recipeID),
	))
	defer span.End()

	var detail types.RecipeDetail
	err := r.pgpool.QueryRow(ctx,
		"SELECT id, title, time_minutes, price, link, image FROM recipes WHERE id = $1 AND user_id = $2",
		recipeID, userID).Scan(&detail.ID, &detail.Title, &detail.TimeMinutes, &detail.Price, &detail.Link, &detail.Image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Recipe not found")
			return nil, fmt.Errorf("recipe not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching recipe: %w", err)
	}

	detail.Tags = []types.Tag{}
	rows, err := r.pgpool.Query(ctx, `
        SELECT t.id, t.name, t.user_id
        FROM tags t
        JOIN recipe_tags rt ON rt.tag_id = t.id
        WHERE rt.recipe_id = $1
        ORDER BY t.name DESC`, recipeID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error fetching recipe tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t types.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.UserID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning recipe tag: %w", err)
		}
		detail.Tags = append(detail.Tags, t)
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading recipe tags: %w", err)
	}

	detail.Ingredients = []types.Ingredient{}
	rows, err = r.pgpool.Query(ctx, `
        SELECT i.id, i.name, i.user_id
        FROM ingredients i
        JOIN recipe_ingredients ri ON ri.ingredient_id = i.id
        WHERE ri.recipe_id = $1
        ORDER BY i.name DESC`, recipeID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error fetching recipe ingredients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ing types.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.UserID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning recipe ingredient: %w", err)
		}
		detail.Ingredients = append(detail.Ingredients, ing)
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading recipe ingredients: %w", err)
	}

	span.SetStatus(codes.Ok, "Recipe fetched")
	return &detail, nil
}

// validateRelationIDs checks inside the transaction that every id resolves
// to a record owned by the caller. Relation ids are restricted to the
// recipe owner's own tags/ingredients.
func validateRelationIDs(ctx context.Context, tx pgx.Tx, table, field string, userID uuid.UUID, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	unique := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}

	var count int
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE id = ANY($1) AND user_id = $2", table)
	if err := tx.QueryRow(ctx, query, ids, userID).Scan(&count); err != nil {
		return fmt.Errorf("database error validating %s ids: %w", field, err)
	}
	if count != len(unique) {
		return types.NewFieldError(field, "one or more ids are invalid")
	}
	return nil
}

func replaceLinks(ctx context.Context, tx pgx.Tx, linkTable, column string, recipeID int64, ids []int64) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE recipe_id = $1", linkTable), recipeID); err != nil {
		return fmt.Errorf("database error clearing %s: %w", linkTable, err)
	}
	return insertLinks(ctx, tx, linkTable, column, recipeID, ids)
}

func insertLinks(ctx context.Context, tx pgx.Tx, linkTable, column string, recipeID int64, ids []int64) error {
	for _, id := range ids {
		query := fmt.Sprintf("INSERT INTO %s (recipe_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING", linkTable, column)
		if _, err := tx.Exec(ctx, query, recipeID, id); err != nil {
			return fmt.Errorf("database error linking %s: %w", linkTable, err)
		}
	}
	return nil
}

// Create implements recipe.RecipeRepo. The recipe row and its relation
// rows commit in one transaction; a failed relation id leaves nothing
// behind.
func (r *PostgresRecipeRepo) Create(ctx context.Context, userID uuid.UUID, params CreateRecipeParams) (*types.Recipe, error) {
	ctx, span := otel.Tracer("RecipeRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "recipes"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("userID", userID.String()))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := validateRelationIDs(ctx, tx, "tags", "tags", userID, params.Tags); err != nil {
		span.SetStatus(codes.Error, "Invalid tag ids")
		return nil, err
	}
	if err := validateRelationIDs(ctx, tx, "ingredients", "ingredients", userID, params.Ingredients); err != nil {
		span.SetStatus(codes.Error, "Invalid ingredient ids")
		return nil, err
	}

	rec := types.Recipe{
		Title:       params.Title,
		TimeMinutes: params.TimeMinutes,
		Price:       params.Price,
		Link:        params.Link,
		Tags:        params.Tags,
		Ingredients: params.Ingredients,
		UserID:      userID,
	}
	err = tx.QueryRow(ctx, `
        INSERT INTO recipes (user_id, title, time_minutes, price, link)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`,
		userID, params.Title, params.TimeMinutes, params.Price, params.Link).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert recipe", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating recipe: %w", err)
	}

	if err := insertLinks(ctx, tx, "recipe_tags", "tag_id", rec.ID, params.Tags); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := insertLinks(ctx, tx, "recipe_ingredients", "ingredient_id", rec.ID, params.Ingredients); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error committing recipe: %w", err)
	}

	l.InfoContext(ctx, "Recipe created", slog.Int64("recipe_id", rec.ID))
	span.SetAttributes(attribute.Int64("db.recipe.id", rec.ID))
	span.SetStatus(codes.Ok, "Recipe created")
	return &rec, nil
}

// Update implements recipe.RecipeRepo.
func (r *PostgresRecipeRepo) Update(ctx context.Context, userID uuid.UUID, recipeID int64, params UpdateRecipeParams) error {
	ctx, span := otel.Tracer("RecipeRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "recipes"),
		attribute.String("db.user.id", userID.String()),
		attribute.Int64("db.recipe.id", recipeID),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Update"), slog.String("userID", userID.String()), slog.Int64("recipeID", recipeID))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if params.Tags != nil {
		if err := validateRelationIDs(ctx, tx, "tags", "tags", userID, *params.Tags); err != nil {
			span.SetStatus(codes.Error, "Invalid tag ids")
			return err
		}
	}
	if params.Ingredients != nil {
		if err := validateRelationIDs(ctx, tx, "ingredients", "ingredients", userID, *params.Ingredients); err != nil {
			span.SetStatus(codes.Error, "Invalid ingredient ids")
			return err
		}
	}

	tag, err := tx.Exec(ctx, `
        UPDATE recipes
        SET title = COALESCE($1, title),
            time_minutes = COALESCE($2, time_minutes),
            price = COALESCE($3, price),
            link = COALESCE($4, link)
        WHERE id = $5 AND user_id = $6`,
		params.Title, params.TimeMinutes, params.Price, params.Link, recipeID, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update recipe", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Recipe not found")
		return fmt.Errorf("recipe not found: %w", types.ErrNotFound)
	}

	if params.Tags != nil {
		if err := replaceLinks(ctx, tx, "recipe_tags", "tag_id", recipeID, *params.Tags); err != nil {
			span.RecordError(err)
			return err
		}
	}
	if params.Ingredients != nil {
		if err := replaceLinks(ctx, tx, "recipe_ingredients", "ingredient_id", recipeID, *params.Ingredients); err != nil {
			span.RecordError(err)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("database error committing recipe update: %w", err)
	}

	l.InfoContext(ctx, "Recipe updated")
	span.SetStatus(codes.Ok, "Recipe updated")
	return nil
}

// Delete implements recipe.RecipeRepo.
func (r *PostgresRecipeRepo) Delete(ctx context.Context, userID uuid.UUID, recipeID int64) (*string, error) {
	ctx, span := otel.Tracer("RecipeRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "recipes"),
		attribute.String("db.user.id", userID.String()),
		attribute.Int64("db.recipe.id", recipeID),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Delete"), slog.String("userID", userID.String()), slog.Int64("recipeID", recipeID))

	var image *string
	err := r.pgpool.QueryRow(ctx,
		"DELETE FROM recipes WHERE id = $1 AND user_id = $2 RETURNING image",
		recipeID, userID).Scan(&image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Recipe not found")
			return nil, fmt.Errorf("recipe not found: %w", types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to delete recipe", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return nil, fmt.Errorf("database error deleting recipe: %w", err)
	}

	l.InfoContext(ctx, "Recipe deleted")
	span.SetStatus(codes.Ok, "Recipe deleted")
	return image, nil
}

// SetImage implements recipe.RecipeRepo.
func (r *PostgresRecipeRepo) SetImage(ctx context.Context, userID uuid.UUID, recipeID int64, location string) (*string, error) {
	ctx, span := otel.Tracer("RecipeRepo").Start(ctx, "SetImage", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "recipes"),
		attribute.String("db.user.id", userID.String()),
		attribute.Int64("db.recipe.id", recipeID),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var previous *string
	err = tx.QueryRow(ctx,
		"SELECT image FROM recipes WHERE id = $1 AND user_id = $2 FOR UPDATE",
		recipeID, userID).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Recipe not found")
			return nil, fmt.Errorf("recipe not found: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching recipe image: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE recipes SET image = $1 WHERE id = $2 AND user_id = $3",
		location, recipeID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error storing recipe image: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error committing recipe image: %w", err)
	}

	span.SetStatus(codes.Ok, "Recipe image stored")
	return previous, nil
}
