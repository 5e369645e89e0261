package recipe

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmoura/go-recipe-api/internal/types"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRecipeRepo) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, NewPostgresRecipeRepo(mockPool, slog.Default())
}

func TestPostgresRecipeRepo_List(t *testing.T) {
	t.Run("TagFilterAddsExistsClause", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()
		now := time.Now()

		mockPool.ExpectQuery("AND EXISTS \\(SELECT 1 FROM recipe_tags").
			WithArgs(userID, []int64{1, 2}).
			WillReturnRows(pgxmock.NewRows([]string{"id", "title", "time_minutes", "price", "link", "image", "created_at"}).
				AddRow(int64(9), "Chocolate cheesecake", 30, 5.50, (*string)(nil), (*string)(nil), now))
		mockPool.ExpectQuery("FROM recipe_tags WHERE recipe_id = ANY").
			WithArgs([]int64{9}).
			WillReturnRows(pgxmock.NewRows([]string{"recipe_id", "tag_id"}).
				AddRow(int64(9), int64(1)).
				AddRow(int64(9), int64(2)))
		mockPool.ExpectQuery("FROM recipe_ingredients WHERE recipe_id = ANY").
			WithArgs([]int64{9}).
			WillReturnRows(pgxmock.NewRows([]string{"recipe_id", "ingredient_id"}))

		recipes, err := repo.List(context.Background(), userID, types.RecipeFilter{TagIDs: []int64{1, 2}})

		require.NoError(t, err)
		require.Len(t, recipes, 1)
		assert.Equal(t, []int64{1, 2}, recipes[0].Tags)
		assert.Empty(t, recipes[0].Ingredients)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("EmptyListingSkipsRelationQueries", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()

		mockPool.ExpectQuery("FROM recipes").
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "title", "time_minutes", "price", "link", "image", "created_at"}))

		recipes, err := repo.List(context.Background(), userID, types.RecipeFilter{})

		require.NoError(t, err)
		assert.NotNil(t, recipes)
		assert.Empty(t, recipes)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRecipeRepo_Create(t *testing.T) {
	t.Run("CommitsRecipeAndLinks", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()
		now := time.Now()

		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT count\\(\\*\\) FROM tags").
			WithArgs([]int64{1}, userID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
		mockPool.ExpectQuery("INSERT INTO recipes").
			WithArgs(userID, "Chocolate cheesecake", 30, 5.50, (*string)(nil)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(10), now))
		mockPool.ExpectExec("INSERT INTO recipe_tags").
			WithArgs(int64(10), int64(1)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		rec, err := repo.Create(context.Background(), userID, CreateRecipeParams{
			Title:       "Chocolate cheesecake",
			TimeMinutes: 30,
			Price:       5.50,
			Tags:        []int64{1},
			Ingredients: []int64{},
		})

		require.NoError(t, err)
		assert.Equal(t, int64(10), rec.ID)
		assert.Equal(t, userID, rec.UserID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("ForeignTagIDRollsBack", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()

		// A tag owned by someone else does not count, so nothing commits.
		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT count\\(\\*\\) FROM tags").
			WithArgs([]int64{99}, userID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
		mockPool.ExpectRollback()

		_, err := repo.Create(context.Background(), userID, CreateRecipeParams{
			Title:       "Chocolate cheesecake",
			TimeMinutes: 30,
			Price:       5.50,
			Tags:        []int64{99},
			Ingredients: []int64{},
		})

		assert.ErrorIs(t, err, types.ErrValidation)
		var fe types.FieldErrors
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, fe, "tags")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRecipeRepo_Update(t *testing.T) {
	t.Run("NotFoundForForeignOrMissingRecipe", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()
		title := "New title"

		mockPool.ExpectBegin()
		mockPool.ExpectExec("UPDATE recipes").
			WithArgs(&title, (*int)(nil), (*float64)(nil), (*string)(nil), int64(5), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectRollback()

		err := repo.Update(context.Background(), userID, 5, UpdateRecipeParams{Title: &title})

		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("ReplacesRelationSet", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()
		tags := []int64{3}

		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT count\\(\\*\\) FROM tags").
			WithArgs(tags, userID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
		mockPool.ExpectExec("UPDATE recipes").
			WithArgs((*string)(nil), (*int)(nil), (*float64)(nil), (*string)(nil), int64(5), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec("DELETE FROM recipe_tags").
			WithArgs(int64(5)).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		mockPool.ExpectExec("INSERT INTO recipe_tags").
			WithArgs(int64(5), int64(3)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		err := repo.Update(context.Background(), userID, 5, UpdateRecipeParams{Tags: &tags})

		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRecipeRepo_Delete(t *testing.T) {
	t.Run("ReturnsImageLocation", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()
		location := "uploads/recipe/abc.png"

		mockPool.ExpectQuery("DELETE FROM recipes").
			WithArgs(int64(3), userID).
			WillReturnRows(pgxmock.NewRows([]string{"image"}).AddRow(&location))

		image, err := repo.Delete(context.Background(), userID, 3)

		require.NoError(t, err)
		require.NotNil(t, image)
		assert.Equal(t, location, *image)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()

		mockPool.ExpectQuery("DELETE FROM recipes").
			WithArgs(int64(3), userID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Delete(context.Background(), userID, 3)

		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresRecipeRepo_SetImage(t *testing.T) {
	t.Run("ReturnsPreviousLocation", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()
		previous := "uploads/recipe/old.png"

		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT image FROM recipes").
			WithArgs(int64(5), userID).
			WillReturnRows(pgxmock.NewRows([]string{"image"}).AddRow(&previous))
		mockPool.ExpectExec("UPDATE recipes SET image").
			WithArgs("uploads/recipe/new.png", int64(5), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()

		got, err := repo.SetImage(context.Background(), userID, 5, "uploads/recipe/new.png")

		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, previous, *got)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()

		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT image FROM recipes").
			WithArgs(int64(5), userID).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectRollback()

		_, err := repo.SetImage(context.Background(), userID, 5, "uploads/recipe/new.png")

		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
