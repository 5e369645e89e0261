package tag

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmoura/go-recipe-api/internal/types"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresTagRepo) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, NewPostgresTagRepo(mockPool, slog.Default())
}

func TestPostgresTagRepo_List(t *testing.T) {
	t.Run("OwnerScoped", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()

		mockPool.ExpectQuery("SELECT id, name, user_id\\s+FROM tags\\s+WHERE user_id = \\$1\\s+ORDER BY name DESC").
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "user_id"}).
				AddRow(int64(2), "Vegan", userID).
				AddRow(int64(1), "Dessert", userID))

		tags, err := repo.List(context.Background(), userID, types.AttributeFilter{})

		require.NoError(t, err)
		require.Len(t, tags, 2)
		assert.Equal(t, "Vegan", tags[0].Name)
		assert.Equal(t, "Dessert", tags[1].Name)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("AssignedOnlyAddsExistsClause", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()

		mockPool.ExpectQuery("AND EXISTS \\(SELECT 1 FROM recipe_tags").
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "user_id"}).
				AddRow(int64(1), "Dinner", userID))

		tags, err := repo.List(context.Background(), userID, types.AttributeFilter{AssignedOnly: true})

		require.NoError(t, err)
		require.Len(t, tags, 1)
		assert.Equal(t, "Dinner", tags[0].Name)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("EmptyResultIsEmptySlice", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()

		mockPool.ExpectQuery("FROM tags").
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "user_id"}))

		tags, err := repo.List(context.Background(), userID, types.AttributeFilter{})

		require.NoError(t, err)
		assert.NotNil(t, tags)
		assert.Empty(t, tags)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresTagRepo_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		userID := uuid.New()

		mockPool.ExpectQuery("INSERT INTO tags").
			WithArgs("Dessert", userID).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

		tag, err := repo.Create(context.Background(), userID, "Dessert")

		require.NoError(t, err)
		assert.Equal(t, int64(7), tag.ID)
		assert.Equal(t, "Dessert", tag.Name)
		assert.Equal(t, userID, tag.UserID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
