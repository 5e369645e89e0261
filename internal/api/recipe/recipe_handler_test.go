package recipe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pmoura/go-recipe-api/internal/api/auth"
	"github.com/pmoura/go-recipe-api/internal/types"
)

// MockRecipeService is a mock implementation of the Service interface
type MockRecipeService struct {
	mock.Mock
}

func (m *MockRecipeService) List(ctx context.Context, userID uuid.UUID, filter types.RecipeFilter) ([]types.Recipe, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Recipe), args.Error(1)
}

func (m *MockRecipeService) Get(ctx context.Context, userID uuid.UUID, recipeID int64) (*types.RecipeDetail, error) {
	args := m.Called(ctx, userID, recipeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RecipeDetail), args.Error(1)
}

func (m *MockRecipeService) Create(ctx context.Context, userID uuid.UUID, req types.CreateRecipeRequest) (*types.Recipe, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Recipe), args.Error(1)
}

func (m *MockRecipeService) FullUpdate(ctx context.Context, userID uuid.UUID, recipeID int64, req types.CreateRecipeRequest) (*types.RecipeDetail, error) {
	args := m.Called(ctx, userID, recipeID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RecipeDetail), args.Error(1)
}

func (m *MockRecipeService) Patch(ctx context.Context, userID uuid.UUID, recipeID int64, req types.PatchRecipeRequest) (*types.RecipeDetail, error) {
	args := m.Called(ctx, userID, recipeID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RecipeDetail), args.Error(1)
}

func (m *MockRecipeService) Delete(ctx context.Context, userID uuid.UUID, recipeID int64) error {
	args := m.Called(ctx, userID, recipeID)
	return args.Error(0)
}

func (m *MockRecipeService) AttachImage(ctx context.Context, userID uuid.UUID, recipeID int64, filename string, data []byte) (*types.RecipeImageResponse, error) {
	args := m.Called(ctx, userID, recipeID, filename, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RecipeImageResponse), args.Error(1)
}

func authenticatedRequest(req *http.Request, caller types.AuthenticatedUser) *http.Request {
	return req.WithContext(auth.ContextWithUser(req.Context(), caller))
}

func withRecipeID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("recipeID", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestListRecipesHandler(t *testing.T) {
	logger := slog.Default()
	caller := types.AuthenticatedUser{ID: uuid.New(), Email: "test@example.com"}

	t.Run("RequiresAuthentication", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		req := httptest.NewRequest(http.MethodGet, "/recipe/recipes", nil)
		rr := httptest.NewRecorder()
		handler.ListRecipesHandler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		service.AssertNotCalled(t, "List")
	})

	t.Run("ParsesRelationFilters", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		service.On("List", mock.Anything, caller.ID, types.RecipeFilter{
			TagIDs:        []int64{1, 2},
			IngredientIDs: []int64{7},
		}).Return([]types.Recipe{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/recipe/recipes?tags=1,2&ingredients=7", nil)
		rr := httptest.NewRecorder()
		handler.ListRecipesHandler(rr, authenticatedRequest(req, caller))

		assert.Equal(t, http.StatusOK, rr.Code)
		service.AssertExpectations(t)
	})

	t.Run("MalformedFilterIDs", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		req := httptest.NewRequest(http.MethodGet, "/recipe/recipes?tags=1,abc", nil)
		rr := httptest.NewRecorder()
		handler.ListRecipesHandler(rr, authenticatedRequest(req, caller))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		service.AssertNotCalled(t, "List")
	})
}

func TestCreateRecipeHandler(t *testing.T) {
	logger := slog.Default()
	caller := types.AuthenticatedUser{ID: uuid.New(), Email: "test@example.com"}

	t.Run("Created", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		req := types.CreateRecipeRequest{Title: "Chocolate cheesecake", TimeMinutes: 30, Price: 5.50}
		service.On("Create", mock.Anything, caller.ID, req).
			Return(&types.Recipe{ID: 1, Title: req.Title, TimeMinutes: 30, Price: 5.50, Tags: []int64{}, Ingredients: []int64{}}, nil).Once()

		body, _ := json.Marshal(req)
		httpReq := httptest.NewRequest(http.MethodPost, "/recipe/recipes", bytes.NewReader(body))
		httpReq.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		handler.CreateRecipeHandler(rr, authenticatedRequest(httpReq, caller))

		assert.Equal(t, http.StatusCreated, rr.Code)
		var rec types.Recipe
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
		assert.Equal(t, int64(1), rec.ID)
		assert.NotNil(t, rec.Tags)
		assert.NotNil(t, rec.Ingredients)
		service.AssertExpectations(t)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		service.On("Create", mock.Anything, caller.ID, types.CreateRecipeRequest{}).
			Return(nil, types.FieldErrors{"title": {"this field may not be blank"}}).Once()

		httpReq := httptest.NewRequest(http.MethodPost, "/recipe/recipes", bytes.NewReader([]byte("{}")))
		httpReq.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		handler.CreateRecipeHandler(rr, authenticatedRequest(httpReq, caller))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		service.AssertExpectations(t)
	})
}

func TestGetRecipeHandler(t *testing.T) {
	logger := slog.Default()
	caller := types.AuthenticatedUser{ID: uuid.New(), Email: "test@example.com"}

	t.Run("ForeignOrMissingRecipeIs404", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		service.On("Get", mock.Anything, caller.ID, int64(42)).
			Return(nil, types.ErrNotFound).Once()

		req := withRecipeID(httptest.NewRequest(http.MethodGet, "/recipe/recipes/42", nil), "42")
		rr := httptest.NewRecorder()
		handler.GetRecipeHandler(rr, authenticatedRequest(req, caller))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		service.AssertExpectations(t)
	})

	t.Run("NonNumericIDIs404", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		req := withRecipeID(httptest.NewRequest(http.MethodGet, "/recipe/recipes/abc", nil), "abc")
		rr := httptest.NewRecorder()
		handler.GetRecipeHandler(rr, authenticatedRequest(req, caller))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		service.AssertNotCalled(t, "Get")
	})

	t.Run("ReturnsDetailShape", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		detail := &types.RecipeDetail{
			ID: 7, Title: "Chocolate cheesecake", TimeMinutes: 30, Price: 5.50,
			Tags:        []types.Tag{{ID: 1, Name: "Dessert"}},
			Ingredients: []types.Ingredient{{ID: 2, Name: "Chocolate"}},
		}
		service.On("Get", mock.Anything, caller.ID, int64(7)).Return(detail, nil).Once()

		req := withRecipeID(httptest.NewRequest(http.MethodGet, "/recipe/recipes/7", nil), "7")
		rr := httptest.NewRecorder()
		handler.GetRecipeHandler(rr, authenticatedRequest(req, caller))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got types.RecipeDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got.Tags, 1)
		assert.Equal(t, "Dessert", got.Tags[0].Name)
		service.AssertExpectations(t)
	})
}

func TestDeleteRecipeHandler(t *testing.T) {
	logger := slog.Default()
	caller := types.AuthenticatedUser{ID: uuid.New(), Email: "test@example.com"}

	t.Run("NoContentOnSuccess", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		service.On("Delete", mock.Anything, caller.ID, int64(3)).Return(nil).Once()

		req := withRecipeID(httptest.NewRequest(http.MethodDelete, "/recipe/recipes/3", nil), "3")
		rr := httptest.NewRecorder()
		handler.DeleteRecipeHandler(rr, authenticatedRequest(req, caller))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.Bytes())
		service.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		service.On("Delete", mock.Anything, caller.ID, int64(3)).Return(types.ErrNotFound).Once()

		req := withRecipeID(httptest.NewRequest(http.MethodDelete, "/recipe/recipes/3", nil), "3")
		rr := httptest.NewRecorder()
		handler.DeleteRecipeHandler(rr, authenticatedRequest(req, caller))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		service.AssertExpectations(t)
	})
}

func multipartImageRequest(t *testing.T, target, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.Copy(part, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadImageHandler(t *testing.T) {
	logger := slog.Default()
	caller := types.AuthenticatedUser{ID: uuid.New(), Email: "test@example.com"}

	t.Run("Accepted", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)
		data := pngBytes(t)

		service.On("AttachImage", mock.Anything, caller.ID, int64(5), "photo.png", data).
			Return(&types.RecipeImageResponse{ID: 5, Image: "uploads/recipe/abc.png"}, nil).Once()

		req := multipartImageRequest(t, "/recipe/recipes/5/upload-image", "image", "photo.png", data)
		req = withRecipeID(req, "5")
		rr := httptest.NewRecorder()
		handler.UploadImageHandler(rr, authenticatedRequest(req, caller))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp types.RecipeImageResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, int64(5), resp.ID)
		assert.Equal(t, "uploads/recipe/abc.png", resp.Image)
		service.AssertExpectations(t)
	})

	t.Run("NonImagePayload", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)
		data := []byte("notanimage")

		service.On("AttachImage", mock.Anything, caller.ID, int64(5), "notes.txt", data).
			Return(nil, types.NewFieldError("image", "upload a valid image, the file you uploaded was either not an image or a corrupted image")).Once()

		req := multipartImageRequest(t, "/recipe/recipes/5/upload-image", "image", "notes.txt", data)
		req = withRecipeID(req, "5")
		rr := httptest.NewRecorder()
		handler.UploadImageHandler(rr, authenticatedRequest(req, caller))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		service.AssertExpectations(t)
	})

	t.Run("MissingImageField", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		req := multipartImageRequest(t, "/recipe/recipes/5/upload-image", "file", "photo.png", pngBytes(t))
		req = withRecipeID(req, "5")
		rr := httptest.NewRecorder()
		handler.UploadImageHandler(rr, authenticatedRequest(req, caller))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		service.AssertNotCalled(t, "AttachImage")
	})

	t.Run("RequiresAuthentication", func(t *testing.T) {
		service := new(MockRecipeService)
		handler := NewHandler(service, logger)

		req := multipartImageRequest(t, "/recipe/recipes/5/upload-image", "image", "photo.png", pngBytes(t))
		req = withRecipeID(req, "5")
		rr := httptest.NewRecorder()
		handler.UploadImageHandler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		service.AssertNotCalled(t, "AttachImage")
	})
}
