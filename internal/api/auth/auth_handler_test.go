package auth

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pmoura/go-recipe-api/internal/types"
)

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegisterHandler(t *testing.T) {
	logger := slog.Default()

	t.Run("Created", func(t *testing.T) {
		service := new(MockAuthService)
		handler := NewHandler(service, logger)

		user := &types.User{ID: uuid.New(), Email: "test@example.com", Name: "Test", PasswordHash: "secret-hash"}
		service.On("Register", mock.Anything, "test@example.com", "password123", "Test").
			Return(user, nil).Once()

		req := jsonRequest(t, http.MethodPost, "/user/create", types.RegisterUserRequest{
			Email: "test@example.com", Password: "password123", Name: "Test",
		})
		rr := httptest.NewRecorder()
		handler.RegisterHandler(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var resp types.UserResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, user.ID, resp.ID)
		assert.Equal(t, "test@example.com", resp.Email)
		// The password must never leave the server in any form.
		assert.NotContains(t, rr.Body.String(), "password")
		assert.NotContains(t, rr.Body.String(), "secret-hash")
		service.AssertExpectations(t)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		service := new(MockAuthService)
		handler := NewHandler(service, logger)

		service.On("Register", mock.Anything, "", "pw", "").
			Return(nil, types.FieldErrors{
				"email":    {"user must have an email address"},
				"password": {"password must be at least 5 characters"},
			}).Once()

		req := jsonRequest(t, http.MethodPost, "/user/create", types.RegisterUserRequest{Email: "", Password: "pw"})
		rr := httptest.NewRecorder()
		handler.RegisterHandler(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp struct {
			Errors map[string][]string `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp.Errors, "email")
		assert.Contains(t, resp.Errors, "password")
		service.AssertExpectations(t)
	})
}

func TestTokenHandler(t *testing.T) {
	logger := slog.Default()

	t.Run("Issued", func(t *testing.T) {
		service := new(MockAuthService)
		handler := NewHandler(service, logger)

		service.On("IssueToken", mock.Anything, "test@example.com", "password123").
			Return("sometoken", nil).Once()

		req := jsonRequest(t, http.MethodPost, "/user/token", types.TokenRequest{
			Email: "test@example.com", Password: "password123",
		})
		rr := httptest.NewRecorder()
		handler.TokenHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp types.TokenResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "sometoken", resp.Token)
		service.AssertExpectations(t)
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		service := new(MockAuthService)
		handler := NewHandler(service, logger)

		service.On("IssueToken", mock.Anything, "test@example.com", "wrongpass").
			Return("", types.ErrInvalidCredentials).Once()

		req := jsonRequest(t, http.MethodPost, "/user/token", types.TokenRequest{
			Email: "test@example.com", Password: "wrongpass",
		})
		rr := httptest.NewRecorder()
		handler.TokenHandler(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.NotContains(t, rr.Body.String(), "token")
		service.AssertExpectations(t)
	})
}

func TestGetMeHandler(t *testing.T) {
	logger := slog.Default()

	t.Run("Unauthenticated", func(t *testing.T) {
		service := new(MockAuthService)
		handler := NewHandler(service, logger)

		req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
		rr := httptest.NewRecorder()
		handler.GetMeHandler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		service.AssertNotCalled(t, "GetProfile")
	})

	t.Run("Success", func(t *testing.T) {
		service := new(MockAuthService)
		handler := NewHandler(service, logger)
		caller := types.AuthenticatedUser{ID: uuid.New(), Email: "test@example.com"}

		service.On("GetProfile", mock.Anything, caller.ID).
			Return(&types.User{ID: caller.ID, Email: caller.Email, Name: "Test"}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
		req = req.WithContext(ContextWithUser(req.Context(), caller))
		rr := httptest.NewRecorder()
		handler.GetMeHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp types.UserResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, caller.Email, resp.Email)
		service.AssertExpectations(t)
	})
}

func TestUpdateMeHandler(t *testing.T) {
	logger := slog.Default()
	caller := types.AuthenticatedUser{ID: uuid.New(), Email: "test@example.com"}

	t.Run("PutRequiresAllFields", func(t *testing.T) {
		service := new(MockAuthService)
		handler := NewHandler(service, logger)

		req := jsonRequest(t, http.MethodPut, "/user/me", map[string]string{"name": "Only Name"})
		req = req.WithContext(ContextWithUser(req.Context(), caller))
		rr := httptest.NewRecorder()
		handler.UpdateMeHandler(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp struct {
			Errors map[string][]string `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp.Errors, "email")
		assert.Contains(t, resp.Errors, "password")
		service.AssertNotCalled(t, "UpdateProfile")
	})

	t.Run("PatchAllowsPartialUpdate", func(t *testing.T) {
		service := new(MockAuthService)
		handler := NewHandler(service, logger)
		newName := "New Name"

		service.On("UpdateProfile", mock.Anything, caller.ID, types.UpdateProfileParams{Name: &newName}).
			Return(&types.User{ID: caller.ID, Email: caller.Email, Name: newName}, nil).Once()

		req := jsonRequest(t, http.MethodPatch, "/user/me", map[string]string{"name": newName})
		req = req.WithContext(ContextWithUser(req.Context(), caller))
		rr := httptest.NewRecorder()
		handler.UpdateMeHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp types.UserResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, newName, resp.Name)
		service.AssertExpectations(t)
	})
}
