package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackhub/backend/internal/model"
)

func TestLogin(t *testing.T) {
	api := newTestAPI(t)
	require.NoError(t, api.users.Create(context.Background(), &model.User{
		ID:           "u-carol",
		Name:         "Carol",
		Email:        "carol@example.com",
		PasswordHash: mustHash(t, "hunter2"),
	}))

	rr := api.request(t, "POST", "/api/auth/login", "", map[string]string{
		"email":    "carol@example.com",
		"password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "u-carol", resp.User.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	api := newTestAPI(t)
	require.NoError(t, api.users.Create(context.Background(), &model.User{
		ID:           "u-carol",
		Email:        "carol@example.com",
		PasswordHash: mustHash(t, "hunter2"),
	}))

	rr := api.request(t, "POST", "/api/auth/login", "", map[string]string{
		"email":    "carol@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRegisterPushToken(t *testing.T) {
	api := newTestAPI(t)

	rr := api.request(t, "PUT", "/api/users/me/push-token", "u-alice", map[string]string{"token": "device-123"})
	require.Equal(t, http.StatusNoContent, rr.Code)

	user, err := api.users.GetByID(context.Background(), "u-alice")
	require.NoError(t, err)
	assert.Equal(t, "device-123", user.PushToken)
}

func TestResolveUser(t *testing.T) {
	api := newTestAPI(t)

	rr := api.request(t, "GET", "/api/users/u-bob", "u-alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var user model.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	assert.Equal(t, "Bob", user.Name)

	rr = api.request(t, "GET", "/api/users/nobody", "u-alice", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
