package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"hackhub/backend/internal/model"
	"hackhub/backend/internal/pkg/httputils"
	"hackhub/backend/internal/service"
)

type UserHandler struct {
	identity *service.IdentityService
}

func NewUserHandler(identity *service.IdentityService) *UserHandler {
	return &UserHandler{identity: identity}
}

func (h *UserHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.login).Methods("POST", "OPTIONS")
	router.HandleFunc("/users/me/push-token", RequireAuth(h.registerPushToken)).Methods("PUT", "OPTIONS")
	router.HandleFunc("/users/{id}", RequireAuth(h.resolve)).Methods("GET", "OPTIONS")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param Credentials body loginRequest true "Credentials"
// @Success 200 {object} loginResponse
// @Failure 401 {object} httputils.ErrorResponse
// @Router /auth/login [post]
func (h *UserHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	token, user, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httputils.ResponseError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		httputils.ResponseError(w, http.StatusInternalServerError, "server error")
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

// @Summary Register device push token
// @Tags users
// @Accept json
// @Produce json
// @Param Token body pushTokenRequest true "Device token"
// @Success 204
// @Failure 401 {object} httputils.ErrorResponse
// @Router /users/me/push-token [put]
func (h *UserHandler) registerPushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	if err := h.identity.RegisterPushToken(r.Context(), requestUserID(r), req.Token); err != nil {
		if errors.Is(err, service.ErrUnknownSender) {
			httputils.ResponseError(w, http.StatusNotFound, "user not found")
			return
		}
		httputils.ResponseError(w, http.StatusInternalServerError, "server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Resolve a user profile
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} model.User
// @Failure 404 {object} httputils.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) resolve(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.ResolveUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, service.ErrUnknownSender) {
			httputils.ResponseError(w, http.StatusNotFound, "user not found")
			return
		}
		httputils.ResponseError(w, http.StatusInternalServerError, "server error")
		return
	}
	httputils.ResponseJSON(w, http.StatusOK, user)
}
