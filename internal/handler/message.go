package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"hackhub/backend/internal/model"
	"hackhub/backend/internal/pkg/httputils"
	"hackhub/backend/internal/repository"
	"hackhub/backend/internal/service"
	"hackhub/backend/internal/ws"
)

// MessageHandler is the REST surface. Reads go straight to the store; writes
// go through the lifecycle engine and are echoed onto the live channel.
type MessageHandler struct {
	engine   *service.Engine
	messages repository.MessageRepository
	users    repository.UserRepository
	hub      *ws.Hub
}

func NewMessageHandler(engine *service.Engine, messages repository.MessageRepository, users repository.UserRepository, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{engine: engine, messages: messages, users: users, hub: hub}
}

func (h *MessageHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/messages/search", RequireAuth(h.search)).Methods("GET", "OPTIONS")
	router.HandleFunc("/messages/delivered", RequireAuth(h.markDelivered)).Methods("POST", "OPTIONS")
	router.HandleFunc("/messages/system", RequireAuth(h.createSystem)).Methods("POST", "OPTIONS")
	router.HandleFunc("/messages/user/{userId}", RequireAuth(h.byAuthor)).Methods("GET", "OPTIONS")
	router.HandleFunc("/messages", RequireAuth(h.list)).Methods("GET", "OPTIONS")
	router.HandleFunc("/messages", RequireAuth(h.create)).Methods("POST", "OPTIONS")
	router.HandleFunc("/messages/{id}", RequireAuth(h.edit)).Methods("PUT", "OPTIONS")
	router.HandleFunc("/messages/{id}", RequireAuth(h.remove)).Methods("DELETE", "OPTIONS")
}

type messagePage struct {
	Messages []*model.Message `json:"messages"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Total    int64            `json:"total"`
	HasMore  bool             `json:"hasMore"`
}

// @Summary List messages
// @Description Paginated, oldest-first page of non-deleted messages for a channel
// @Tags messages
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param channel query string false "Channel name"
// @Success 200 {object} messagePage
// @Failure 401 {object} httputils.ErrorResponse
// @Router /messages [get]
func (h *MessageHandler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = model.DefaultChannel
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	messages, total, hasMore, err := h.messages.PageByNumber(r.Context(), channel, page, limit)
	if err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, messagePage{
		Messages: presentAll(messages),
		Page:     page,
		Limit:    limit,
		Total:    total,
		HasMore:  hasMore,
	})
}

type createMessageRequest struct {
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

// @Summary Create message
// @Description Create a text message. Media and replies are the real-time path's business.
// @Tags messages
// @Accept json
// @Produce json
// @Param MessageData body createMessageRequest true "Message data"
// @Success 201 {object} model.Message
// @Failure 400 {object} httputils.ErrorResponse
// @Failure 429 {object} httputils.ErrorResponse
// @Router /messages [post]
func (h *MessageHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	msg, err := h.engine.Create(r.Context(), service.CreateParams{
		SenderID: requestUserID(r),
		Channel:  req.Channel,
		Text:     req.Text,
	})
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	h.hub.Broadcast(msg.Channel, ws.OutEvent{
		Type:      ws.EventMessageCreated,
		Message:   msg.Presentable(),
		MessageID: msg.ID,
	})
	httputils.ResponseJSON(w, http.StatusCreated, msg.Presentable())
}

type editMessageRequest struct {
	Text string `json:"text"`
}

// @Summary Edit message
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param MessageData body editMessageRequest true "New text"
// @Success 200 {object} model.Message
// @Failure 403 {object} httputils.ErrorResponse
// @Failure 404 {object} httputils.ErrorResponse
// @Router /messages/{id} [put]
func (h *MessageHandler) edit(w http.ResponseWriter, r *http.Request) {
	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	msg, err := h.engine.Edit(r.Context(), mux.Vars(r)["id"], requestUserID(r), req.Text)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	h.broadcastUpdate(msg)
	httputils.ResponseJSON(w, http.StatusOK, msg.Presentable())
}

// @Summary Delete message
// @Description Soft-delete. Allowed for the author or an admin.
// @Tags messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} model.Message
// @Failure 403 {object} httputils.ErrorResponse
// @Failure 404 {object} httputils.ErrorResponse
// @Router /messages/{id} [delete]
func (h *MessageHandler) remove(w http.ResponseWriter, r *http.Request) {
	msg, err := h.engine.Delete(r.Context(), mux.Vars(r)["id"], requestUserID(r))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	h.broadcastUpdate(msg)
	httputils.ResponseJSON(w, http.StatusOK, msg.Presentable())
}

// @Summary Search messages
// @Tags messages
// @Produce json
// @Param query query string true "Search query"
// @Param channel query string false "Channel name"
// @Success 200 {array} model.Message
// @Router /messages/search [get]
func (h *MessageHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		httputils.ResponseError(w, http.StatusBadRequest, "query is required")
		return
	}

	messages, err := h.messages.Search(r.Context(), r.URL.Query().Get("channel"), query, 50)
	if err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "failed to search messages")
		return
	}
	httputils.ResponseJSON(w, http.StatusOK, presentAll(messages))
}

// @Summary Messages by author
// @Tags messages
// @Produce json
// @Param userId path string true "Author ID"
// @Param limit query int false "Max results"
// @Success 200 {array} model.Message
// @Router /messages/user/{userId} [get]
func (h *MessageHandler) byAuthor(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.messages.ByAuthor(r.Context(), mux.Vars(r)["userId"], limit)
	if err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	httputils.ResponseJSON(w, http.StatusOK, presentAll(messages))
}

type markDeliveredRequest struct {
	MessageIDs []string `json:"messageIds"`
}

type markDeliveredResponse struct {
	Updated int64 `json:"updated"`
}

// @Summary Mark messages delivered
// @Description Bulk status transition sent → delivered
// @Tags messages
// @Accept json
// @Produce json
// @Param MessageIDs body markDeliveredRequest true "Message IDs"
// @Success 200 {object} markDeliveredResponse
// @Router /messages/delivered [post]
func (h *MessageHandler) markDelivered(w http.ResponseWriter, r *http.Request) {
	var req markDeliveredRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	updated, err := h.engine.MarkDelivered(r.Context(), req.MessageIDs)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	httputils.ResponseJSON(w, http.StatusOK, markDeliveredResponse{Updated: updated})
}

type systemMessageRequest struct {
	Channel string `json:"channel"`
	Notice  string `json:"notice"`
}

// @Summary Post a system notice
// @Description Admin only
// @Tags messages
// @Accept json
// @Produce json
// @Param Notice body systemMessageRequest true "Notice"
// @Success 201 {object} model.Message
// @Failure 403 {object} httputils.ErrorResponse
// @Router /messages/system [post]
func (h *MessageHandler) createSystem(w http.ResponseWriter, r *http.Request) {
	requester, err := h.users.GetByID(r.Context(), requestUserID(r))
	if err != nil {
		httputils.ResponseError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	if !requester.Elevated() {
		httputils.ResponseError(w, http.StatusForbidden, "admin role required")
		return
	}

	var req systemMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	msg, err := h.engine.CreateSystem(r.Context(), req.Channel, model.SystemPayload{
		Kind:   model.SystemEventNotice,
		Notice: req.Notice,
	})
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	h.hub.Broadcast(msg.Channel, ws.OutEvent{
		Type:      ws.EventMessageCreated,
		Message:   msg.Presentable(),
		MessageID: msg.ID,
	})
	httputils.ResponseJSON(w, http.StatusCreated, msg.Presentable())
}

func (h *MessageHandler) broadcastUpdate(msg *model.Message) {
	h.hub.Broadcast(msg.Channel, ws.OutEvent{
		Type:      ws.EventMessageUpdated,
		Message:   msg.Presentable(),
		MessageID: msg.ID,
	})
}

func (h *MessageHandler) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidContent):
		httputils.ResponseError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		httputils.ResponseError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrUnknownSender):
		httputils.ResponseError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrNotFound):
		httputils.ResponseError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, service.ErrTooOld):
		httputils.ResponseError(w, http.StatusForbidden, err.Error())
	default:
		httputils.ResponseError(w, http.StatusInternalServerError, "server error")
	}
}

func presentAll(messages []model.Message) []*model.Message {
	out := make([]*model.Message, 0, len(messages))
	for i := range messages {
		out = append(out, messages[i].Presentable())
	}
	return out
}
