package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"hackhub/backend/internal/model"
	"hackhub/backend/internal/service"
	"hackhub/backend/internal/telemetry"
	"hackhub/backend/internal/ws"
)

const historyLimit = 50

// GatewayHandler owns the websocket endpoint: it upgrades connections,
// authenticates them opportunistically, routes inbound lifecycle events to
// the engine and fans the canonical result back out through the hub.
type GatewayHandler struct {
	hub      *ws.Hub
	engine   *service.Engine
	identity *service.IdentityService
}

func NewGatewayHandler(hub *ws.Hub, engine *service.Engine, identity *service.IdentityService) *GatewayHandler {
	return &GatewayHandler{hub: hub, engine: engine, identity: identity}
}

func (h *GatewayHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.serve)
}

func (h *GatewayHandler) serve(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = model.DefaultChannel
	}

	conn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := ws.NewClient(r.Context(), conn, channel)

	// Opportunistic authentication: a bad or missing token still gets a
	// connection, it just cannot send.
	if token := r.URL.Query().Get("token"); token != "" {
		if userID, err := h.identity.VerifyCredential(token); err == nil {
			if user, err := h.identity.ResolveUser(r.Context(), userID); err == nil {
				client.UserID = user.ID
				client.UserName = user.Name
			}
		} else {
			log.Printf("invalid token on websocket connect: %v", err)
		}
	}

	room := h.hub.GetRoom(channel)
	if !room.RegisterClient(client) {
		client.Close()
		return
	}

	go func() {
		if err := client.WritePump(); err != nil {
			log.Printf("client write error: %v", err)
		}
	}()

	client.SendJSON(ws.OutEvent{
		Type:      ws.EventConnectionAck,
		Channel:   channel,
		UserID:    client.UserID,
		Timestamp: time.Now(),
	})

	h.sendHistory(client)

	if client.Authenticated() {
		h.hub.BroadcastToOthers(channel, client, ws.OutEvent{
			Type:     ws.EventUserJoined,
			UserID:   client.UserID,
			UserName: client.UserName,
		})
	}

	client.ReadPump(h.handleEvent)

	room.UnregisterClient(client)
	if client.Authenticated() {
		h.hub.BroadcastToOthers(channel, client, ws.OutEvent{
			Type:     ws.EventUserLeft,
			UserID:   client.UserID,
			UserName: client.UserName,
		})
	}
}

func (h *GatewayHandler) sendHistory(client *ws.Client) {
	messages, err := h.engine.History(client.Context(), client.Channel, historyLimit)
	if err != nil {
		log.Printf("history load failed: %v", err)
		return
	}

	out := make([]*model.Message, 0, len(messages))
	for i := range messages {
		out = append(out, messages[i].Presentable())
	}
	client.SendJSON(ws.OutEvent{
		Type:      ws.EventHistory,
		Messages:  out,
		Channel:   client.Channel,
		Timestamp: time.Now(),
	})
}

func (h *GatewayHandler) handleEvent(client *ws.Client, ev ws.InEvent) {
	switch ev.Type {
	case ws.EventSendMessage:
		h.handleSend(client, ev)
	case ws.EventEditMessage:
		h.handleMutation(client, ev, func() (*model.Message, error) {
			return h.engine.Edit(client.Context(), ev.MessageID, client.UserID, ev.Text)
		})
	case ws.EventUnsendMessage:
		h.handleMutation(client, ev, func() (*model.Message, error) {
			return h.engine.Unsend(client.Context(), ev.MessageID, client.UserID)
		})
	case ws.EventMarkRead:
		h.handleMutation(client, ev, func() (*model.Message, error) {
			return h.engine.MarkRead(client.Context(), ev.MessageID, client.UserID)
		})
	case ws.EventReact:
		h.handleMutation(client, ev, func() (*model.Message, error) {
			return h.engine.React(client.Context(), ev.MessageID, client.UserID, ev.Emoji)
		})
	case ws.EventRemoveReaction:
		h.handleMutation(client, ev, func() (*model.Message, error) {
			return h.engine.RemoveReaction(client.Context(), ev.MessageID, client.UserID, ev.Emoji)
		})
	case ws.EventTypingStart:
		h.handleTyping(client, ws.EventUserTyping)
	case ws.EventTypingStop:
		h.handleTyping(client, ws.EventUserStoppedTyping)
	case ws.EventGetMessageForReply:
		h.handleGetForReply(client, ev)
	default:
		h.sendError(client, ev.TempID, "unknown event type")
	}
}

func (h *GatewayHandler) handleSend(client *ws.Client, ev ws.InEvent) {
	if !client.Authenticated() {
		h.sendError(client, ev.TempID, "user authentication required")
		return
	}

	msg, err := h.engine.Create(client.Context(), service.CreateParams{
		SenderID:  client.UserID,
		Channel:   client.Channel,
		Text:      ev.Text,
		Media:     ev.Media,
		ReplyToID: ev.ReplyTo,
	})
	if err != nil {
		if errors.Is(err, service.ErrRateLimited) {
			telemetry.RateLimited.Inc()
		}
		h.sendError(client, ev.TempID, err.Error())
		return
	}

	h.hub.Broadcast(client.Channel, ws.OutEvent{
		Type:      ws.EventMessageCreated,
		Message:   msg.Presentable(),
		MessageID: msg.ID,
		TempID:    ev.TempID,
	})
}

func (h *GatewayHandler) handleMutation(client *ws.Client, ev ws.InEvent, mutate func() (*model.Message, error)) {
	if !client.Authenticated() {
		h.sendError(client, ev.TempID, "user authentication required")
		return
	}

	msg, err := mutate()
	if err != nil {
		h.sendError(client, ev.TempID, err.Error())
		return
	}

	h.hub.Broadcast(client.Channel, ws.OutEvent{
		Type:      ws.EventMessageUpdated,
		Message:   msg.Presentable(),
		MessageID: msg.ID,
	})
}

func (h *GatewayHandler) handleTyping(client *ws.Client, outType string) {
	if !client.Authenticated() {
		return
	}
	h.hub.BroadcastToOthers(client.Channel, client, ws.OutEvent{
		Type:     outType,
		UserID:   client.UserID,
		UserName: client.UserName,
	})
}

func (h *GatewayHandler) handleGetForReply(client *ws.Client, ev ws.InEvent) {
	msg, err := h.engine.Get(client.Context(), ev.MessageID)
	if err != nil {
		h.sendError(client, ev.TempID, err.Error())
		return
	}
	client.SendJSON(ws.OutEvent{
		Type:      ws.EventMessageForReply,
		Message:   msg.Presentable(),
		MessageID: msg.ID,
		TempID:    ev.TempID,
		Timestamp: time.Now(),
	})
}

// sendError goes only to the originating connection, tagged with the
// client's correlation id.
func (h *GatewayHandler) sendError(client *ws.Client, tempID, message string) {
	client.SendJSON(ws.OutEvent{
		Type:      ws.EventMessageError,
		Error:     message,
		TempID:    tempID,
		Timestamp: time.Now(),
	})
}
