package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trivia-round-service/internal/app"
	"trivia-round-service/internal/domain"
	"trivia-round-service/internal/logger"
)

// CategoryIndex exposes the menu of categories.
type CategoryIndex interface {
	Categories() []domain.Category
	HasCategory(slug string) bool
}

type WSHandler struct {
	service    *app.RoundService
	hub        *Hub
	categories CategoryIndex
	log        *logger.Logger
	upgrader   websocket.Upgrader
}

func NewWSHandler(service *app.RoundService, hub *Hub, categories CategoryIndex, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Default()
	}
	return &WSHandler{
		service:    service,
		hub:        hub,
		categories: categories,
		log:        log.WithPrefix("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type noticePayload struct {
	Signal domain.Signal `json:"signal"`
}

type errorPayload struct {
	Message string `json:"message"`
}

const retryMessage = "something went wrong, please try again"

// ServeWS upgrades the request and maps client commands onto the round service.
// All round output reaches the client through the hub.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log := h.log.WithField("user", userID)
	ctx := logger.NewContext(r.Context(), log)

	c := newClient()
	c.hangup = func() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}
	h.hub.attach(userID, c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn("ws write error: %v", err)
				// keep draining so pushes never see a full queue for long
				for range c.send {
				}
				return
			}
		}
	}()

	c.push(outboundMessage[any]{Type: "categories", Payload: h.categories.Categories()})
	h.sendProgress(ctx, c, userID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(ctx, c, userID, inbound)
	}

	if h.hub.detach(userID, c) {
		// navigating away: no orphaned countdown once the user is gone
		h.service.Leave(ctx, userID)
	}
	close(c.send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, c *client, userID string, inbound inboundMessage) {
	switch inbound.Type {
	case "start":
		var payload startPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.sendError(c, "invalid start payload")
			return
		}
		difficulty, ok := domain.ParseDifficulty(payload.Difficulty)
		if !ok {
			h.sendError(c, "unknown difficulty")
			return
		}
		if !h.categories.HasCategory(payload.Category) {
			h.sendError(c, "unknown category")
			return
		}
		out, err := h.service.Start(ctx, userID, payload.Category, difficulty)
		h.reply(ctx, c, out.Signal, err)

	case "next":
		out, err := h.service.Next(ctx, userID)
		h.reply(ctx, c, out.Signal, err)

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.sendError(c, "invalid answer payload")
			return
		}
		out, err := h.service.SubmitAnswer(ctx, userID, payload.Option)
		h.reply(ctx, c, out.Signal, err)

	case "hint":
		out, err := h.service.ApplyHint(ctx, userID)
		h.reply(ctx, c, out.Signal, err)
		if err == nil && out.Signal == domain.SignalNone {
			h.sendProgress(ctx, c, userID)
		}

	case "menu":
		h.service.Leave(ctx, userID)
		h.sendProgress(ctx, c, userID)

	case "progress":
		h.sendProgress(ctx, c, userID)

	default:
		h.sendError(c, "unsupported message type")
	}
}

// reply reports rejections and failures; successful transitions were already
// rendered through the hub. Exhaustion is rendered by the service itself.
func (h *WSHandler) reply(ctx context.Context, c *client, signal domain.Signal, err error) {
	if err != nil {
		if !errors.Is(err, domain.ErrStore) {
			logger.FromContext(ctx).Error("unexpected error: %v", err)
		}
		h.sendError(c, retryMessage)
		return
	}
	if signal != domain.SignalNone && signal != domain.SignalPoolExhausted {
		c.push(outboundMessage[any]{Type: "notice", Payload: noticePayload{Signal: signal}})
	}
}

func (h *WSHandler) sendProgress(ctx context.Context, c *client, userID string) {
	progress, err := h.service.Progress(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Error("load progress: %v", err)
		h.sendError(c, retryMessage)
		return
	}
	c.push(outboundMessage[any]{Type: "progress", Payload: progress})
}

func (h *WSHandler) sendError(c *client, message string) {
	c.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
}
