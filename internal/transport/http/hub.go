package http

import (
	"context"
	"sync"

	"trivia-round-service/internal/domain"
	"trivia-round-service/internal/logger"
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type exhaustedPayload struct {
	Category   string            `json:"category"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Message    string            `json:"message"`
}

// client is one live connection's outbound queue. hangup, when set, closes the
// underlying connection.
type client struct {
	send   chan outboundMessage[any]
	hangup func()
}

func newClient() *client {
	return &client{send: make(chan outboundMessage[any], 16)}
}

// push never blocks: when the queue is full the oldest message is dropped, so a
// slow socket cannot stall the round engine.
func (c *client) push(msg outboundMessage[any]) {
	for {
		select {
		case c.send <- msg:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// Hub routes round output to the connection currently attached for each user.
// It implements app.Presenter.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Default()
	}
	return &Hub{clients: make(map[string]*client), log: log.WithPrefix("hub")}
}

// attach registers c for userID, replacing any older connection.
func (h *Hub) attach(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; ok {
		h.log.Info("user %s reconnected, replacing previous connection", userID)
	}
	h.clients[userID] = c
}

// detach removes c if it is still the user's connection. Once it returns no
// further pushes reach c.
func (h *Hub) detach(userID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] != c {
		return false
	}
	delete(h.clients, userID)
	return true
}

// Shutdown hangs up every attached connection. Their handlers then detach and
// abandon any active round as on a normal disconnect. Wired to
// http.Server.RegisterOnShutdown, since Shutdown does not touch hijacked conns.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	live := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		live = append(live, c)
	}
	h.mu.RUnlock()

	for _, c := range live {
		if c.hangup != nil {
			c.hangup()
		}
	}
	if len(live) > 0 {
		h.log.Info("closed %d live connections", len(live))
	}
}

func (h *Hub) deliver(userID string, msg outboundMessage[any]) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	if !ok {
		return domain.ErrNotConnected
	}
	c.push(msg)
	return nil
}

func (h *Hub) RenderRoundView(_ context.Context, userID string, view domain.RoundView) error {
	return h.deliver(userID, outboundMessage[any]{Type: "round", Payload: view})
}

func (h *Hub) RenderSettlement(_ context.Context, userID string, settlement domain.Settlement) error {
	return h.deliver(userID, outboundMessage[any]{Type: "settlement", Payload: settlement})
}

func (h *Hub) RenderExhausted(_ context.Context, userID, category string, difficulty domain.Difficulty) error {
	return h.deliver(userID, outboundMessage[any]{Type: "exhausted", Payload: exhaustedPayload{
		Category:   category,
		Difficulty: difficulty,
		Message:    "no more questions in this pool, pick another category or difficulty",
	}})
}
