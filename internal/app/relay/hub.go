/*
Package relay routes support chat messages between plain users and the active moderator.

The Hub is the registry of live connections, keyed by user id for plain users and by user id
plus "_mod" for moderators. Every inbound message is persisted first and then forwarded to its
counterpart if that counterpart is connected right now. Delivery is best effort: nothing is
queued for offline recipients and no failure is reported back to the sender.
*/
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"companysync/internal/app/db"
	"companysync/internal/app/user"
	"companysync/internal/pkg/logx"
)

// persistTimeout bounds the database work done for a single inbound message.
const persistTimeout = 10 * time.Second

// errIgnored marks frames that are dropped without persistence or forwarding.
var errIgnored = errors.New("frame ignored")

// MessageStore persists routed messages.
type MessageStore interface {
	InsertChatMessage(ctx context.Context, arg db.InsertChatMessageParams) (db.ChatMessage, error)
}

// Hub owns the connection registry and routes messages between its clients.
type Hub struct {
	// clients maps a registry key to the connection currently holding it.
	clients map[string]*Client

	// mu guards clients and closed. Deliveries hold the read lock so a client's send
	// channel is never closed underneath them.
	mu     sync.RWMutex
	closed bool

	store      MessageStore
	moderators ModeratorSource

	persistTimeout time.Duration

	logger zerolog.Logger
}

// NewHub returns an empty Hub persisting to store and resolving moderators through moderators.
func NewHub(store MessageStore, moderators ModeratorSource) *Hub {
	return &Hub{
		clients:        make(map[string]*Client),
		store:          store,
		moderators:     moderators,
		persistTimeout: persistTimeout,
		logger:         logx.Component("hub"),
	}
}

// Serve binds conn to identity and runs the connection until it closes.
func (h *Hub) Serve(conn *websocket.Conn, identity user.Identity) {
	client := newClient(h, conn, identity)

	h.Register(client)

	go client.WritePump()
	client.ReadPump()
}

// Register stores client under its key, replacing any previous holder of that key.
// The displaced connection is not notified; it stays open but no longer receives forwards.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		client.closeSend()
		return
	}

	key := client.identity.Key()

	if previous, ok := h.clients[key]; ok && previous != client {
		h.logger.Info().
			Str("client_key", key).
			Str("displaced_conn_id", previous.connID).
			Str("conn_id", client.connID).
			Msg("Registry key taken over by a new connection.")
	}

	h.clients[key] = client

	h.logger.Info().
		Str("client_key", key).
		Str("conn_id", client.connID).
		Int("connections", len(h.clients)).
		Msg("Client registered.")
}

// Unregister removes client's key if client still holds it and stops its writer.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := client.identity.Key()

	if h.closed {
		h.logger.Debug().
			Str("client_key", key).
			Str("conn_id", client.connID).
			Msg("Connection closed after hub shutdown.")
	} else if current, ok := h.clients[key]; ok && current == client {
		delete(h.clients, key)
		h.logger.Info().
			Str("client_key", key).
			Str("conn_id", client.connID).
			Int("connections", len(h.clients)).
			Msg("Client unregistered.")
	} else {
		h.logger.Debug().
			Str("client_key", key).
			Str("conn_id", client.connID).
			Msg("Ignoring unregister for displaced connection.")
	}

	client.closeSend()
}

// IsConnected reports whether key currently has a live connection.
func (h *Hub) IsConnected(key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[key]
	return ok
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown stops every writer and rejects later registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for key, client := range h.clients {
		client.closeSend()
		delete(h.clients, key)
	}

	h.logger.Info().Msg("Hub shutdown complete.")
}

// HandleInbound processes one raw frame from sender. Every failure is logged and swallowed;
// the sender never receives an error frame.
func (h *Hub) HandleInbound(sender user.Identity, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Str("client_key", sender.Key()).
				Interface("panic", r).
				Msg("Recovered from panic while routing message.")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.persistTimeout)
	defer cancel()

	delivered, err := h.route(ctx, sender, raw)
	switch {
	case errors.Is(err, errIgnored):
		h.logger.Debug().Str("client_key", sender.Key()).Msg("Frame ignored.")
	case err != nil:
		h.logger.Warn().Err(err).Str("client_key", sender.Key()).Msg("Message dropped.")
	default:
		h.logger.Debug().Str("client_key", sender.Key()).Bool("delivered", delivered).Msg("Message routed.")
	}
}

// route persists the frame and forwards it. It reports whether a live recipient got it.
func (h *Hub) route(ctx context.Context, sender user.Identity, raw []byte) (bool, error) {
	var in InboundFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		return false, fmt.Errorf("invalid frame: %w", err)
	}

	if in.Type != TypeMessage || strings.TrimSpace(in.Text) == "" {
		return false, errIgnored
	}

	if sender.Moderator && in.To != "" {
		return h.routeToUser(ctx, sender, in)
	}
	return h.routeToModerator(ctx, sender, in)
}

// routeToUser handles a moderator reply addressed to a plain user.
func (h *Hub) routeToUser(ctx context.Context, sender user.Identity, in InboundFrame) (bool, error) {
	moderatorID := sender.ID

	stored, err := h.store.InsertChatMessage(ctx, db.InsertChatMessageParams{
		UserID:        in.To,
		ModeratorID:   &moderatorID,
		Message:       in.Text,
		FromModerator: true,
	})
	if err != nil {
		return false, fmt.Errorf("failed to persist moderator message: %w", err)
	}

	frame := newOutboundFrame(FromModerator, stored, moderatorID)
	return h.deliver(user.PlainKey(in.To), frame)
}

// routeToModerator handles a message from a plain user (or an unaddressed moderator message)
// bound for whoever is the active moderator at this moment.
func (h *Hub) routeToModerator(ctx context.Context, sender user.Identity, in InboundFrame) (bool, error) {
	stored, err := h.store.InsertChatMessage(ctx, db.InsertChatMessageParams{
		UserID:        sender.ID,
		Message:       in.Text,
		FromModerator: false,
	})
	if err != nil {
		return false, fmt.Errorf("failed to persist user message: %w", err)
	}

	activeID, err := h.moderators.ActiveModeratorID(ctx)
	if err != nil {
		return false, err
	}
	if activeID == "" {
		return false, nil
	}

	frame := newOutboundFrame(FromUser, stored, activeID)
	return h.deliver(user.ModeratorKey(activeID), frame)
}

// deliver queues frame on the connection registered under key, if any.
func (h *Hub) deliver(key string, frame OutboundFrame) (bool, error) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return false, fmt.Errorf("failed to encode outbound frame: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[key]
	if !ok {
		return false, nil
	}

	return client.enqueue(payload), nil
}
