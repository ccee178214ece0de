// internal/websocket/hub.go
package websocket

import (
	"context"
	"fmt"
	"sync"

	"parking-service/internal/domain/auth"
	wstypes "parking-service/internal/domain/websocket"
	"parking-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

// TokenValidator verifies operator access tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

type Hub struct {
	// connected clients by operator id
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	closeOnce  sync.Once

	handlerRegistry *HandlerRegistry

	validator TokenValidator
	logger    *zap.Logger
}

type BroadcastMessage struct {
	OperatorIDs []int64
	Channel     wstypes.ChannelType
	Message     *wstypes.WSMessage
}

func NewHub(validator TokenValidator, logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[int64]map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client),
		broadcast:       make(chan *BroadcastMessage, 256),
		done:            make(chan struct{}),
		handlerRegistry: NewHandlerRegistry(),
		validator:       validator,
		logger:          logger,
	}
}

// AuthenticateClient validates the access token of a connecting operator
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	return &ClientAuth{
		OperatorID: claims.OperatorID,
		SessionID:  claims.ID,
		Username:   claims.Username,
		Role:       claims.Role,
	}, nil
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage hands a client message to its registered handler, if any.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return nil
	}
	return handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

// Add registers an authenticated client with the running hub.
func (h *Hub) Add(client *Client) error {
	select {
	case h.Register <- client:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister removes a client; it is a no-op once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.operatorID] == nil {
		h.clients[client.operatorID] = make(map[*Client]bool)
	}
	h.clients[client.operatorID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	// every operator follows the occupancy feed until they unsubscribe
	client.Subscribe(wstypes.ChannelOccupancy)

	h.logger.Info("websocket client connected",
		zap.Int64("operator_id", client.operatorID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"user_id":    client.operatorID,
		"username":   client.username,
		"role":       client.role,
		"session_id": client.sessionID,
		"channels":   []wstypes.ChannelType{wstypes.ChannelOccupancy},
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.operatorID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	client.Close()
	if len(clients) == 0 {
		delete(h.clients, client.operatorID)
	}

	h.logger.Info("websocket client disconnected",
		zap.Int64("operator_id", client.operatorID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", h.totalClients()),
	)
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.OperatorIDs == nil {
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
		return
	}

	for _, operatorID := range msg.OperatorIDs {
		for client := range h.clients[operatorID] {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}
}

// PublishOccupancy queues an occupancy event for every subscribed operator.
// It never blocks the caller; events are dropped when the queue is full.
func (h *Hub) PublishOccupancy(eventType wstypes.EventType, data interface{}) {
	msg := &BroadcastMessage{
		Channel: wstypes.ChannelOccupancy,
		Message: wstypes.NewMessage(eventType, data),
	}

	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warn("occupancy event dropped, broadcast queue full",
			zap.String("event", string(eventType)),
		)
	}
}

func (h *Hub) GetConnectedClients(operatorID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[operatorID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) canSubscribe(client *Client, channel wstypes.ChannelType) bool {
	switch channel {
	case wstypes.ChannelOccupancy:
		return true
	case wstypes.ChannelSystem:
		return client.role == auth.RoleAdministrator
	default:
		return false
	}
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.closeOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
