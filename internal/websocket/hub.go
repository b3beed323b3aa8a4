package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"skillswap-backend/internal/logger"
	"skillswap-backend/internal/middleware"
	"skillswap-backend/internal/models"
)

// UserChannelPrefix prefixes the Redis channel each user's events are
// published on, so processes without the socket can still reach it.
const UserChannelPrefix = "user_updates:"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub is the real-time notification channel: presence tracking plus
// per-user event delivery.
type Hub struct {
	registry *Registry
	auth     *middleware.JWTAuth
	redis    *redis.Client
	logger   *zap.Logger

	// presenceMu orders online_users broadcasts: the list a broadcast reads
	// is fully queued before the next broadcast reads, so the last frame
	// every client receives reflects the latest registry state.
	presenceMu sync.Mutex
}

// NewHub wires the hub. redisClient may be nil, in which case only events
// emitted in this process are delivered.
func NewHub(registry *Registry, auth *middleware.JWTAuth, redisClient *redis.Client, log *zap.Logger) *Hub {
	return &Hub{
		registry: registry,
		auth:     auth,
		redis:    redisClient,
		logger:   log,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := h.auth.ParseUserID(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String(logger.FieldUserID, userID.String()), zap.Error(err))
		return
	}

	client := newClient(userID, conn)
	if old := h.registry.Register(client); old != nil {
		go old.Close()
	}
	h.logger.Info("websocket connected", zap.String(logger.FieldUserID, userID.String()), zap.Int("online", h.registry.Len()))

	go client.writePump()
	h.broadcastOnlineUsers()

	go func() {
		client.readPump()
		client.Close()
		if h.registry.Unregister(client) {
			h.logger.Info("websocket disconnected", zap.String(logger.FieldUserID, userID.String()))
			h.broadcastOnlineUsers()
		}
	}()
}

// EmitToUser delivers evt to the user's socket. Offline users are skipped
// without error.
func (h *Hub) EmitToUser(userID uuid.UUID, evt models.Event) {
	data, err := json.Marshal(models.NewWSMessage(evt))
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", evt.EventName()), zap.Error(err))
		return
	}
	h.deliver(userID, data)
}

func (h *Hub) deliver(userID uuid.UUID, data []byte) {
	client, ok := h.registry.Get(userID)
	if !ok {
		return
	}
	if !client.enqueue(data) {
		h.logger.Warn("dropped event for slow client", zap.String(logger.FieldUserID, userID.String()))
	}
}

func (h *Hub) broadcastOnlineUsers() {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	data, err := json.Marshal(models.NewWSMessage(models.OnlineUsersEvent{UserIDs: h.registry.OnlineUserIDs()}))
	if err != nil {
		h.logger.Error("failed to encode online users", zap.Error(err))
		return
	}
	for _, c := range h.registry.clientsSnapshot() {
		c.enqueue(data)
	}
}

func (h *Hub) OnlineUserIDs() []uuid.UUID {
	return h.registry.OnlineUserIDs()
}

// Run relays events published on Redis user channels to local sockets
// until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}

	pubsub := h.redis.PSubscribe(ctx, UserChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			userID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, UserChannelPrefix))
			if err != nil {
				h.logger.Warn("ignoring message on malformed channel", zap.String("channel", msg.Channel))
				continue
			}
			h.deliver(userID, []byte(msg.Payload))
		}
	}
}

// Publisher is satisfied by *redis.Client.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publish sends evt to userID through Redis. Hub.Run in any process holding
// the user's socket forwards it.
func Publish(ctx context.Context, rdb Publisher, userID uuid.UUID, evt models.Event) error {
	data, err := json.Marshal(models.NewWSMessage(evt))
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.EventName(), err)
	}
	return rdb.Publish(ctx, UserChannelPrefix+userID.String(), data).Err()
}
