package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/energyflow/backend/pkg/messaging"
)

// Subscriber delivers broker messages to the usage feed.
type Subscriber interface {
	Subscribe(subject string, handler func(msg *nats.Msg)) error
}

// WSClient is one connected websocket consumer.
type WSClient struct {
	ID     uuid.UUID
	UserID string
	Conn   *websocket.Conn

	Send chan []byte
	Done chan struct{}
}

// Hub tracks websocket clients by user so usage snapshots can be pushed to
// the owner of the device that just reported.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*WSClient
	log     *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*WSClient),
		log:     log,
	}
}

func (h *Hub) add(client *WSClient) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

func (h *Hub) remove(client *WSClient) {
	h.mu.Lock()
	delete(h.clients, client.ID)
	h.mu.Unlock()
}

// BroadcastToUser sends a message to every connection of one user. Slow
// consumers are skipped rather than blocking the feed.
func (h *Hub) BroadcastToUser(userID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Send <- message:
			default:
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (g *Gateway) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	userID := c.MustGet("user_id").(string)

	client := &WSClient{
		ID:     uuid.New(),
		UserID: userID,
		Conn:   conn,

		Send: make(chan []byte, 16),
		Done: make(chan struct{}),
	}

	g.hub.add(client)

	go g.wsReadPump(client)
	go g.wsWritePump(client)
}

func (g *Gateway) wsReadPump(client *WSClient) {
	defer func() {
		g.hub.remove(client)
		close(client.Done)
		client.Conn.Close()
	}()

	// The usage feed is push only. Reads exist to detect disconnects.
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) wsWritePump(client *WSClient) {
	for {
		select {
		case message := <-client.Send:
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-client.Done:
			return
		}
	}
}

// StartUsageFeed subscribes the gateway to the telemetry stream. Every
// accepted reading is projected into the owner's usage snapshot and pushed
// to their websocket connections.
func (g *Gateway) StartUsageFeed(ctx context.Context, subs Subscriber) error {
	return subs.Subscribe(messaging.SubjectTelemetryReading, func(msg *nats.Msg) {
		var ev messaging.ReadingEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			g.log.Warn("failed to decode reading event", zap.Error(err))
			return
		}
		g.pushUsage(ctx, ev.DeviceID)
	})
}

func (g *Gateway) pushUsage(ctx context.Context, deviceID string) {
	userID, ok, err := g.devices.OwnerOf(ctx, deviceID)
	if err != nil || !ok {
		return
	}

	snapshot, err := g.billing.GetLiveUsage(ctx, userID)
	if err != nil {
		g.log.Warn("failed to project usage for feed",
			zap.String("device_id", deviceID), zap.Error(err))
		return
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	g.hub.BroadcastToUser(userID, payload)
}
