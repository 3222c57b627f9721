package gateway

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubBroadcast(t *testing.T) {
	t.Run("should deliver only to the target user", func(t *testing.T) {
		hub := NewHub(zap.NewNop())

		alice := &WSClient{ID: uuid.New(), UserID: "alice", Send: make(chan []byte, 1)}
		bob := &WSClient{ID: uuid.New(), UserID: "bob", Send: make(chan []byte, 1)}
		hub.add(alice)
		hub.add(bob)

		hub.BroadcastToUser("alice", []byte(`{"units_used":12.5}`))

		require.Len(t, alice.Send, 1)
		assert.Empty(t, bob.Send)
	})

	t.Run("should skip a full send buffer instead of blocking", func(t *testing.T) {
		hub := NewHub(zap.NewNop())

		slow := &WSClient{ID: uuid.New(), UserID: "alice", Send: make(chan []byte, 1)}
		slow.Send <- []byte("backlog")
		hub.add(slow)

		done := make(chan struct{})
		go func() {
			hub.BroadcastToUser("alice", []byte("update"))
			close(done)
		}()

		<-done
		assert.Len(t, slow.Send, 1)
	})

	t.Run("should stop delivering after removal", func(t *testing.T) {
		hub := NewHub(zap.NewNop())

		client := &WSClient{ID: uuid.New(), UserID: "alice", Send: make(chan []byte, 1)}
		hub.add(client)
		hub.remove(client)

		hub.BroadcastToUser("alice", []byte("update"))
		assert.Empty(t, client.Send)
	})
}
