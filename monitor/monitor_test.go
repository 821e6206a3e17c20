package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func TestBroadcastNilHub(t *testing.T) {
	var h *Hub
	h.Broadcast(EventEpoch, map[string]int{"epoch": 1})
	if h.ClientCount() != 0 {
		t.Fatal("nil hub must report zero clients")
	}
}

func TestHubDeliversEvents(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.run(ctx)

	server := httptest.NewServer(http.HandlerFunc(h.handleWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.Broadcast(EventEpoch, map[string]interface{}{"epoch": 2, "loss": 0.5})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != EventEpoch {
		t.Fatalf("expected %q event, got %q", EventEpoch, msg.Type)
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("missing timestamp")
	}
}

func TestBroadcastDropsWhenQueueFull(t *testing.T) {
	h := NewHub(zap.NewNop())
	// No run loop draining; the queue fills and further broadcasts must not block.
	for i := 0; i < 200; i++ {
		h.Broadcast(EventEpoch, i)
	}
}
