package live_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/venomqa/venomqa/internal/report/live"
)

func TestHub_PublishReachesConnectedClient(t *testing.T) {
	hub := live.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// give the hub a moment to register the new connection before publishing.
	time.Sleep(20 * time.Millisecond)
	hub.Publish(live.StepEvent{Type: "step_started", StateID: "s1", Action: "create_order"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev live.StepEvent
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, "step_started", ev.Type)
	require.Equal(t, "s1", ev.StateID)
	require.Equal(t, "create_order", ev.Action)
}

func TestHub_PublishNonBlockingWhenNoClients(t *testing.T) {
	hub := live.NewHub(nil)
	hub.Publish(live.StepEvent{Type: "step_started"}) // must not panic or block
}
