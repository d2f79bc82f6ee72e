package headsupctl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/internal/settlement-service/ws"
	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

func TestWSURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8083/v1/events/ws", wsURL("http://localhost:8083/"))
	assert.Equal(t, "wss://api.example/v1/events/ws", wsURL("https://api.example"))
}

func TestWatcherReceivesTopicEvents(t *testing.T) {
	hub := ws.NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	var (
		mu  sync.Mutex
		got []events.Envelope
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &Watcher{
		URL:     "ws" + srv.URL[len("http"):],
		Topic:   "player:alice",
		Backoff: 10 * time.Millisecond,
		OnEvent: func(e events.Envelope) {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		},
	}
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	bob, _ := events.New(events.TypeWagerRequested, events.WagerRequested{WagerID: 1, Player: "bob"})
	alice, _ := events.New(events.TypeWagerRequested, events.WagerRequested{WagerID: 2, Player: "alice"})

	// a inscrição é assíncrona: republica até chegar
	require.Eventually(t, func() bool {
		hub.Broadcast(bob)
		hub.Broadcast(alice)
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, e := range got {
		assert.Equal(t, alice.ID, e.ID)
	}
}
