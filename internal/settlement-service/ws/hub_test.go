package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

func allowAll(*http.Request) bool { return true }

func dial(t *testing.T, srv *httptest.Server, topic string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Topic: topic}))
	var ack map[string]string
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "subscribed", ack["type"])
	return conn
}

func envelope(t *testing.T, typ events.Type, payload any) events.Envelope {
	t.Helper()
	e, err := events.New(typ, payload)
	require.NoError(t, err)
	return e
}

func readEnvelope(t *testing.T, conn *websocket.Conn) events.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e events.Envelope
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestTopics(t *testing.T) {
	e := envelope(t, events.TypeWagerResolved, events.WagerResolved{WagerID: 9, Player: "alice"})
	assert.Equal(t, []string{"*", "player:alice", "wager:9"}, Topics(e))

	admin := envelope(t, events.TypeBetLimitsUpdated, events.BetLimitsUpdated{MinBet: "0.01", MaxBet: "100"})
	assert.Equal(t, []string{"*"}, Topics(admin))
}

func TestHubRoutesByTopic(t *testing.T) {
	hub := NewHub(zap.NewNop(), allowAll)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	alice := dial(t, srv, "player:alice")
	all := dial(t, srv, "*")

	hub.Broadcast(envelope(t, events.TypeWagerResolved, events.WagerResolved{WagerID: 1, Player: "bob"}))
	hub.Broadcast(envelope(t, events.TypeWagerResolved, events.WagerResolved{WagerID: 2, Player: "alice"}))

	got := readEnvelope(t, alice)
	var p events.WagerResolved
	require.NoError(t, json.Unmarshal(got.Payload, &p))
	assert.Equal(t, uint64(2), p.WagerID)

	first := readEnvelope(t, all)
	second := readEnvelope(t, all)
	assert.Equal(t, events.TypeWagerResolved, first.Type)
	assert.Equal(t, events.TypeWagerResolved, second.Type)
}

func TestPingPong(t *testing.T) {
	hub := NewHub(zap.NewNop(), allowAll)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, srv, "*")
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))
	var pong map[string]string
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])
}

func TestRedisSubscriberFeedsHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub := NewHub(zap.NewNop(), allowAll)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	conn := dial(t, srv, "wager:5")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRedisSubscriber(ctx, zap.NewNop(), rdb, "events", hub)

	b, err := json.Marshal(envelope(t, events.TypeWagerRequested, events.WagerRequested{WagerID: 5, Player: "carol", Amount: "1"}))
	require.NoError(t, err)

	// a inscrição é assíncrona; republica até alguém receber
	require.Eventually(t, func() bool {
		n, err := rdb.Publish(ctx, "events", b).Result()
		return err == nil && n > 0
	}, 2*time.Second, 20*time.Millisecond)

	got := readEnvelope(t, conn)
	assert.Equal(t, events.TypeWagerRequested, got.Type)
}
