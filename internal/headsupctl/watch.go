package headsupctl

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/radieske/headsup-settlement/internal/shared/auth"
	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

// Watcher assina um tópico do stream /v1/events/ws e entrega cada envelope a OnEvent.
// Em caso de desconexão, reconecta depois de Backoff.
type Watcher struct {
	URL     string // ws://host:port/v1/events/ws
	Topic   string // "*", "player:<id>" ou "wager:<id>"
	Header  http.Header
	Backoff time.Duration
	OnEvent func(events.Envelope)
	OnError func(error)
}

// Start roda até ctx acabar
func (w *Watcher) Start(ctx context.Context) {
	backoff := w.Backoff
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	for {
		err := w.connectAndListen(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil && w.OnError != nil {
			w.OnError(err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff): // aguarda antes de reconectar
		}
	}
}

func (w *Watcher) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.URL, w.Header)
	if err != nil {
		return err
	}
	defer conn.Close()

	// fecha a conexão quando ctx acaba para destravar o ReadMessage
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	topic := w.Topic
	if topic == "" {
		topic = "*"
	}
	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "topic": topic}); err != nil {
		return err
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		var env events.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
			continue // ack de subscribe, pong ou lixo
		}
		w.OnEvent(env)
	}
}

// wsURL troca http(s) por ws(s) e aponta para o endpoint de eventos
func wsURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/v1/events/ws"
}

// WatchCmd imprime os eventos de domínio em tempo real (um JSON por linha)
func WatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream wager events (topic: *, player:<id> or wager:<id>)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client(cmd)
			topic, _ := cmd.Flags().GetString("topic")
			count, _ := cmd.Flags().GetInt("count")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			req, _ := http.NewRequest(http.MethodGet, c.BaseURL, nil)
			if err := auth.Sign(req, c.Secret, c.Caller); err != nil {
				return err
			}

			seen := 0
			enc := json.NewEncoder(cmd.OutOrStdout())
			w := &Watcher{
				URL:    wsURL(c.BaseURL),
				Topic:  topic,
				Header: req.Header,
				OnEvent: func(e events.Envelope) {
					_ = enc.Encode(e)
					seen++
					if count > 0 && seen >= count {
						cancel()
					}
				},
				OnError: func(err error) { cmd.PrintErrln("watch:", err) },
			}
			w.Start(ctx)
			return nil
		},
	}
	cmd.Flags().StringP("topic", "t", "*", "subscription topic")
	cmd.Flags().IntP("count", "n", 0, "exit after n events (0 = run until interrupted)")
	return cmd
}
