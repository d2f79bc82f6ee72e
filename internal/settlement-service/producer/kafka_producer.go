package producer

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

// MessageWriter é o pedaço do *kafka.Writer que usamos
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// RandomnessPublisher envia pedidos de aleatoriedade para randomness_requests.
// Implementa engine.RandomnessProvider; a resposta volta pelo consumer.
type RandomnessPublisher struct {
	Writer MessageWriter
	Now    func() time.Time
}

func NewRandomnessPublisher(w MessageWriter) *RandomnessPublisher {
	return &RandomnessPublisher{Writer: w, Now: time.Now}
}

func (p *RandomnessPublisher) RequestRandomness(ctx context.Context, req engine.RandomnessRequest) error {
	c := req.Config
	b, err := json.Marshal(events.RandomnessRequest{
		RequestID:            req.RequestID,
		Coordinator:          c.Coordinator,
		SubscriptionID:       c.SubscriptionID,
		KeyHash:              c.KeyHash,
		CallbackGasLimit:     c.CallbackGasLimit,
		RequestConfirmations: c.RequestConfirmations,
		NumWords:             c.NumWords,
		TsUnixMs:             p.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(req.RequestID, 10)),
		Value: b,
	})
}

// EventPublisher grava os envelopes de domínio em wager_events (key = id do envelope)
type EventPublisher struct {
	Writer MessageWriter
}

func NewEventPublisher(w MessageWriter) *EventPublisher {
	return &EventPublisher{Writer: w}
}

func (p *EventPublisher) Publish(ctx context.Context, e events.Envelope) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.ID), Value: b, Time: e.Ts})
}

// Fanout entrega o mesmo evento para vários publishers (kafka + redis broadcast)
type Fanout []engine.Publisher

func (f Fanout) Publish(ctx context.Context, e events.Envelope) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
