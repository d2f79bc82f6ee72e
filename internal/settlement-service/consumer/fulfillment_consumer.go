package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
	"github.com/radieske/headsup-settlement/internal/shared/auth"
	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

// MessageReader é o pedaço do *kafka.Reader usado aqui (commit manual)
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Fulfiller é o ponto de entrada do motor para callbacks
type Fulfiller interface {
	OnFulfillment(ctx context.Context, requestID uint64, randomValue *big.Int, caller string) (engine.Resolution, error)
}

// Processor consome callbacks de randomness_fulfillments e entrega ao motor.
// Mensagens inválidas ou rejeitadas vão para a DLQ; callbacks repetidos são só confirmados.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Engine Fulfiller
	DLQ    MessageWriter // opcional

	// com segredo, o chamador vem do token assinado e não do campo caller
	Identity auth.Identity

	Retries int           // tentativas para erros transitórios do motor; default 3
	Backoff time.Duration // default 300ms, cresce linear

	OnConsumed   func()       // métricas (counter++)
	OnError      func(string) // métricas por fase
	OnDeadLetter func()
}

// Run inicia o loop principal de consumo; retorna quando ctx é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.onError("fetch")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.Handle(ctx, m)

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.onError("commit")
		}
	}
}

// Handle processa uma mensagem; sempre termina (sucesso, duplicata ou DLQ)
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	var f events.RandomnessFulfillment
	if err := json.Unmarshal(m.Value, &f); err != nil {
		p.Log.Warn("invalid fulfillment message", zap.Error(err))
		p.onError("decode")
		p.deadLetter(ctx, m, "Decode", err)
		return
	}
	caller, err := p.caller(f)
	if err != nil {
		p.Log.Warn("unauthenticated fulfillment", zap.Uint64("requestId", f.RequestID), zap.String("caller", f.Caller), zap.Error(err))
		p.onError("auth")
		p.deadLetter(ctx, m, "InvalidToken", err)
		return
	}
	word, err := engine.FirstWord(f.RandomWords)
	if err != nil {
		p.onError("decode")
		p.deadLetter(ctx, m, engine.Code(engine.ErrInvalidRandomValue), err)
		return
	}

	retries := p.Retries
	if retries <= 0 {
		retries = 3
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		res, err := p.Engine.OnFulfillment(ctx, f.RequestID, word, caller)
		switch {
		case err == nil:
			p.Log.Debug("fulfillment applied", zap.Uint64("wagerId", res.WagerID), zap.Bool("won", res.Won))
			return
		case errors.Is(err, engine.ErrAlreadyFulfilled):
			// reentrega do kafka ou callback repetido do provedor
			p.Log.Debug("duplicate fulfillment ignored", zap.Uint64("requestId", f.RequestID))
			return
		case errors.Is(err, engine.ErrTransferFailed):
			// liquidado; o pagamento fica FAILED para RetryPayout
			p.Log.Warn("fulfillment applied, payout pending retry", zap.Uint64("requestId", f.RequestID), zap.Error(err))
			p.onError("payout")
			return
		case permanent(err):
			p.Log.Warn("fulfillment rejected", zap.Uint64("requestId", f.RequestID), zap.String("caller", caller), zap.Error(err))
			p.onError("rejected")
			p.deadLetter(ctx, m, engine.Code(err), err)
			return
		}

		p.onError("engine")
		if attempt+1 >= retries {
			p.Log.Error("fulfillment failed after retries", zap.Uint64("requestId", f.RequestID), zap.Error(err))
			p.deadLetter(ctx, m, engine.Code(err), err)
			return
		}
		if !sleep(ctx, time.Duration(attempt+1)*backoff) {
			return
		}
	}
}

// caller resolve quem assinou o callback
func (p *Processor) caller(f events.RandomnessFulfillment) (string, error) {
	if !p.Identity.Enabled() {
		return f.Caller, nil
	}
	if f.Token == "" {
		return "", fmt.Errorf("%w: unsigned fulfillment", auth.ErrInvalidToken)
	}
	return p.Identity.Verify(f.Token)
}

func permanent(err error) bool {
	return errors.Is(err, engine.ErrUnauthorizedCaller) ||
		errors.Is(err, engine.ErrUnknownRequest) ||
		errors.Is(err, engine.ErrInvalidRandomValue)
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, code string, cause error) {
	if p.DLQ == nil {
		return
	}
	dl := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: []kafka.Header{
			{Key: "error_code", Value: []byte(code)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	}
	if err := p.DLQ.WriteMessages(ctx, dl); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.onError("dlq")
		return
	}
	if p.OnDeadLetter != nil {
		p.OnDeadLetter()
	}
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
