package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/internal/shared/auth"
	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Metrics do simulador
type Metrics struct {
	Requests  prometheus.Counter
	Fulfilled prometheus.Counter
	Failures  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "randomness_simulator_requests_total",
			Help: "Pedidos de aleatoriedade recebidos",
		}),
		Fulfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "randomness_simulator_fulfillments_total",
			Help: "Callbacks publicados",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "randomness_simulator_failures_total",
			Help: "Pedidos descartados ou callbacks que falharam",
		}),
	}
	reg.MustRegister(m.Requests, m.Fulfilled, m.Failures)
	return m
}

// Simulator faz o papel do provedor: lê pedidos e responde depois de um atraso aleatório,
// então os callbacks chegam fora de ordem.
// Entrega pelo menos uma vez: o offset de um pedido só é confirmado depois que a resposta
// dele e de todos os anteriores da mesma partição foi publicada. O motor descarta repetidos.
type Simulator struct {
	Log      *zap.Logger
	Reader   MessageReader
	Writer   MessageWriter
	Seed     Seed
	MaxDelay time.Duration
	Identity string // se vazio, responde como o coordinator do pedido
	Secret   []byte // assina cada resposta (HS256, sub = Identity)
	Metrics  *Metrics

	nonce   atomic.Uint64
	wg      sync.WaitGroup
	offsets commitQueue
}

const (
	tokenTTL     = 10 * time.Minute
	retryBackoff = 500 * time.Millisecond
	maxBackoff   = 10 * time.Second
)

// Run consome até ctx acabar e espera os callbacks agendados.
// Pedidos sem resposta publicada ficam sem commit e voltam no próximo Run.
func (s *Simulator) Run(ctx context.Context) error {
	defer s.wg.Wait()
	s.offsets.reset()
	for {
		m, err := s.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		slot := s.offsets.track(m)

		var req events.RandomnessRequest
		if err := json.Unmarshal(m.Value, &req); err != nil {
			s.Log.Warn("discarding malformed randomness request", zap.Error(err))
			s.count(func(m *Metrics) { m.Failures.Inc() })
			s.done(ctx, slot)
			continue
		}

		s.count(func(m *Metrics) { m.Requests.Inc() })
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if s.respond(ctx, req) {
				s.done(ctx, slot)
			}
		}()
	}
}

// done marca o pedido como respondido e confirma o prefixo contíguo já respondido
func (s *Simulator) done(ctx context.Context, slot *pending) {
	ready := s.offsets.finish(slot)
	if len(ready) == 0 {
		return
	}
	if err := s.Reader.CommitMessages(ctx, ready...); err != nil && ctx.Err() == nil {
		s.Log.Error("commit failed", zap.Int64("offset", ready[len(ready)-1].Offset), zap.Error(err))
	}
}

// respond espera o atraso e publica a resposta, repetindo até conseguir ou ctx acabar
func (s *Simulator) respond(ctx context.Context, req events.RandomnessRequest) bool {
	if s.MaxDelay > 0 && !sleep(ctx, rand.N(s.MaxDelay)) {
		return false
	}

	f, err := s.Fulfill(req)
	if err != nil {
		s.Log.Error("sign fulfillment", zap.Uint64("requestId", req.RequestID), zap.Error(err))
		s.count(func(m *Metrics) { m.Failures.Inc() })
		return false
	}
	b, err := json.Marshal(f)
	if err != nil {
		s.Log.Error("encode fulfillment", zap.Error(err))
		return false
	}
	msg := kafka.Message{Key: []byte(strconv.FormatUint(req.RequestID, 10)), Value: b}

	backoff := retryBackoff
	for {
		msg.Time = time.Now()
		err := s.Writer.WriteMessages(ctx, msg)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return false
		}
		if !errors.Is(err, context.Canceled) {
			s.Log.Error("publish fulfillment failed", zap.Uint64("requestId", req.RequestID), zap.Error(err))
		}
		s.count(func(m *Metrics) { m.Failures.Inc() })
		if !sleep(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, maxBackoff)
	}
	s.count(func(m *Metrics) { m.Fulfilled.Inc() })
	s.Log.Debug("fulfillment published", zap.Uint64("requestId", req.RequestID), zap.Uint64("nonce", f.Nonce))
	return true
}

// Fulfill gera as palavras de um pedido com o próximo nonce e assina se houver segredo
func (s *Simulator) Fulfill(req events.RandomnessRequest) (events.RandomnessFulfillment, error) {
	nonce := s.nonce.Add(1)
	n := req.NumWords
	if n == 0 {
		n = 1
	}
	words := make([]string, n)
	for i := uint32(0); i < n; i++ {
		words[i] = s.Seed.Word(req.RequestID, nonce, i).String()
	}
	caller := s.Identity
	if caller == "" {
		caller = req.Coordinator
	}
	f := events.RandomnessFulfillment{
		RequestID:      req.RequestID,
		RandomWords:    words,
		Caller:         caller,
		ServerSeedHash: s.Seed.Hash,
		Nonce:          nonce,
		TsUnixMs:       time.Now().UnixMilli(),
	}
	if len(s.Secret) > 0 {
		tok, err := auth.Issue(s.Secret, caller, tokenTTL)
		if err != nil {
			return events.RandomnessFulfillment{}, err
		}
		f.Token = tok
	}
	return f, nil
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

func (s *Simulator) count(f func(*Metrics)) {
	if s.Metrics != nil {
		f(s.Metrics)
	}
}
