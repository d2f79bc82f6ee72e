package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/internal/shared/auth"
	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

type chanReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed int
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed += len(msgs)
	return nil
}

func (r *chanReader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

type sink struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (s *sink) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestSeedWordIsDeterministicAndVerifiable(t *testing.T) {
	s, err := NewSeed("server-seed")
	require.NoError(t, err)
	assert.True(t, Verify("server-seed", s.Hash))
	assert.False(t, Verify("other", s.Hash))

	a := s.Word(1, 1, 0)
	assert.Equal(t, 0, a.Cmp(s.Word(1, 1, 0)))
	assert.NotEqual(t, 0, a.Cmp(s.Word(1, 2, 0)))
	assert.NotEqual(t, 0, a.Cmp(s.Word(2, 1, 0)))
	assert.LessOrEqual(t, a.BitLen(), 256)

	g, err := NewSeed("")
	require.NoError(t, err)
	assert.Len(t, g.ServerSeed, 64)
}

func TestFulfillUsesCoordinatorIdentityAndNumWords(t *testing.T) {
	seed, _ := NewSeed("s")
	sim := &Simulator{Seed: seed}

	f, err := sim.Fulfill(events.RandomnessRequest{RequestID: 9, Coordinator: "vrf", NumWords: 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), f.RequestID)
	assert.Equal(t, "vrf", f.Caller)
	assert.Empty(t, f.Token)
	assert.Len(t, f.RandomWords, 3)
	assert.Equal(t, uint64(1), f.Nonce)
	assert.Equal(t, seed.Hash, f.ServerSeedHash)
	assert.Equal(t, seed.Word(9, 1, 2).String(), f.RandomWords[2])

	sim.Identity = "impostor"
	f, err = sim.Fulfill(events.RandomnessRequest{RequestID: 10, Coordinator: "vrf"})
	require.NoError(t, err)
	assert.Equal(t, "impostor", f.Caller)
	assert.Len(t, f.RandomWords, 1)
	assert.Equal(t, uint64(2), f.Nonce)
}

func TestFulfillSignsWithSecret(t *testing.T) {
	seed, _ := NewSeed("s")
	secret := []byte("vrf-secret")
	sim := &Simulator{Seed: seed, Secret: secret}

	f, err := sim.Fulfill(events.RandomnessRequest{RequestID: 1, Coordinator: "vrf"})
	require.NoError(t, err)
	sub, err := auth.Identity{Secret: secret}.Verify(f.Token)
	require.NoError(t, err)
	assert.Equal(t, "vrf", sub)

	_, err = auth.Identity{Secret: []byte("other")}.Verify(f.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRunAnswersEveryRequest(t *testing.T) {
	seed, _ := NewSeed("s")
	reader := &chanReader{msgs: make(chan kafka.Message, 8)}
	out := &sink{}
	reg := prometheus.NewRegistry()
	sim := &Simulator{
		Log:      zap.NewNop(),
		Reader:   reader,
		Writer:   out,
		Seed:     seed,
		MaxDelay: 20 * time.Millisecond,
		Metrics:  NewMetrics(reg),
	}

	for i := uint64(1); i <= 5; i++ {
		b, _ := json.Marshal(events.RandomnessRequest{RequestID: i, Coordinator: "vrf", NumWords: 1})
		reader.msgs <- kafka.Message{Offset: int64(i), Value: b}
	}
	reader.msgs <- kafka.Message{Offset: 6, Value: []byte("{bad")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	require.Eventually(t, func() bool { return out.len() == 5 && reader.count() == 6 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	seen := map[uint64]bool{}
	for _, m := range out.msgs {
		var f events.RandomnessFulfillment
		require.NoError(t, json.Unmarshal(m.Value, &f))
		assert.Equal(t, "vrf", f.Caller)
		seen[f.RequestID] = true
	}
	assert.Len(t, seen, 5)
	assert.Equal(t, float64(5), testutil.ToFloat64(sim.Metrics.Fulfilled))
	assert.Equal(t, float64(1), testutil.ToFloat64(sim.Metrics.Failures))
}

// topicLog simula uma partição com offset confirmado; cada view é um consumidor novo
type topicLog struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed int64 // próximo offset a ler depois de um restart
}

func (l *topicLog) append(v []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, kafka.Message{Offset: int64(len(l.msgs)), Value: v})
}

func (l *topicLog) offset() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.committed
}

func (l *topicLog) view() *logReader { return &logReader{log: l, next: l.offset()} }

type logReader struct {
	log  *topicLog
	next int64
}

func (r *logReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.log.mu.Lock()
	if r.next < int64(len(r.log.msgs)) {
		m := r.log.msgs[r.next]
		r.next++
		r.log.mu.Unlock()
		return m, nil
	}
	r.log.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *logReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	for _, m := range msgs {
		if m.Offset+1 > r.log.committed {
			r.log.committed = m.Offset + 1
		}
	}
	return nil
}

// brokenSink falha enquanto down estiver ligado
type brokenSink struct {
	sink
	mu    sync.Mutex
	down  bool
	tries int
}

func (b *brokenSink) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	b.mu.Lock()
	down := b.down
	b.tries++
	b.mu.Unlock()
	if down {
		return errors.New("broker unavailable")
	}
	return b.sink.WriteMessages(ctx, msgs...)
}

func (b *brokenSink) attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tries
}

func TestUnansweredRequestsAreRedeliveredAfterRestart(t *testing.T) {
	seed, _ := NewSeed("s")
	log := &topicLog{}
	for i := uint64(1); i <= 3; i++ {
		b, _ := json.Marshal(events.RandomnessRequest{RequestID: i, Coordinator: "vrf", NumWords: 1})
		log.append(b)
	}

	// primeira execução: o broker de saída está fora, nada pode ser confirmado
	out := &brokenSink{down: true}
	first := &Simulator{Log: zap.NewNop(), Reader: log.view(), Writer: out, Seed: seed}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()
	require.Eventually(t, func() bool { return out.attempts() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, log.offset())
	assert.Zero(t, out.len())

	// cancelado no meio do atraso: também fica sem commit
	slow := &Simulator{Log: zap.NewNop(), Reader: log.view(), Writer: &sink{}, Seed: seed, MaxDelay: time.Hour}
	ctx, cancel = context.WithCancel(context.Background())
	go func() { done <- slow.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// restart com o broker de volta: os três pedidos são respondidos e confirmados
	healthy := &sink{}
	second := &Simulator{Log: zap.NewNop(), Reader: log.view(), Writer: healthy, Seed: seed}
	ctx, cancel = context.WithCancel(context.Background())
	go func() { done <- second.Run(ctx) }()
	require.Eventually(t, func() bool { return healthy.len() == 3 && log.offset() == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	seen := map[uint64]bool{}
	for _, m := range healthy.msgs {
		var f events.RandomnessFulfillment
		require.NoError(t, json.Unmarshal(m.Value, &f))
		seen[f.RequestID] = true
	}
	assert.Len(t, seen, 3)
}

func TestCommitQueueOnlyConfirmsAnsweredPrefix(t *testing.T) {
	var q commitQueue
	a := q.track(kafka.Message{Partition: 0, Offset: 1})
	b := q.track(kafka.Message{Partition: 0, Offset: 2})
	c := q.track(kafka.Message{Partition: 1, Offset: 7})

	assert.Empty(t, q.finish(b))
	ready := q.finish(a)
	require.Len(t, ready, 2)
	assert.Equal(t, int64(2), ready[1].Offset)
	ready = q.finish(c)
	require.Len(t, ready, 1)
	assert.Equal(t, 1, ready[0].Partition)
}
