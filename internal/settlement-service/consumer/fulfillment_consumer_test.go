package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
	"github.com/radieske/headsup-settlement/internal/shared/auth"
	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type dlq struct{ msgs []kafka.Message }

func (d *dlq) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	d.msgs = append(d.msgs, msgs...)
	return nil
}

func (d *dlq) codes() []string {
	var out []string
	for _, m := range d.msgs {
		for _, h := range m.Headers {
			if h.Key == "error_code" {
				out = append(out, string(h.Value))
			}
		}
	}
	return out
}

type scripted struct {
	errs  []error
	calls int
}

func (s *scripted) OnFulfillment(_ context.Context, id uint64, _ *big.Int, _ string) (engine.Resolution, error) {
	s.calls++
	if len(s.errs) == 0 {
		return engine.Resolution{WagerID: id}, nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return engine.Resolution{}, err
}

func msg(t *testing.T, offset int64, f events.RandomnessFulfillment) kafka.Message {
	t.Helper()
	b, err := json.Marshal(f)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestHandleRoutesErrors(t *testing.T) {
	good := events.RandomnessFulfillment{RequestID: 1, RandomWords: []string{"7"}, Caller: "vrf"}

	cases := []struct {
		name     string
		msg      func(t *testing.T) kafka.Message
		errs     []error
		calls    int
		dlqCodes []string
	}{
		{"applied", func(t *testing.T) kafka.Message { return msg(t, 1, good) }, nil, 1, nil},
		{"duplicate", func(t *testing.T) kafka.Message { return msg(t, 1, good) }, []error{engine.ErrAlreadyFulfilled}, 1, nil},
		{"payout failed", func(t *testing.T) kafka.Message { return msg(t, 1, good) }, []error{engine.ErrTransferFailed}, 1, nil},
		{"unauthorized", func(t *testing.T) kafka.Message { return msg(t, 1, good) }, []error{engine.ErrUnauthorizedCaller}, 1, []string{"UnauthorizedCaller"}},
		{"unknown", func(t *testing.T) kafka.Message { return msg(t, 1, good) }, []error{engine.ErrUnknownRequest}, 1, []string{"UnknownRequest"}},
		{"transient then ok", func(t *testing.T) kafka.Message { return msg(t, 1, good) }, []error{errors.New("db"), errors.New("db")}, 3, nil},
		{"transient exhausted", func(t *testing.T) kafka.Message { return msg(t, 1, good) }, []error{errors.New("db"), errors.New("db"), errors.New("db")}, 3, []string{"Internal"}},
		{"bad json", func(*testing.T) kafka.Message { return kafka.Message{Value: []byte("{")} }, nil, 0, []string{"Decode"}},
		{"no words", func(t *testing.T) kafka.Message {
			return msg(t, 1, events.RandomnessFulfillment{RequestID: 1, Caller: "vrf"})
		}, nil, 0, []string{"InvalidRandomValue"}},
		{"negative word", func(t *testing.T) kafka.Message {
			return msg(t, 1, events.RandomnessFulfillment{RequestID: 1, RandomWords: []string{"-1"}, Caller: "vrf"})
		}, nil, 0, []string{"InvalidRandomValue"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			eng := &scripted{errs: c.errs}
			d := &dlq{}
			p := &Processor{Log: zap.NewNop(), Engine: eng, DLQ: d, Backoff: time.Millisecond}
			p.Handle(context.Background(), c.msg(t))
			assert.Equal(t, c.calls, eng.calls)
			assert.Equal(t, c.dlqCodes, d.codes())
		})
	}
}

type stubProvider struct{}

func (stubProvider) RequestRandomness(context.Context, engine.RandomnessRequest) error { return nil }

type stubPayer struct{}

func (stubPayer) Transfer(context.Context, string, decimal.Decimal, string) error { return nil }
func (stubPayer) Reserve(context.Context, string, decimal.Decimal, string) error { return nil }
func (stubPayer) Commit(context.Context, string, string) error { return nil }
func (stubPayer) Release(context.Context, string, string) error { return nil }

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(context.Background(), zap.NewNop(), engine.NewMemoryStore(), engine.Options{
		Provider:  stubProvider{},
		Payer:     stubPayer{},
		Collector: stubPayer{},
		Genesis: engine.Genesis{
			Owner: "owner", MinBet: decimal.RequireFromString("0.01"), MaxBet: decimal.NewFromInt(100), HouseEdgeBps: 250,
			Randomness: engine.RandomnessConfig{Coordinator: "vrf", CallbackGasLimit: 100000, RequestConfirmations: 3, NumWords: 1},
		},
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, eng.Fund(ctx, "owner", decimal.NewFromInt(100)))
	_, err = eng.Submit(ctx, "alice", decimal.NewFromInt(1), engine.Heads)
	require.NoError(t, err)
	return eng
}

func TestRunSettlesThroughEngineAndCommits(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	reader := &fakeReader{msgs: []kafka.Message{
		msg(t, 10, events.RandomnessFulfillment{RequestID: 1, RandomWords: []string{"3"}, Caller: "mallory"}),
		msg(t, 11, events.RandomnessFulfillment{RequestID: 1, RandomWords: []string{"3"}, Caller: "vrf"}),
		msg(t, 12, events.RandomnessFulfillment{RequestID: 1, RandomWords: []string{"4"}, Caller: "vrf"}),
	}}
	d := &dlq{}
	var consumed int
	p := &Processor{Log: zap.NewNop(), Reader: reader, Engine: eng, DLQ: d, OnConsumed: func() { consumed++ }}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- p.Run(runCtx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []int64{10, 11, 12}, reader.commits())
	assert.Equal(t, 3, consumed)
	assert.Equal(t, []string{"UnauthorizedCaller"}, d.codes())

	w, err := eng.GetWager(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusFulfilled, w.Status)
	assert.True(t, w.Won)
	assert.Equal(t, "3", w.RandomValue)
}

func TestSignedFulfillmentsWhenSecretConfigured(t *testing.T) {
	secret := []byte("vrf-secret")
	eng := newEngine(t)
	ctx := context.Background()
	d := &dlq{}
	p := &Processor{Log: zap.NewNop(), Engine: eng, DLQ: d, Identity: auth.Identity{Secret: secret}}

	sign := func(key []byte, sub string) string {
		tok, err := auth.Issue(key, sub, time.Minute)
		require.NoError(t, err)
		return tok
	}
	words := []string{"3"}

	// campo caller sozinho não autentica ninguém
	p.Handle(ctx, msg(t, 1, events.RandomnessFulfillment{RequestID: 1, RandomWords: words, Caller: "vrf"}))
	p.Handle(ctx, msg(t, 2, events.RandomnessFulfillment{RequestID: 1, RandomWords: words, Caller: "vrf", Token: sign([]byte("other"), "vrf")}))
	// o chamador é o subject do token, não o campo caller
	p.Handle(ctx, msg(t, 3, events.RandomnessFulfillment{RequestID: 1, RandomWords: words, Caller: "vrf", Token: sign(secret, "mallory")}))

	w, err := eng.GetWager(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPending, w.Status)
	assert.Equal(t, []string{"InvalidToken", "InvalidToken", "UnauthorizedCaller"}, d.codes())

	p.Handle(ctx, msg(t, 4, events.RandomnessFulfillment{RequestID: 1, RandomWords: words, Token: sign(secret, "vrf")}))
	w, err = eng.GetWager(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusFulfilled, w.Status)
	assert.Len(t, d.msgs, 3)
}
