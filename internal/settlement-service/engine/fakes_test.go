package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

const (
	owner       = "owner"
	coordinator = "vrf-coordinator"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []RandomnessRequest
	fail     error
}

func (f *fakeProvider) RequestRandomness(_ context.Context, req RandomnessRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeProvider) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

type transfer struct {
	To     string
	Amount string
	Ref    string
}

type fakePayer struct {
	mu        sync.Mutex
	transfers []transfer
	fail      error
}

func (f *fakePayer) Transfer(_ context.Context, to string, amount decimal.Decimal, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.transfers = append(f.transfers, transfer{To: to, Amount: amount.String(), Ref: ref})
	return nil
}

func (f *fakePayer) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

type hold struct {
	From   string
	Amount string
	Ref    string
	State  string // PENDING, COMMITTED, RELEASED
}

type fakeCollector struct {
	mu    sync.Mutex
	holds []*hold
	fail  error
}

func (f *fakeCollector) Reserve(_ context.Context, from string, amount decimal.Decimal, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.holds = append(f.holds, &hold{From: from, Amount: amount.String(), Ref: ref, State: "PENDING"})
	return nil
}

func (f *fakeCollector) Commit(_ context.Context, _, ref string) error {
	return f.set(ref, "COMMITTED")
}

func (f *fakeCollector) Release(_ context.Context, _, ref string) error {
	return f.set(ref, "RELEASED")
}

func (f *fakeCollector) set(ref, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.holds {
		if h.Ref == ref {
			if h.State == "PENDING" {
				h.State = state
			}
			return nil
		}
	}
	return errors.New("unknown hold " + ref)
}

func (f *fakeCollector) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

// of devolve as reservas de um usuário, em ordem
func (f *fakeCollector) of(from string) []hold {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []hold
	for _, h := range f.holds {
		if h.From == from {
			out = append(out, *h)
		}
	}
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (r *recorder) Publish(_ context.Context, e events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	eng      *Engine
	store    *MemoryStore
	provider *fakeProvider
	payer    *fakePayer
	funds    *fakeCollector
	pub      *recorder
	clock    *clock
}

var errBoom = errors.New("boom")

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func genesis() Genesis {
	return Genesis{
		Owner:        owner,
		MinBet:       d("0.01"),
		MaxBet:       d("100"),
		HouseEdgeBps: 250,
		Randomness: RandomnessConfig{
			Coordinator:          coordinator,
			SubscriptionID:       1,
			KeyHash:              "0x6e75b569a01ef56d18cab6a8e71e6600d6ce853834d4a5748b720d06f878b3a4",
			CallbackGasLimit:     100000,
			RequestConfirmations: 3,
			NumWords:             1,
		},
	}
}

func newHarnessWithStore(t *testing.T, store *MemoryStore, logic Logic) *harness {
	t.Helper()
	h := &harness{
		store:    store,
		provider: &fakeProvider{},
		payer:    &fakePayer{},
		funds:    &fakeCollector{},
		pub:      &recorder{},
		clock:    &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	eng, err := New(context.Background(), zap.NewNop(), store, Options{
		Provider:  h.provider,
		Payer:     h.payer,
		Collector: h.funds,
		Publisher: h.pub,
		Logic:     logic,
		Genesis:   genesis(),
		Now:       h.clock.now,
	})
	require.NoError(t, err)
	h.eng = eng
	return h
}

// newHarness cria um motor com 1000 de saldo disponível
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarnessWithStore(t, NewMemoryStore(), nil)
	require.NoError(t, h.eng.Fund(context.Background(), owner, d("1000")))
	return h
}
