package repo

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
	"github.com/radieske/headsup-settlement/internal/shared/db"
)

// newStore conecta no TEST_POSTGRES_DSN ou pula o teste
func newStore(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	pg, err := db.ConnectPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, pg, Schema...))
	s := NewPostgres(pg)
	require.NoError(t, s.Reset(ctx))
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPostgresStateRoundTrip(t *testing.T) {
	checkStateRoundTrip(t, newStore(t))
}

func TestEngineOverPostgres(t *testing.T) {
	checkEngineOverStore(t, newStore(t))
}

// checkStateRoundTrip roda contra qualquer engine.Store vazio
func checkStateRoundTrip(t *testing.T, s engine.Store) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	st := engine.State{
		NextID:            3,
		TotalGames:        2,
		TotalVolume:       dec("2.5"),
		TotalFees:         dec("0.0625"),
		AvailableBalance:  dec("100.0625"),
		ReservedLiability: dec("0.975"),
		EscrowedStakes:    dec("0.975"),
		MinBet:            dec("0.01"),
		MaxBet:            dec("100"),
		HouseEdgeBps:      250,
		Owner:             "owner",
		Randomness: engine.RandomnessConfig{
			Coordinator: "vrf", SubscriptionID: 7, KeyHash: "0xabc",
			CallbackGasLimit: 100000, RequestConfirmations: 3, NumWords: 1,
		},
		Version: "1.0.0",
	}
	submitted := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w := engine.Wager{
		ID: 1, Player: "alice", Amount: dec("1.5"), Choice: engine.Heads,
		Status: engine.StatusPending, Payout: decimal.Zero, Fee: dec("0.0375"), Liability: dec("1.4625"),
		PayoutState: engine.PayoutNone, LogicVersion: "1.0.0", SchemaVersion: engine.SchemaVersion,
		SubmittedAt: submitted,
	}
	require.NoError(t, s.Apply(ctx, engine.Batch{State: st, Wagers: []engine.Wager{w}}))

	got, found, err := s.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, st.NextID, got.NextID)
	assert.True(t, st.AvailableBalance.Equal(got.AvailableBalance))
	assert.True(t, st.TotalFees.Equal(got.TotalFees))
	assert.Equal(t, st.Randomness, got.Randomness)
	assert.Equal(t, "1.0.0", got.Version)

	gw, err := s.GetWager(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", gw.Player)
	assert.Equal(t, engine.Heads, gw.Choice)
	assert.Equal(t, engine.StatusPending, gw.Status)
	assert.True(t, gw.Fee.Equal(dec("0.0375")))
	assert.True(t, gw.FulfilledAt.IsZero())
	assert.True(t, gw.SubmittedAt.Equal(submitted))

	// update: campos imutáveis não mudam mesmo se o batch mandar outro valor
	w.Status = engine.StatusFulfilled
	w.Won = true
	w.Payout = w.Liability
	w.PayoutState = engine.PayoutPaid
	w.Outcome = engine.Heads
	w.RandomValue = "12345678901234567890123456789"
	w.FulfilledAt = submitted.Add(time.Minute)
	w.Amount = dec("99")
	require.NoError(t, s.Apply(ctx, engine.Batch{State: st, Wagers: []engine.Wager{w}}))

	gw, err = s.GetWager(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusFulfilled, gw.Status)
	assert.Equal(t, engine.PayoutPaid, gw.PayoutState)
	assert.Equal(t, "12345678901234567890123456789", gw.RandomValue)
	assert.True(t, gw.Amount.Equal(dec("1.5")))
	assert.False(t, gw.FulfilledAt.IsZero())

	_, err = s.GetWager(ctx, 99)
	assert.ErrorIs(t, err, engine.ErrWagerNotFound)
}

type nopProvider struct{}

func (nopProvider) RequestRandomness(context.Context, engine.RandomnessRequest) error { return nil }

type nopPayer struct{}

func (nopPayer) Transfer(context.Context, string, decimal.Decimal, string) error { return nil }
func (nopPayer) Reserve(context.Context, string, decimal.Decimal, string) error { return nil }
func (nopPayer) Commit(context.Context, string, string) error { return nil }
func (nopPayer) Release(context.Context, string, string) error { return nil }

func checkEngineOverStore(t *testing.T, s engine.Store) {
	t.Helper()
	ctx := context.Background()

	opts := engine.Options{
		Provider:  nopProvider{},
		Payer:     nopPayer{},
		Collector: nopPayer{},
		Genesis: engine.Genesis{
			Owner: "owner", MinBet: dec("0.01"), MaxBet: dec("100"), HouseEdgeBps: 250,
			Randomness: engine.RandomnessConfig{Coordinator: "vrf", CallbackGasLimit: 100000, RequestConfirmations: 3, NumWords: 1},
		},
	}
	eng, err := engine.New(ctx, zap.NewNop(), s, opts)
	require.NoError(t, err)
	require.NoError(t, eng.Fund(ctx, "owner", dec("100")))

	for _, p := range []string{"alice", "bob", "alice"} {
		_, err := eng.Submit(ctx, p, dec("1"), engine.Heads)
		require.NoError(t, err)
	}
	for id := uint64(1); id <= 3; id++ {
		_, err := eng.OnFulfillment(ctx, id, big.NewInt(int64(id)), "vrf")
		require.NoError(t, err)
	}

	ids, err := s.WagersByPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, ids)

	board, err := s.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "alice", board[0].Player)
	assert.Equal(t, uint64(2), board[0].Games)
	assert.Equal(t, uint64(2), board[0].Wins)
	assert.True(t, board[0].TotalPayout.Equal(dec("1.95")))

	// reabrir retoma contadores e próximo id
	eng2, err := engine.New(ctx, zap.NewNop(), s, opts)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), eng2.Stats().TotalGames)
	assert.True(t, eng.Stats().AvailableBalance.Equal(eng2.Stats().AvailableBalance))
	id, err := eng2.Submit(ctx, "carol", dec("1"), engine.Tails)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), id)
}
