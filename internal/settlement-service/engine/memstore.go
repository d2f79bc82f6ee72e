package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryStore é um Store em memória (testes e STORE=memory)
type MemoryStore struct {
	mu       sync.RWMutex
	state    *State
	wagers   map[uint64]Wager
	byPlayer map[string][]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wagers:   make(map[uint64]Wager),
		byPlayer: make(map[string][]uint64),
	}
}

func (m *MemoryStore) LoadState(_ context.Context) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return State{}, false, nil
	}
	return *m.state, true, nil
}

func (m *MemoryStore) Apply(_ context.Context, b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := b.State
	m.state = &st
	for _, w := range b.Wagers {
		if _, ok := m.wagers[w.ID]; !ok {
			m.byPlayer[w.Player] = append(m.byPlayer[w.Player], w.ID)
		}
		m.wagers[w.ID] = w
	}
	return nil
}

func (m *MemoryStore) GetWager(_ context.Context, id uint64) (Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wagers[id]
	if !ok {
		return Wager{}, ErrWagerNotFound
	}
	return w, nil
}

func (m *MemoryStore) WagersByPlayer(_ context.Context, player string) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byPlayer[player]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out, nil
}

func (m *MemoryStore) Leaderboard(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]LeaderboardEntry, 0, len(m.byPlayer))
	for player, ids := range m.byPlayer {
		e := LeaderboardEntry{Player: player, Volume: decimal.Zero, TotalPayout: decimal.Zero}
		for _, id := range ids {
			w := m.wagers[id]
			e.Games++
			e.Volume = e.Volume.Add(w.Amount)
			if w.Status == StatusFulfilled && w.Won {
				e.Wins++
				e.TotalPayout = e.TotalPayout.Add(w.Payout)
			}
		}
		out = append(out, e)
	}

	return RankLeaderboard(out, limit), nil
}

// RankLeaderboard ordena por total pago, depois vitórias, depois jogador, e corta em limit (<= 0 = todos)
func RankLeaderboard(out []LeaderboardEntry, limit int) []LeaderboardEntry {
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalPayout.Cmp(out[j].TotalPayout); c != 0 {
			return c > 0
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].Player < out[j].Player
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
