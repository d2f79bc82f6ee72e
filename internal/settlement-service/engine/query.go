package engine

import "context"

func (e *Engine) GetWager(ctx context.Context, id uint64) (Wager, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.GetWager(ctx, id)
}

func (e *Engine) WagersByPlayer(ctx context.Context, player string) ([]uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.WagersByPlayer(ctx, player)
}

func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Leaderboard(ctx, limit)
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return statsOf(e.state)
}

func (e *Engine) BetLimits() BetLimits {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return BetLimits{Min: e.state.MinBet, Max: e.state.MaxBet}
}

func (e *Engine) RandomnessConfig() RandomnessConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Randomness
}

func (e *Engine) Version() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Version
}

func (e *Engine) Owner() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Owner
}

func (e *Engine) HouseEdgeBps() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.HouseEdgeBps
}

func statsOf(st State) Stats {
	return Stats{
		TotalGames:        st.TotalGames,
		TotalVolume:       st.TotalVolume,
		AvailableBalance:  st.AvailableBalance,
		TotalFees:         st.TotalFees,
		ReservedLiability: st.ReservedLiability,
		EscrowedStakes:    st.EscrowedStakes,
	}
}
