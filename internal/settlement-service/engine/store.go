package engine

import "context"

// Batch é uma transição atômica: novo estado global + registros criados/alterados
type Batch struct {
	State  State
	Wagers []Wager
}

// Store persiste o estado do contrato e as apostas.
// Apply deve ser atômico: leitores veem o batch inteiro ou nada dele.
type Store interface {
	LoadState(ctx context.Context) (st State, found bool, err error)
	Apply(ctx context.Context, b Batch) error
	GetWager(ctx context.Context, id uint64) (Wager, error)
	WagersByPlayer(ctx context.Context, player string) ([]uint64, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}
