package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
)

// Postgres implementa engine.Store: estado global numa linha (id=1) + tabela de apostas
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do store de liquidação
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// LoadState lê a linha única de contract_state; found=false antes da gênese
func (p *Postgres) LoadState(ctx context.Context) (engine.State, bool, error) {
	var st engine.State
	var randomness []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT next_id, total_games, total_volume, total_fees, available_balance,
		       reserved_liability, escrowed_stakes, min_bet, max_bet, house_edge_bps,
		       owner, randomness, version
		FROM contract_state WHERE id = 1`).Scan(
		&st.NextID, &st.TotalGames, &st.TotalVolume, &st.TotalFees, &st.AvailableBalance,
		&st.ReservedLiability, &st.EscrowedStakes, &st.MinBet, &st.MaxBet, &st.HouseEdgeBps,
		&st.Owner, &randomness, &st.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.State{}, false, nil
	}
	if err != nil {
		return engine.State{}, false, fmt.Errorf("select contract_state: %w", err)
	}
	if err := json.Unmarshal(randomness, &st.Randomness); err != nil {
		return engine.State{}, false, fmt.Errorf("decode randomness config: %w", err)
	}
	return st, true, nil
}

// Apply grava estado + apostas numa única transação
func (p *Postgres) Apply(ctx context.Context, b engine.Batch) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	randomness, err := json.Marshal(b.State.Randomness)
	if err != nil {
		return err
	}
	st := b.State
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO contract_state (id, next_id, total_games, total_volume, total_fees,
			available_balance, reserved_liability, escrowed_stakes, min_bet, max_bet,
			house_edge_bps, owner, randomness, version, updated_at)
		VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
		ON CONFLICT (id) DO UPDATE SET
			next_id = EXCLUDED.next_id,
			total_games = EXCLUDED.total_games,
			total_volume = EXCLUDED.total_volume,
			total_fees = EXCLUDED.total_fees,
			available_balance = EXCLUDED.available_balance,
			reserved_liability = EXCLUDED.reserved_liability,
			escrowed_stakes = EXCLUDED.escrowed_stakes,
			min_bet = EXCLUDED.min_bet,
			max_bet = EXCLUDED.max_bet,
			house_edge_bps = EXCLUDED.house_edge_bps,
			owner = EXCLUDED.owner,
			randomness = EXCLUDED.randomness,
			version = EXCLUDED.version,
			updated_at = NOW()`,
		st.NextID, st.TotalGames, st.TotalVolume, st.TotalFees,
		st.AvailableBalance, st.ReservedLiability, st.EscrowedStakes, st.MinBet, st.MaxBet,
		st.HouseEdgeBps, st.Owner, randomness, st.Version,
	); err != nil {
		return fmt.Errorf("upsert contract_state: %w", err)
	}

	for _, w := range b.Wagers {
		var fulfilledAt sql.NullTime
		if !w.FulfilledAt.IsZero() {
			fulfilledAt = sql.NullTime{Time: w.FulfilledAt, Valid: true}
		}
		// campos imutáveis (player, amount, choice, fee, liability...) só entram no INSERT
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO wagers (id, player, amount, choice, status, won, payout, outcome,
				random_value, fee, liability, payout_state, requested, coordinator,
				logic_version, schema_version, submitted_at, fulfilled_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				won = EXCLUDED.won,
				payout = EXCLUDED.payout,
				outcome = EXCLUDED.outcome,
				random_value = EXCLUDED.random_value,
				payout_state = EXCLUDED.payout_state,
				requested = EXCLUDED.requested,
				coordinator = EXCLUDED.coordinator,
				fulfilled_at = EXCLUDED.fulfilled_at`,
			w.ID, w.Player, w.Amount, int16(w.Choice), string(w.Status), w.Won, w.Payout, int16(w.Outcome),
			w.RandomValue, w.Fee, w.Liability, string(w.PayoutState), w.Requested, w.Coordinator,
			w.LogicVersion, w.SchemaVersion, w.SubmittedAt, fulfilledAt,
		); err != nil {
			return fmt.Errorf("upsert wager %d: %w", w.ID, err)
		}
	}

	return tx.Commit()
}

// GetWager busca uma aposta pelo id
func (p *Postgres) GetWager(ctx context.Context, id uint64) (engine.Wager, error) {
	var (
		w                   engine.Wager
		choice, outcome     int16
		status, payoutState string
		fulfilledAt         sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, player, amount, choice, status, won, payout, outcome, random_value,
		       fee, liability, payout_state, requested, coordinator, logic_version,
		       schema_version, submitted_at, fulfilled_at
		FROM wagers WHERE id = $1`, id).Scan(
		&w.ID, &w.Player, &w.Amount, &choice, &status, &w.Won, &w.Payout, &outcome, &w.RandomValue,
		&w.Fee, &w.Liability, &payoutState, &w.Requested, &w.Coordinator, &w.LogicVersion,
		&w.SchemaVersion, &w.SubmittedAt, &fulfilledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Wager{}, engine.ErrWagerNotFound
	}
	if err != nil {
		return engine.Wager{}, fmt.Errorf("select wager %d: %w", id, err)
	}
	w.Choice = engine.Choice(choice)
	w.Outcome = engine.Choice(outcome)
	w.Status = engine.Status(status)
	w.PayoutState = engine.PayoutState(payoutState)
	w.SubmittedAt = w.SubmittedAt.UTC()
	if fulfilledAt.Valid {
		w.FulfilledAt = fulfilledAt.Time.UTC()
	}
	return w, nil
}

// WagersByPlayer retorna os ids do jogador em ordem de submissão
func (p *Postgres) WagersByPlayer(ctx context.Context, player string) ([]uint64, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM wagers WHERE player = $1 ORDER BY id`, player)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Leaderboard agrega por jogador; limit <= 0 retorna todos
func (p *Postgres) Leaderboard(ctx context.Context, limit int) ([]engine.LeaderboardEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT player,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'FULFILLED' AND won),
		       COALESCE(SUM(amount), 0),
		       COALESCE(SUM(payout) FILTER (WHERE status = 'FULFILLED' AND won), 0)
		FROM wagers
		GROUP BY player
		ORDER BY 5 DESC, 3 DESC, player ASC
		LIMIT NULLIF($1::int, 0)`, max(limit, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []engine.LeaderboardEntry{}
	for rows.Next() {
		var e engine.LeaderboardEntry
		if err := rows.Scan(&e.Player, &e.Games, &e.Wins, &e.Volume, &e.TotalPayout); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Reset apaga tudo (usado em testes de integração)
func (p *Postgres) Reset(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `TRUNCATE wagers, contract_state`)
	return err
}
