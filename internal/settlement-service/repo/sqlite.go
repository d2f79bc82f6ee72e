package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
)

// SQLiteSchema é o mesmo layout do Postgres; valores monetários vão como TEXT
var SQLiteSchema = []string{
	`CREATE TABLE IF NOT EXISTS contract_state (
		id                 INTEGER PRIMARY KEY CHECK (id = 1),
		next_id            INTEGER  NOT NULL,
		total_games        INTEGER  NOT NULL,
		total_volume       TEXT     NOT NULL,
		total_fees         TEXT     NOT NULL,
		available_balance  TEXT     NOT NULL,
		reserved_liability TEXT     NOT NULL,
		escrowed_stakes    TEXT     NOT NULL,
		min_bet            TEXT     NOT NULL,
		max_bet            TEXT     NOT NULL,
		house_edge_bps     INTEGER  NOT NULL,
		owner              TEXT     NOT NULL,
		randomness         TEXT     NOT NULL,
		version            TEXT     NOT NULL,
		updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS wagers (
		id             INTEGER PRIMARY KEY,
		player         TEXT     NOT NULL,
		amount         TEXT     NOT NULL,
		choice         INTEGER  NOT NULL,
		status         TEXT     NOT NULL,
		won            BOOLEAN  NOT NULL DEFAULT 0,
		payout         TEXT     NOT NULL DEFAULT '0',
		outcome        INTEGER  NOT NULL DEFAULT 0,
		random_value   TEXT     NOT NULL DEFAULT '',
		fee            TEXT     NOT NULL,
		liability      TEXT     NOT NULL,
		payout_state   TEXT     NOT NULL,
		requested      BOOLEAN  NOT NULL DEFAULT 0,
		coordinator    TEXT     NOT NULL DEFAULT '',
		logic_version  TEXT     NOT NULL,
		schema_version INTEGER  NOT NULL,
		submitted_at   DATETIME NOT NULL,
		fulfilled_at   DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS wagers_player_idx ON wagers (player, id)`,
}

// SQLite implementa engine.Store num arquivo local (deploy de nó único)
type SQLite struct{ db *sql.DB }

// OpenSQLite abre o arquivo e aplica o schema. path ":memory:" serve para testes.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// um único escritor; também mantém o banco :memory: vivo numa conexão só
	db.SetMaxOpenConns(1)
	for _, stmt := range SQLiteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) LoadState(ctx context.Context) (engine.State, bool, error) {
	var st engine.State
	var randomness string
	err := s.db.QueryRowContext(ctx, `
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
	if err := json.Unmarshal([]byte(randomness), &st.Randomness); err != nil {
		return engine.State{}, false, fmt.Errorf("decode randomness config: %w", err)
	}
	return st, true, nil
}

func (s *SQLite) Apply(ctx context.Context, b engine.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
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
		VALUES (1,?,?,?,?,?,?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			next_id = excluded.next_id,
			total_games = excluded.total_games,
			total_volume = excluded.total_volume,
			total_fees = excluded.total_fees,
			available_balance = excluded.available_balance,
			reserved_liability = excluded.reserved_liability,
			escrowed_stakes = excluded.escrowed_stakes,
			min_bet = excluded.min_bet,
			max_bet = excluded.max_bet,
			house_edge_bps = excluded.house_edge_bps,
			owner = excluded.owner,
			randomness = excluded.randomness,
			version = excluded.version,
			updated_at = CURRENT_TIMESTAMP`,
		int64(st.NextID), int64(st.TotalGames), st.TotalVolume.String(), st.TotalFees.String(),
		st.AvailableBalance.String(), st.ReservedLiability.String(), st.EscrowedStakes.String(),
		st.MinBet.String(), st.MaxBet.String(), st.HouseEdgeBps, st.Owner, string(randomness), st.Version,
	); err != nil {
		return fmt.Errorf("upsert contract_state: %w", err)
	}

	for _, w := range b.Wagers {
		var fulfilledAt sql.NullTime
		if !w.FulfilledAt.IsZero() {
			fulfilledAt = sql.NullTime{Time: w.FulfilledAt, Valid: true}
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO wagers (id, player, amount, choice, status, won, payout, outcome,
				random_value, fee, liability, payout_state, requested, coordinator,
				logic_version, schema_version, submitted_at, fulfilled_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT (id) DO UPDATE SET
				status = excluded.status,
				won = excluded.won,
				payout = excluded.payout,
				outcome = excluded.outcome,
				random_value = excluded.random_value,
				payout_state = excluded.payout_state,
				requested = excluded.requested,
				coordinator = excluded.coordinator,
				fulfilled_at = excluded.fulfilled_at`,
			int64(w.ID), w.Player, w.Amount.String(), int(w.Choice), string(w.Status), w.Won, w.Payout.String(), int(w.Outcome),
			w.RandomValue, w.Fee.String(), w.Liability.String(), string(w.PayoutState), w.Requested, w.Coordinator,
			w.LogicVersion, w.SchemaVersion, w.SubmittedAt.UTC(), fulfilledAt,
		); err != nil {
			return fmt.Errorf("upsert wager %d: %w", w.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) GetWager(ctx context.Context, id uint64) (engine.Wager, error) {
	var (
		w                   engine.Wager
		choice, outcome     int
		status, payoutState string
		fulfilledAt         sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, player, amount, choice, status, won, payout, outcome, random_value,
		       fee, liability, payout_state, requested, coordinator, logic_version,
		       schema_version, submitted_at, fulfilled_at
		FROM wagers WHERE id = ?`, int64(id)).Scan(
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

func (s *SQLite) WagersByPlayer(ctx context.Context, player string) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM wagers WHERE player = ? ORDER BY id`, player)
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

// Leaderboard soma em Go: SUM do SQLite sobre TEXT perderia precisão decimal
func (s *SQLite) Leaderboard(ctx context.Context, limit int) ([]engine.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player, amount, status, won, payout FROM wagers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agg := map[string]*engine.LeaderboardEntry{}
	for rows.Next() {
		var (
			player, status string
			amount, payout decimal.Decimal
			won            bool
		)
		if err := rows.Scan(&player, &amount, &status, &won, &payout); err != nil {
			return nil, err
		}
		e, ok := agg[player]
		if !ok {
			e = &engine.LeaderboardEntry{Player: player, Volume: decimal.Zero, TotalPayout: decimal.Zero}
			agg[player] = e
		}
		e.Games++
		e.Volume = e.Volume.Add(amount)
		if engine.Status(status) == engine.StatusFulfilled && won {
			e.Wins++
			e.TotalPayout = e.TotalPayout.Add(payout)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]engine.LeaderboardEntry, 0, len(agg))
	for _, e := range agg {
		out = append(out, *e)
	}
	return engine.RankLeaderboard(out, limit), nil
}
