package repo

// Schema cria as tabelas do settlement-service (idempotente)
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS contract_state (
		id                 SMALLINT PRIMARY KEY CHECK (id = 1),
		next_id            BIGINT      NOT NULL,
		total_games        BIGINT      NOT NULL,
		total_volume       NUMERIC     NOT NULL,
		total_fees         NUMERIC     NOT NULL,
		available_balance  NUMERIC     NOT NULL,
		reserved_liability NUMERIC     NOT NULL,
		escrowed_stakes    NUMERIC     NOT NULL,
		min_bet            NUMERIC     NOT NULL,
		max_bet            NUMERIC     NOT NULL,
		house_edge_bps     INTEGER     NOT NULL,
		owner              TEXT        NOT NULL,
		randomness         JSONB       NOT NULL,
		version            TEXT        NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS wagers (
		id             BIGINT PRIMARY KEY,
		player         TEXT        NOT NULL,
		amount         NUMERIC     NOT NULL,
		choice         SMALLINT    NOT NULL,
		status         TEXT        NOT NULL,
		won            BOOLEAN     NOT NULL DEFAULT FALSE,
		payout         NUMERIC     NOT NULL DEFAULT 0,
		outcome        SMALLINT    NOT NULL DEFAULT 0,
		random_value   TEXT        NOT NULL DEFAULT '',
		fee            NUMERIC     NOT NULL,
		liability      NUMERIC     NOT NULL,
		payout_state   TEXT        NOT NULL,
		requested      BOOLEAN     NOT NULL DEFAULT FALSE,
		coordinator    TEXT        NOT NULL DEFAULT '',
		logic_version  TEXT        NOT NULL,
		schema_version INTEGER     NOT NULL,
		submitted_at   TIMESTAMPTZ NOT NULL,
		fulfilled_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS wagers_player_idx ON wagers (player, id)`,
}
