package repo

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
		id       UUID PRIMARY KEY,
		user_id  TEXT UNIQUE NOT NULL,
		balance  NUMERIC NOT NULL DEFAULT 0,
		version  BIGINT  NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_ledger (
		id             BIGSERIAL PRIMARY KEY,
		wallet_id      UUID    NOT NULL REFERENCES wallets(id),
		operation_type TEXT    NOT NULL,
		amount         NUMERIC NOT NULL,
		external_ref   TEXT UNIQUE,
		description    TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE wallet_ledger ADD COLUMN IF NOT EXISTS description TEXT`,
	`CREATE TABLE IF NOT EXISTS wallet_reservations (
		id           UUID PRIMARY KEY,
		wallet_id    UUID    NOT NULL REFERENCES wallets(id),
		external_ref TEXT    NOT NULL,
		amount       NUMERIC NOT NULL,
		status       TEXT    NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (wallet_id, external_ref)
	)`,
}
