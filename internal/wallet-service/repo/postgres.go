package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Postgres implementa operações de carteira em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// GetOrCreateWallet retorna o walletId e saldo de um usuário, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (string, decimal.Decimal, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", decimal.Zero, err
	}
	defer tx.Rollback()

	id, bal, err := walletForUpdate(ctx, tx, userID)
	if err != nil {
		return "", decimal.Zero, err
	}
	if err = tx.Commit(); err != nil {
		return "", decimal.Zero, err
	}
	return id, bal, nil
}

// walletForUpdate trava a linha da carteira (criando se preciso) dentro da transação
func walletForUpdate(ctx context.Context, tx *sql.Tx, userID string) (string, decimal.Decimal, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallets(id, user_id, balance, version) VALUES($1,$2,0,1) ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), userID); err != nil {
		return "", decimal.Zero, err
	}
	var id string
	var bal decimal.Decimal
	err := tx.QueryRowContext(ctx, `SELECT id, balance FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&id, &bal)
	if errors.Is(err, sql.ErrNoRows) {
		return "", decimal.Zero, ErrNotFound
	}
	return id, bal, err
}

// Credit soma amount ao saldo e registra no ledger.
// Idempotente por externalRef: um ref repetido devolve o saldo atual com Duplicate=true.
func (p *Postgres) Credit(ctx context.Context, userID string, amount decimal.Decimal, externalRef, op string) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	id, bal, err := walletForUpdate(ctx, tx, userID)
	if err != nil {
		return Result{}, err
	}

	var ref sql.NullString
	if externalRef != "" {
		ref = sql.NullString{String: externalRef, Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger(wallet_id, operation_type, amount, external_ref)
		VALUES($1,$2,$3,$4)
		ON CONFLICT (external_ref) DO NOTHING`, id, op, amount, ref)
	if err != nil {
		return Result{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Result{WalletID: id, Balance: bal, Duplicate: true}, nil
	}

	var newBalance decimal.Decimal
	if err = tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance = balance + $1, version = version + 1 WHERE id=$2 RETURNING balance`,
		amount, id).Scan(&newBalance); err != nil {
		return Result{}, err
	}
	if err = tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{WalletID: id, Balance: newBalance}, nil
}

// Reserve cria uma reserva PENDING e debita saldo (bloqueio).
// Idempotente por (wallet_id, external_ref).
func (p *Postgres) Reserve(ctx context.Context, userID string, amount decimal.Decimal, externalRef string) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	walletID, bal, err := walletForUpdate(ctx, tx, userID)
	if err != nil {
		return Result{}, err
	}

	var exists string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM wallet_reservations WHERE wallet_id=$1 AND external_ref=$2`, walletID, externalRef).Scan(&exists)
	if err == nil {
		return Result{WalletID: walletID, Balance: bal, Duplicate: true}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Result{}, err
	}

	if bal.LessThan(amount) {
		return Result{}, ErrInsufficientFunds
	}

	var newBalance decimal.Decimal
	if err = tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance = balance - $1, version = version + 1 WHERE id=$2 RETURNING balance`,
		amount, walletID).Scan(&newBalance); err != nil {
		return Result{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_reservations(id, wallet_id, external_ref, amount, status) VALUES($1,$2,$3,$4,$5)`,
		uuid.NewString(), walletID, externalRef, amount, ReservationPending); err != nil {
		return Result{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount, description) VALUES($1,$2,$3,$4)`,
		walletID, OpReserve, amount, "reserve:"+externalRef); err != nil {
		return Result{}, err
	}
	if err = tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{WalletID: walletID, Balance: newBalance}, nil
}

// Commit efetiva uma reserva, marcando como COMMITTED e registrando o débito no ledger.
// Idempotente: se já estiver committed, não faz nada.
func (p *Postgres) Commit(ctx context.Context, userID, externalRef string) error {
	return p.settle(ctx, userID, externalRef, ReservationCommitted, OpDebit, "commit:")
}

// Refund desfaz uma reserva PENDING, devolvendo saldo e registrando no ledger.
// Idempotente: se já foi tratada, não faz nada.
func (p *Postgres) Refund(ctx context.Context, userID, externalRef string) error {
	return p.settle(ctx, userID, externalRef, ReservationRefunded, OpRefund, "refund:")
}

func (p *Postgres) settle(ctx context.Context, userID, externalRef, to, op, prefix string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var resID, walletID, status string
	var amount decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT wr.id, wr.wallet_id, wr.amount, wr.status
		FROM wallet_reservations wr
		JOIN wallets w ON w.id = wr.wallet_id
		WHERE w.user_id=$1 AND wr.external_ref=$2
		FOR UPDATE`, userID, externalRef).Scan(&resID, &walletID, &amount, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != ReservationPending {
		return nil
	}

	if _, err = tx.ExecContext(ctx, `UPDATE wallet_reservations SET status=$1 WHERE id=$2`, to, resID); err != nil {
		return err
	}
	if to == ReservationRefunded {
		if _, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance = balance + $1, version = version + 1 WHERE id=$2`, amount, walletID); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount, description) VALUES($1,$2,$3,$4)`,
		walletID, op, amount, prefix+externalRef); err != nil {
		return err
	}
	return tx.Commit()
}
