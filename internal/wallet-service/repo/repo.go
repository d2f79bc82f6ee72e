package repo

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("amount must be greater than 0")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Operações registradas no ledger
const (
	OpDeposit = "DEPOSIT"
	OpCredit  = "CREDIT"
	OpReserve = "RESERVE"
	OpDebit   = "DEBIT"
	OpRefund  = "REFUND"
)

// Status das reservas
const (
	ReservationPending   = "PENDING"
	ReservationCommitted = "COMMITTED"
	ReservationRefunded  = "REFUNDED"
)

// Result é o estado da carteira depois de um crédito.
// Duplicate indica que o external_ref já tinha sido aplicado (nada mudou).
type Result struct {
	WalletID  string
	Balance   decimal.Decimal
	Duplicate bool
}
