package repo

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memWallet struct {
	id      string
	balance decimal.Decimal
}

type memReservation struct {
	amount decimal.Decimal
	status string
}

// Memory é a carteira em memória (testes e STORE=memory)
type Memory struct {
	mu      sync.Mutex
	wallets map[string]*memWallet
	refs    map[string]struct{}
	holds   map[string]*memReservation // userID + "|" + ref
}

func NewMemory() *Memory {
	return &Memory{
		wallets: make(map[string]*memWallet),
		refs:    make(map[string]struct{}),
		holds:   make(map[string]*memReservation),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) wallet(userID string) *memWallet {
	w, ok := m.wallets[userID]
	if !ok {
		w = &memWallet{id: uuid.NewString(), balance: decimal.Zero}
		m.wallets[userID] = w
	}
	return w
}

func (m *Memory) GetOrCreateWallet(_ context.Context, userID string) (string, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallet(userID)
	return w.id, w.balance, nil
}

func (m *Memory) Credit(_ context.Context, userID string, amount decimal.Decimal, externalRef, _ string) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.wallet(userID)
	if externalRef != "" {
		if _, dup := m.refs[externalRef]; dup {
			return Result{WalletID: w.id, Balance: w.balance, Duplicate: true}, nil
		}
		m.refs[externalRef] = struct{}{}
	}
	w.balance = w.balance.Add(amount)
	return Result{WalletID: w.id, Balance: w.balance}, nil
}

// Reserve debita amount e deixa a reserva PENDING; idempotente por (usuário, ref)
func (m *Memory) Reserve(_ context.Context, userID string, amount decimal.Decimal, externalRef string) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.wallet(userID)
	key := userID + "|" + externalRef
	if _, dup := m.holds[key]; dup {
		return Result{WalletID: w.id, Balance: w.balance, Duplicate: true}, nil
	}
	if w.balance.LessThan(amount) {
		return Result{}, ErrInsufficientFunds
	}
	w.balance = w.balance.Sub(amount)
	m.holds[key] = &memReservation{amount: amount, status: ReservationPending}
	return Result{WalletID: w.id, Balance: w.balance}, nil
}

// Commit efetiva uma reserva PENDING; repetir não faz nada
func (m *Memory) Commit(_ context.Context, userID, externalRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[userID+"|"+externalRef]
	if !ok {
		return ErrNotFound
	}
	if h.status == ReservationPending {
		h.status = ReservationCommitted
	}
	return nil
}

// Refund devolve uma reserva PENDING; reservas já tratadas ficam como estão
func (m *Memory) Refund(_ context.Context, userID, externalRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[userID+"|"+externalRef]
	if !ok {
		return ErrNotFound
	}
	if h.status != ReservationPending {
		return nil
	}
	h.status = ReservationRefunded
	w := m.wallet(userID)
	w.balance = w.balance.Add(h.amount)
	return nil
}
