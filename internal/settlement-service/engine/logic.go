package engine

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Quote é o que a lógica cobra e reserva numa submissão
type Quote struct {
	Fee       decimal.Decimal
	Liability decimal.Decimal
}

// Logic é a parte substituível do motor (upgrade sem migração).
// A liquidação não passa por aqui: ela usa Fee/Liability gravados na aposta.
type Logic interface {
	Version() string
	Validate(st State, amount decimal.Decimal, choice Choice) error
	Quote(st State, amount decimal.Decimal) Quote
}

const StandardVersion = "1.0.0"

// StandardLogic implementa as regras originais de cara-ou-coroa
type StandardLogic struct{}

func (StandardLogic) Version() string { return StandardVersion }

func (StandardLogic) Validate(st State, amount decimal.Decimal, choice Choice) error {
	if !choice.Valid() {
		return ErrInvalidChoice
	}
	if amount.LessThan(st.MinBet) || !amount.IsPositive() {
		return ErrBetTooLow
	}
	if amount.GreaterThan(st.MaxBet) {
		return ErrBetTooHigh
	}
	return nil
}

func (StandardLogic) Quote(st State, amount decimal.Decimal) Quote {
	return Quote{
		Fee:       Fee(amount, st.HouseEdgeBps),
		Liability: PayoutFor(amount, st.HouseEdgeBps),
	}
}

var (
	logicMu  sync.RWMutex
	registry = map[string]Logic{StandardVersion: StandardLogic{}}
)

// RegisterLogic publica uma versão para UpgradeTo
func RegisterLogic(l Logic) {
	logicMu.Lock()
	registry[l.Version()] = l
	logicMu.Unlock()
}

// LogicFor resolve uma versão registrada
func LogicFor(version string) (Logic, error) {
	logicMu.RLock()
	l, ok := registry[version]
	logicMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown logic version %q", ErrInvalidConfig, version)
	}
	return l, nil
}
