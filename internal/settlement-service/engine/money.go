package engine

import "github.com/shopspring/decimal"

// BasisPoints é o denominador das taxas (10000 = 100%)
const BasisPoints = 10000

// Fee calcula amount × edgeBps / 10000.
// Shift(-4) divide por 10^4 sem arredondamento.
func Fee(amount decimal.Decimal, edgeBps uint32) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(edgeBps))).Shift(-4)
}

// PayoutFor calcula amount × (10000 - edgeBps) / 10000.
// Fee(a) + PayoutFor(a) == a, sempre.
func PayoutFor(amount decimal.Decimal, edgeBps uint32) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(BasisPoints - edgeBps))).Shift(-4)
}
