package dto

import "github.com/shopspring/decimal"

type WalletResponse struct {
	UserID    string          `json:"userId"`
	WalletID  string          `json:"walletId"`
	Balance   decimal.Decimal `json:"balance"`
	Duplicate bool            `json:"duplicate,omitempty"` // external_ref já aplicado antes
}
