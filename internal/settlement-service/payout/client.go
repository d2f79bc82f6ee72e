package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
	"github.com/radieske/headsup-settlement/internal/shared/auth"
	walletdto "github.com/radieske/headsup-settlement/internal/wallet-service/dto"
)

// Client fala com o wallet-service: paga prêmios, reembolsos e saques (engine.Payer)
// e cobra stakes e depósitos no caixa via reserve/commit/refund (engine.Collector).
// O wallet deduplica por external_ref, então repetir é seguro.
type Client struct {
	BaseURL string
	Secret  []byte // assina como settlement-service; vazio = header X-Caller
	HTTP    *http.Client
}

func New(base string, secret []byte) *Client {
	return &Client{
		BaseURL: base,
		Secret:  secret,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Transfer(ctx context.Context, to string, amount decimal.Decimal, ref string) error {
	return c.post(ctx, "/wallet/credit", walletdto.CreditRequest{UserID: to, Amount: amount, ExternalRef: ref})
}

// Reserve debita o valor da carteira; 409 vira engine.ErrInsufficientFunds
func (c *Client) Reserve(ctx context.Context, from string, amount decimal.Decimal, ref string) error {
	return c.post(ctx, "/wallet/reserve", walletdto.ReserveRequest{UserID: from, Amount: amount, ExternalRef: ref})
}

func (c *Client) Commit(ctx context.Context, from, ref string) error {
	return c.post(ctx, "/wallet/commit", walletdto.ReservationRequest{UserID: from, ExternalRef: ref})
}

// Release devolve uma reserva que não virou aposta nem depósito
func (c *Client) Release(ctx context.Context, from, ref string) error {
	return c.post(ctx, "/wallet/refund", walletdto.ReservationRequest{UserID: from, ExternalRef: ref})
}

func (c *Client) post(ctx context.Context, path string, in any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := auth.Sign(req, c.Secret, walletdto.SettlementCaller); err != nil {
		return err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: wallet %s", engine.ErrInsufficientFunds, path)
	case res.StatusCode >= 300:
		return fmt.Errorf("wallet %s http %d", path, res.StatusCode)
	}
	return nil
}

// Balance consulta o saldo da carteira (headsupctl balance)
func (c *Client) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/wallet?"+url.Values{"userId": {userID}}.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("wallet get http %d", res.StatusCode)
	}
	var out walletdto.WalletResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return decimal.Zero, err
	}
	return out.Balance, nil
}
