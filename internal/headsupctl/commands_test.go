package headsupctl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/headsup-settlement/internal/settlement-service/dto"
	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
	httpapi "github.com/radieske/headsup-settlement/internal/settlement-service/http"
	"github.com/radieske/headsup-settlement/internal/shared/auth"
	whttp "github.com/radieske/headsup-settlement/internal/wallet-service/http"
	wrepo "github.com/radieske/headsup-settlement/internal/wallet-service/repo"
)

type nopProvider struct{}

func (nopProvider) RequestRandomness(context.Context, engine.RandomnessRequest) error { return nil }

type nopPayer struct{}

func (nopPayer) Transfer(context.Context, string, decimal.Decimal, string) error { return nil }
func (nopPayer) Reserve(context.Context, string, decimal.Decimal, string) error { return nil }
func (nopPayer) Commit(context.Context, string, string) error { return nil }
func (nopPayer) Release(context.Context, string, string) error { return nil }

func newAPI(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	eng, err := engine.New(context.Background(), zap.NewNop(), engine.NewMemoryStore(), engine.Options{
		Provider:  nopProvider{},
		Payer:     nopPayer{},
		Collector: nopPayer{},
		Genesis: engine.Genesis{
			Owner:        "owner",
			MinBet:       decimal.RequireFromString("0.01"),
			MaxBet:       decimal.RequireFromString("100"),
			HouseEdgeBps: 250,
			Randomness:   engine.RandomnessConfig{Coordinator: "vrf", CallbackGasLimit: 100000, NumWords: 1},
		},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(httpapi.NewServer(zap.NewNop(), eng, auth.Identity{Secret: []byte(secret)}, nil, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := RootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestOperatorWorkflow(t *testing.T) {
	api := newAPI(t, "")
	url := "--url=" + api.URL

	_, err := run(t, url, "--as=owner", "fund", "--amount=500")
	require.NoError(t, err)

	out, err := run(t, url, "--as=alice", "submit", "--amount=1", "--choice=tails")
	require.NoError(t, err)
	var sub dto.SubmitWagerResponse
	require.NoError(t, json.Unmarshal([]byte(out), &sub))
	assert.Equal(t, uint64(1), sub.WagerID)

	out, err = run(t, url, "wager", "1")
	require.NoError(t, err)
	var w engine.Wager
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	assert.Equal(t, "alice", w.Player)
	assert.Equal(t, engine.Tails, w.Choice)

	_, err = run(t, url, "--as=owner", "set-limits", "--min=0.5", "--max=10")
	require.NoError(t, err)
	out, err = run(t, url, "limits")
	require.NoError(t, err)
	assert.Contains(t, out, `"0.5"`)

	out, err = run(t, url, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"totalGames": 1`)

	_, err = run(t, url, "--as=alice", "withdraw", "--amount=1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Unauthorized", apiErr.Code)
	assert.Equal(t, 403, apiErr.Status)

	_, err = run(t, url, "--as=owner", "refund", "1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NotExpired", apiErr.Code)

	_, err = run(t, url, "retry-payout", "x")
	assert.EqualError(t, err, `invalid wager id "x"`)

	_, err = run(t, url, "--as=alice", "submit", "--amount=1", "--choice=edge")
	assert.Error(t, err)

	out, err = run(t, url, "leaderboard", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `"player": "alice"`)

	out, err = run(t, url, "--as=owner", "upgrade", engine.StandardVersion)
	require.NoError(t, err)
	assert.Contains(t, out, engine.StandardVersion)
	_, err = run(t, url, "--as=owner", "upgrade", "0.0.1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "InvalidConfig", apiErr.Code)
}

func TestTokenCommandAuthenticatesRequests(t *testing.T) {
	api := newAPI(t, "s3cret")
	url := "--url=" + api.URL

	_, err := run(t, "token", "--subject=owner")
	assert.Error(t, err)

	tok, err := run(t, "--secret=s3cret", "token", "--subject=owner")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	// sem segredo o header é ignorado pelo servidor
	_, err = run(t, url, "--as=owner", "withdraw", "--amount=1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Unauthorized", apiErr.Code)

	_, err = run(t, url, "--as=owner", "--secret=s3cret", "fund", "--amount=5")
	require.NoError(t, err)
	_, err = run(t, url, "--as=owner", "--secret=s3cret", "withdraw", "--amount=1")
	require.NoError(t, err)
}

func TestBalanceReadsWallet(t *testing.T) {
	wallet := httptest.NewServer(whttp.NewServer(zap.NewNop(), wrepo.NewMemory(), auth.Identity{}).Router())
	defer wallet.Close()

	out, err := run(t, "--wallet-url="+wallet.URL, "balance", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, `"player": "alice"`)
	assert.Contains(t, out, `"balance": "0"`)
}
