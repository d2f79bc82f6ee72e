package headsupctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/radieske/headsup-settlement/internal/settlement-service/dto"
	"github.com/radieske/headsup-settlement/internal/settlement-service/payout"
	"github.com/radieske/headsup-settlement/internal/shared/auth"
)

// RootCmd monta a árvore de comandos do headsupctl
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "headsupctl",
		Short:         "Operate the heads/tails settlement service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("url", envOr("SETTLEMENT_URL", "http://localhost:8083"), "settlement-service base url")
	cmd.PersistentFlags().String("as", os.Getenv("HEADSUP_CALLER"), "caller identity (player, owner or coordinator)")
	cmd.PersistentFlags().String("secret", os.Getenv("AUTH_SECRET"), "HS256 secret; when set requests carry a bearer token")
	cmd.PersistentFlags().String("wallet-url", envOr("WALLET_URL", "http://localhost:8082"), "wallet-service base url")

	cmd.AddCommand(
		SubmitCmd(),
		WagerCmd(),
		StatsCmd(),
		LimitsCmd(),
		LeaderboardCmd(),
		FundCmd(),
		WithdrawCmd(),
		SetLimitsCmd(),
		UpgradeCmd(),
		RefundCmd(),
		RetryPayoutCmd(),
		RequestCmd(),
		TokenCmd(),
		WatchCmd(),
		BalanceCmd(),
	)
	return cmd
}

// SubmitCmd registra uma aposta em nome de --as
func SubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a wager",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			side, _ := cmd.Flags().GetString("choice")
			var choice uint8
			switch strings.ToLower(side) {
			case "heads", "1":
				choice = 1
			case "tails", "0":
				choice = 0
			default:
				return fmt.Errorf("choice must be heads or tails, got %q", side)
			}
			var out dto.SubmitWagerResponse
			if err := client(cmd).do(cmd.Context(), "POST", "/v1/wagers", dto.SubmitWagerRequest{Amount: amount, Choice: &choice}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringP("amount", "a", "", "wager amount")
	cmd.Flags().StringP("choice", "c", "heads", "heads or tails")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func WagerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wager <id>",
		Short: "Show a wager",
		Args:  cobra.ExactArgs(1),
		RunE:  getter(func(args []string) string { return "/v1/wagers/" + args[0] }),
	}
}

func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show contract statistics",
		RunE:  getter(func([]string) string { return "/v1/stats" }),
	}
}

func LimitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Show bet limits",
		RunE:  getter(func([]string) string { return "/v1/limits" }),
	}
}

func LeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show players ranked by total payout",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			var out json.RawMessage
			if err := client(cmd).do(cmd.Context(), "GET", "/v1/leaderboard?limit="+strconv.Itoa(limit), nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "max entries (0 = all)")
	return cmd
}

func FundCmd() *cobra.Command {
	return amountCmd("fund", "Add funds to the contract balance", "/v1/fund")
}

func WithdrawCmd() *cobra.Command {
	return amountCmd("withdraw", "Withdraw available funds to the owner (owner only)", "/v1/admin/withdraw")
}

func SetLimitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-limits",
		Short: "Update min/max bet (owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, err := amountFlag(cmd, "min")
			if err != nil {
				return err
			}
			hi, err := amountFlag(cmd, "max")
			if err != nil {
				return err
			}
			var out json.RawMessage
			if err := client(cmd).do(cmd.Context(), "PUT", "/v1/admin/limits", dto.BetLimitsRequest{Min: lo, Max: hi}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().String("min", "", "minimum bet")
	cmd.Flags().String("max", "", "maximum bet")
	cmd.MarkFlagRequired("min")
	cmd.MarkFlagRequired("max")
	return cmd
}

// UpgradeCmd troca a versão da lógica do motor
func UpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <version>",
		Short: "Switch the engine logic to a registered version (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out json.RawMessage
			if err := client(cmd).do(cmd.Context(), "PUT", "/v1/admin/logic", dto.UpgradeRequest{Version: args[0]}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func RefundCmd() *cobra.Command {
	return idCmd("refund <id>", "Refund an expired pending wager (owner only)", "/v1/admin/wagers/%s/refund")
}

func RetryPayoutCmd() *cobra.Command {
	return idCmd("retry-payout <id>", "Retry a failed payout transfer", "/v1/wagers/%s/payout")
}

func RequestCmd() *cobra.Command {
	return idCmd("request <id>", "Re-issue the randomness request of a pending wager", "/v1/wagers/%s/request")
}

// BalanceCmd mostra o saldo da carteira de um jogador no wallet-service
func BalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <player>",
		Short: "Show a player's wallet balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, _ := cmd.Flags().GetString("wallet-url")
			bal, err := payout.New(base, nil).Balance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"player": args[0], "balance": bal})
		},
	}
}

// TokenCmd emite um token HS256 para --subject (usa --secret)
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a caller token signed with --secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				return errors.New("--secret (or AUTH_SECRET) required")
			}
			sub, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			tok, err := auth.Issue([]byte(secret), sub, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "identity carried by the token")
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	cmd.MarkFlagRequired("subject")
	return cmd
}

func amountCmd(use, short, path string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			var out json.RawMessage
			if err := client(cmd).do(cmd.Context(), "POST", path, dto.AmountRequest{Amount: amount}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringP("amount", "a", "", "amount")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func idCmd(use, short, pathFmt string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
				return fmt.Errorf("invalid wager id %q", args[0])
			}
			var out json.RawMessage
			if err := client(cmd).do(cmd.Context(), "POST", fmt.Sprintf(pathFmt, args[0]), nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func getter(path func(args []string) string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var out json.RawMessage
		if err := client(cmd).do(cmd.Context(), "GET", path(args), nil, &out); err != nil {
			return err
		}
		return printJSON(cmd, out)
	}
}

func client(cmd *cobra.Command) *Client {
	url, _ := cmd.Flags().GetString("url")
	as, _ := cmd.Flags().GetString("as")
	secret, _ := cmd.Flags().GetString("secret")
	return &Client{BaseURL: url, Caller: as, Secret: []byte(secret)}
}

func amountFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	v, _ := cmd.Flags().GetString(name)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q", name, v)
	}
	return d, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
