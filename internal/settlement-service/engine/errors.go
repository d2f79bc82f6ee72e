package engine

import "errors"

var (
	ErrInvalidChoice                = errors.New("invalid choice: must be 0 (tails) or 1 (heads)")
	ErrBetTooLow                    = errors.New("bet amount too low")
	ErrBetTooHigh                   = errors.New("bet amount too high")
	ErrInsufficientLiquidity        = errors.New("insufficient contract balance for potential payout")
	ErrDuplicateRequest             = errors.New("randomness already requested for wager")
	ErrUnauthorizedCaller           = errors.New("only the randomness coordinator can fulfill")
	ErrUnknownRequest               = errors.New("unknown randomness request")
	ErrAlreadyFulfilled             = errors.New("wager already fulfilled")
	ErrUnauthorized                 = errors.New("caller is not the owner")
	ErrInsufficientAvailableBalance = errors.New("insufficient available balance")
	ErrInvalidLimits                = errors.New("invalid bet limits")
	ErrTransferFailed               = errors.New("transfer failed")

	ErrInvalidAmount      = errors.New("amount must be greater than 0")
	ErrInvalidPlayer      = errors.New("player required")
	ErrInvalidRandomValue = errors.New("random value must be a non-negative integer")
	ErrWagerNotFound      = errors.New("wager not found")
	ErrNotPending         = errors.New("wager is not pending")
	ErrNotExpired         = errors.New("wager has not expired yet")
	ErrPayoutNotOwed      = errors.New("no payout owed for wager")
	ErrPayoutInProgress   = errors.New("payout transfer already in progress")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrInsufficientFunds  = errors.New("insufficient wallet funds")
)

// codes mapeia cada erro de domínio para um código estável (usado em HTTP e métricas)
var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidChoice, "InvalidChoice"},
	{ErrBetTooLow, "BetTooLow"},
	{ErrBetTooHigh, "BetTooHigh"},
	{ErrInsufficientLiquidity, "InsufficientLiquidity"},
	{ErrDuplicateRequest, "DuplicateRequest"},
	{ErrUnauthorizedCaller, "UnauthorizedCaller"},
	{ErrUnknownRequest, "UnknownRequest"},
	{ErrAlreadyFulfilled, "AlreadyFulfilled"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrInsufficientAvailableBalance, "InsufficientAvailableBalance"},
	{ErrInvalidLimits, "InvalidLimits"},
	{ErrTransferFailed, "TransferFailed"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidPlayer, "InvalidPlayer"},
	{ErrInvalidRandomValue, "InvalidRandomValue"},
	{ErrWagerNotFound, "WagerNotFound"},
	{ErrNotPending, "NotPending"},
	{ErrNotExpired, "NotExpired"},
	{ErrPayoutNotOwed, "PayoutNotOwed"},
	{ErrPayoutInProgress, "PayoutInProgress"},
	{ErrInvalidConfig, "InvalidConfig"},
	{ErrInsufficientFunds, "InsufficientFunds"},
}

// Code retorna o código de taxonomia do erro, ou "Internal"
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
