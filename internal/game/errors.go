package game

import "errors"

// Request-boundary failures. All of these are recoverable: they are reported
// to the caller as a structured response and never kill the process.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateUser      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("account not found")
	ErrRoundNotFound      = errors.New("round not found")
	ErrRoundNotAccepting  = errors.New("round is not accepting bets")
	ErrRoundNotRunning    = errors.New("round is not running")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrBelowMinimumStake  = errors.New("bet below minimum stake")
	ErrDuplicateBet       = errors.New("bet already placed this round")
	ErrNoOpenBet          = errors.New("no open bet in this round")
)
