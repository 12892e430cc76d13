package game

import "time"

type RoundStatus string

const (
	StatusScheduled RoundStatus = "SCHEDULED"
	StatusRunning   RoundStatus = "RUNNING"
	StatusCrashed   RoundStatus = "CRASHED"
)

type BetStatus string

const (
	BetOpen      BetStatus = "OPEN"
	BetCashedOut BetStatus = "CASHED_OUT"
	BetLost      BetStatus = "LOST"
)

// Bet is a single stake inside a round. Its terminal state (cashed out or
// lost) is set exactly once; amounts are fixed-point currency units.
type Bet struct {
	BetID             string    `json:"bet_id"`
	Username          string    `json:"username"`
	Amount            int64     `json:"amount"`
	AutoCashout       float64   `json:"auto_cashout,omitempty"` // 0 = none
	PlacedAt          time.Time `json:"placed_at"`
	Status            BetStatus `json:"status"`
	CashoutMultiplier float64   `json:"cashout_multiplier,omitempty"`
	Profit            int64     `json:"profit"`
}

// RoundSnapshot is the client-visible view of the live round. The crash
// point is withheld until the round has crashed.
type RoundSnapshot struct {
	RoundID        string      `json:"round_id"`
	Status         RoundStatus `json:"status"`
	Multiplier     float64     `json:"multiplier"`
	ElapsedSeconds float64     `json:"elapsed_seconds"`
	StartTime      time.Time   `json:"start_time,omitempty"`
	CrashPoint     float64     `json:"crash_point,omitempty"`
	Bets           []Bet       `json:"bets"`
}

// RoundSummary is the immutable record of a settled round.
type RoundSummary struct {
	RoundID         string    `json:"round_id"`
	CrashPoint      float64   `json:"crash_point"`
	FinalMultiplier float64   `json:"final_multiplier"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	WinnerCount     int       `json:"winner_count"`
	Bets            []Bet     `json:"bets"`
}

// AccountView is the exported, copy-safe view of a ledger account.
type AccountView struct {
	Username    string    `json:"username"`
	Balance     int64     `json:"balance"`
	GamesPlayed int       `json:"games_played"`
	GamesWon    int       `json:"games_won"`
	Profit      int64     `json:"profit"`
	CreatedAt   time.Time `json:"created_at"`
}

// BetReceipt acknowledges an accepted bet.
type BetReceipt struct {
	BetToken string `json:"bet_token"`
	Balance  int64  `json:"balance"`
}

// CashOutResult reports a successful cash-out.
type CashOutResult struct {
	Multiplier float64 `json:"multiplier"`
	Amount     int64   `json:"amount"`
	Balance    int64   `json:"balance"`
}

// WSMessage is the envelope every broadcast is wrapped in.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Broadcast event payloads.

type RoundStartEvent struct {
	RoundID   string    `json:"id"`
	StartTime time.Time `json:"start_time"`
}

type RoundUpdateEvent struct {
	RoundID        string  `json:"id"`
	Multiplier     float64 `json:"multiplier"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

type RoundEndEvent struct {
	RoundID         string  `json:"id"`
	FinalMultiplier float64 `json:"final_multiplier"`
	CrashPoint      float64 `json:"crash_point"`
	Bets            []Bet   `json:"bets"`
	WinnerCount     int     `json:"winner_count"`
}

type NewBetEvent struct {
	RoundID     string  `json:"game_id"`
	Username    string  `json:"username"`
	Amount      int64   `json:"amount"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

type CashOutEvent struct {
	RoundID    string  `json:"game_id"`
	Username   string  `json:"username"`
	Multiplier float64 `json:"multiplier"`
	Amount     int64   `json:"amount"`
}

type ObserverCountEvent struct {
	Count     int      `json:"count"`
	Usernames []string `json:"usernames"`
}

// ObserverInfo describes one connected observer.
type ObserverInfo struct {
	Username string    `json:"username"`
	Balance  int64     `json:"balance"`
	JoinedAt time.Time `json:"joined_at"`
}

// Broadcaster fans round lifecycle events out to connected observers.
// Implemented by Hub; tests substitute a capturing fake.
type Broadcaster interface {
	Broadcast(message interface{})
}
