package game

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Round is a single play of the crash game. One mutex guards its state,
// multiplier and bet list; the scheduler tick and gateway requests both
// serialize on it, so a cash-out can never observe a multiplier from the
// future relative to the crash decision. Ledger calls happen while the
// round lock is held (round lock always before ledger lock); broadcasts
// never do.
type Round struct {
	mu sync.Mutex

	id         string
	status     RoundStatus
	crashPoint float64
	startTime  time.Time
	multiplier float64
	bets       []*Bet
	open       map[string]*Bet // username -> open bet

	cfg    Config
	ledger *Ledger
}

// tickResult carries everything a tick decided, so the scheduler can
// broadcast after the lock is released.
type tickResult struct {
	Crashed      bool
	Update       *RoundUpdateEvent
	AutoCashouts []CashOutEvent
	End          *RoundEndEvent
	Summary      *RoundSummary
}

func newRound(id string, crashPoint float64, cfg Config, ledger *Ledger) *Round {
	return &Round{
		id:         id,
		status:     StatusScheduled,
		crashPoint: crashPoint,
		multiplier: 1.00,
		open:       make(map[string]*Bet),
		cfg:        cfg,
		ledger:     ledger,
	}
}

func (r *Round) ID() string {
	return r.id
}

// start moves the round from Scheduled to Running. Idempotent: a second
// start while the round is already running is a no-op.
func (r *Round) start(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusScheduled {
		return false
	}
	r.status = StatusRunning
	r.startTime = now
	r.multiplier = 1.00
	return true
}

// multiplierAt is the published growth curve: linear, deterministic from
// elapsed time so clients can reconstruct it from timestamps.
func (r *Round) multiplierAt(elapsed float64) float64 {
	m := 1.0 + elapsed*r.cfg.GrowthRate
	return math.Floor(m*100) / 100
}

// tick advances the multiplier clock. Auto cash-outs run before the crash
// check; a threshold at or past the crash point never pays.
func (r *Round) tick(now time.Time) tickResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRunning {
		return tickResult{}
	}

	elapsed := now.Sub(r.startTime).Seconds()
	mult := r.multiplierAt(elapsed)

	if mult >= r.crashPoint || elapsed >= r.cfg.MaxRoundDuration.Seconds() {
		return r.crashLocked(now, mult)
	}

	r.multiplier = mult

	var autos []CashOutEvent
	for _, bet := range r.bets {
		if bet.Status == BetOpen && bet.AutoCashout > 0 && bet.AutoCashout <= mult {
			autos = append(autos, r.cashOutLocked(bet, mult))
		}
	}

	return tickResult{
		Update: &RoundUpdateEvent{
			RoundID:        r.id,
			Multiplier:     mult,
			ElapsedSeconds: elapsed,
		},
		AutoCashouts: autos,
	}
}

// crashLocked commits the terminal transition and settles every bet that is
// still open. No bet can be added or mutated once this returns.
func (r *Round) crashLocked(now time.Time, mult float64) tickResult {
	r.status = StatusCrashed

	// Freeze at the crash point, not the overshot tick value. A ceiling
	// crash freezes below the crash point.
	final := r.crashPoint
	if mult < final {
		final = mult
	}
	r.multiplier = final

	winners := 0
	for _, bet := range r.bets {
		switch bet.Status {
		case BetOpen:
			bet.Status = BetLost
			bet.Profit = -bet.Amount
			delete(r.open, bet.Username)
			r.ledger.RecordLoss(bet.Username, bet.Amount)
		case BetCashedOut:
			winners++
		}
	}

	summary := &RoundSummary{
		RoundID:         r.id,
		CrashPoint:      r.crashPoint,
		FinalMultiplier: final,
		StartTime:       r.startTime,
		EndTime:         now,
		WinnerCount:     winners,
		Bets:            r.betsCopyLocked(),
	}

	return tickResult{
		Crashed: true,
		End: &RoundEndEvent{
			RoundID:         r.id,
			FinalMultiplier: final,
			CrashPoint:      r.crashPoint,
			Bets:            summary.Bets,
			WinnerCount:     winners,
		},
		Summary: summary,
	}
}

// placeBet debits the stake and appends an open bet. Accepted while the
// round is Scheduled or Running only.
func (r *Round) placeBet(username string, amount int64, autoCashout float64, now time.Time) (Bet, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusScheduled && r.status != StatusRunning {
		return Bet{}, 0, ErrRoundNotAccepting
	}
	if _, exists := r.open[username]; exists {
		return Bet{}, 0, ErrDuplicateBet
	}

	balance, err := r.ledger.Debit(username, amount)
	if err != nil {
		return Bet{}, balance, err
	}
	r.ledger.RecordBetPlaced(username)

	bet := &Bet{
		BetID:       uuid.NewString(),
		Username:    username,
		Amount:      amount,
		AutoCashout: autoCashout,
		PlacedAt:    now,
		Status:      BetOpen,
	}
	r.bets = append(r.bets, bet)
	r.open[username] = bet

	return *bet, balance, nil
}

// cashOut settles the caller's open bet at the multiplier of this exact
// instant. The multiplier is recomputed from the clock under the lock, so
// it is the same value a concurrent tick would have produced; at or past
// the crash point the round has, by definition, already crashed.
func (r *Round) cashOut(username string, now time.Time) (CashOutResult, CashOutEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRunning {
		return CashOutResult{}, CashOutEvent{}, ErrRoundNotRunning
	}

	elapsed := now.Sub(r.startTime).Seconds()
	mult := r.multiplierAt(elapsed)
	if mult >= r.crashPoint || elapsed >= r.cfg.MaxRoundDuration.Seconds() {
		return CashOutResult{}, CashOutEvent{}, ErrRoundNotRunning
	}

	bet, exists := r.open[username]
	if !exists {
		return CashOutResult{}, CashOutEvent{}, ErrNoOpenBet
	}

	r.multiplier = mult
	event := r.cashOutLocked(bet, mult)

	balance, _ := r.ledger.Balance(username)
	result := CashOutResult{
		Multiplier: mult,
		Amount:     event.Amount,
		Balance:    balance,
	}
	return result, event, nil
}

// cashOutLocked is the single settlement path shared by manual and auto
// cash-outs. The bet's terminal state is set here exactly once.
func (r *Round) cashOutLocked(bet *Bet, mult float64) CashOutEvent {
	payout := int64(math.Round(float64(bet.Amount) * mult))

	bet.Status = BetCashedOut
	bet.CashoutMultiplier = mult
	bet.Profit = payout - bet.Amount
	delete(r.open, bet.Username)

	r.ledger.Credit(bet.Username, payout)
	r.ledger.RecordWin(bet.Username, bet.Profit)

	return CashOutEvent{
		RoundID:    r.id,
		Username:   bet.Username,
		Multiplier: mult,
		Amount:     payout,
	}
}

// snapshot returns the client-visible state; the crash point stays hidden
// until the round has crashed.
func (r *Round) snapshot(now time.Time) RoundSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := RoundSnapshot{
		RoundID:    r.id,
		Status:     r.status,
		Multiplier: r.multiplier,
		StartTime:  r.startTime,
		Bets:       r.betsCopyLocked(),
	}
	if r.status == StatusRunning {
		snap.ElapsedSeconds = now.Sub(r.startTime).Seconds()
	}
	if r.status == StatusCrashed {
		snap.CrashPoint = r.crashPoint
	}
	return snap
}

func (r *Round) betsCopyLocked() []Bet {
	bets := make([]Bet, len(r.bets))
	for i, bet := range r.bets {
		bets[i] = *bet
	}
	return bets
}
