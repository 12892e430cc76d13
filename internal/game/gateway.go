package game

import (
	"log"

	"github.com/jonboulle/clockwork"
)

// Gateway validates bet and cash-out requests and applies them to the
// currently live round. It is the only write path into a round besides the
// scheduler's tick.
type Gateway struct {
	cfg       Config
	scheduler *Scheduler
	ledger    *Ledger
	hub       Broadcaster
	clock     clockwork.Clock
}

func NewGateway(cfg Config, scheduler *Scheduler, ledger *Ledger, hub Broadcaster, clock clockwork.Clock) *Gateway {
	return &Gateway{
		cfg:       cfg,
		scheduler: scheduler,
		ledger:    ledger,
		hub:       hub,
		clock:     clock,
	}
}

// PlaceBet stakes amount on the given round for the account. The debit,
// the bet append and the games-played counter commit atomically under the
// round lock; the new_bet broadcast goes out after release.
func (g *Gateway) PlaceBet(username, gameID string, amount int64, autoCashout float64) (*BetReceipt, error) {
	if amount < g.cfg.MinStake {
		return nil, ErrBelowMinimumStake
	}
	if autoCashout != 0 && autoCashout < MinCrashPoint {
		return nil, ErrInvalidInput
	}

	round := g.liveRound(gameID)
	if round == nil {
		return nil, ErrRoundNotFound
	}

	bet, balance, err := round.placeBet(username, amount, autoCashout, g.clock.Now())
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(WSMessage{Type: "new_bet", Data: NewBetEvent{
		RoundID:     gameID,
		Username:    username,
		Amount:      amount,
		AutoCashout: autoCashout,
	}})
	log.Printf("[BET] %s staked %d on %s (bet %s)", username, amount, gameID, bet.BetID)

	return &BetReceipt{BetToken: bet.BetID, Balance: balance}, nil
}

// CashOut settles the account's open bet at the multiplier of this instant.
// Of two concurrent cash-outs for the same bet, exactly one succeeds; the
// loser gets ErrNoOpenBet.
func (g *Gateway) CashOut(username, gameID string) (*CashOutResult, error) {
	round := g.liveRound(gameID)
	if round == nil {
		return nil, ErrRoundNotFound
	}

	result, event, err := round.cashOut(username, g.clock.Now())
	if err != nil {
		return nil, err
	}

	g.hub.Broadcast(WSMessage{Type: "cash_out", Data: event})
	log.Printf("[CASHOUT] %s cashed out %s at %.2fx (payout %d)",
		username, gameID, result.Multiplier, result.Amount)

	return &result, nil
}

func (g *Gateway) liveRound(gameID string) *Round {
	round := g.scheduler.CurrentRound()
	if round == nil || round.ID() != gameID {
		return nil
	}
	return round
}
