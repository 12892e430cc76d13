package game

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// captureHub records broadcasts instead of fanning them out.
type captureHub struct {
	mu       sync.Mutex
	messages []WSMessage
}

func (h *captureHub) Broadcast(message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if msg, ok := message.(WSMessage); ok {
		h.messages = append(h.messages, msg)
	}
}

func (h *captureHub) typeCount(eventType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	count := 0
	for _, msg := range h.messages {
		if msg.Type == eventType {
			count++
		}
	}
	return count
}

// captureArchive records settled rounds handed to the archive fan-out.
type captureArchive struct {
	mu     sync.Mutex
	rounds []*RoundSummary
}

func (a *captureArchive) SaveRound(_ context.Context, summary *RoundSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rounds = append(a.rounds, summary)
	return nil
}

func (a *captureArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rounds)
}

func TestScheduler_FullRound(t *testing.T) {
	cfg := DefaultConfig()
	clock := clockwork.NewFakeClock()
	hub := &captureHub{}
	ledger := NewLedger()
	ledger.Register("alice", "secret123", 1000)

	// An all-zero draw clamps to the 1.01 floor: the round crashes on
	// the second tick (elapsed 0.2s, multiplier 1.01).
	gen := &CrashPointGenerator{source: bytes.NewReader(make([]byte, 64))}

	scheduler := NewScheduler(cfg, clock, gen, ledger, hub)
	archive := &captureArchive{}
	scheduler.AttachArchive(archive)
	gateway := NewGateway(cfg, scheduler, ledger, hub, clock)

	scheduler.Start()
	defer scheduler.Stop()

	// Betting window: the round is Scheduled and accepts bets.
	clock.BlockUntil(1)
	round := scheduler.CurrentRound()
	if round == nil {
		t.Fatal("no scheduled round")
	}
	if snap := scheduler.Snapshot(); snap.Status != StatusScheduled {
		t.Fatalf("round status = %s, want SCHEDULED", snap.Status)
	}

	receipt, err := gateway.PlaceBet("alice", round.ID(), 100, 0)
	if err != nil {
		t.Fatalf("PlaceBet() during betting window error = %v", err)
	}
	if receipt.Balance != 900 {
		t.Errorf("balance after bet = %d, want 900", receipt.Balance)
	}

	// Cooldown expires: the round starts running and ticks to crash.
	clock.Advance(cfg.Cooldown)
	clock.BlockUntil(1)
	clock.Advance(cfg.TickInterval)
	waitFor(t, func() bool { return hub.typeCount("round_update") >= 1 })
	clock.BlockUntil(1)
	clock.Advance(cfg.TickInterval)

	waitFor(t, func() bool { return len(scheduler.History(0)) == 1 })

	history := scheduler.History(0)
	summary := history[0]
	if summary.RoundID != round.ID() {
		t.Errorf("settled round = %s, want %s", summary.RoundID, round.ID())
	}
	if summary.FinalMultiplier != 1.01 || summary.CrashPoint != 1.01 {
		t.Errorf("final/crash = %v/%v, want 1.01/1.01", summary.FinalMultiplier, summary.CrashPoint)
	}
	if summary.WinnerCount != 0 {
		t.Errorf("winner count = %d, want 0", summary.WinnerCount)
	}
	if len(summary.Bets) != 1 || summary.Bets[0].Status != BetLost {
		t.Fatalf("settled bets = %+v, want alice's bet LOST", summary.Bets)
	}
	if balance, _ := ledger.Balance("alice"); balance != 900 {
		t.Errorf("balance after loss = %d, want 900", balance)
	}

	waitFor(t, func() bool { return archive.count() == 1 })

	if hub.typeCount("round_start") != 1 {
		t.Errorf("round_start events = %d, want 1", hub.typeCount("round_start"))
	}
	if hub.typeCount("round_end") != 1 {
		t.Errorf("round_end events = %d, want 1", hub.typeCount("round_end"))
	}
	if hub.typeCount("new_bet") != 1 {
		t.Errorf("new_bet events = %d, want 1", hub.typeCount("new_bet"))
	}
	if hub.typeCount("round_update") == 0 {
		t.Error("expected at least one round_update event")
	}
}

func TestScheduler_HistoryEviction(t *testing.T) {
	cfg := DefaultConfig()
	scheduler := NewScheduler(cfg, clockwork.NewFakeClock(), NewCrashPointGenerator(), NewLedger(), &captureHub{})

	for i := 1; i <= 105; i++ {
		scheduler.archive(&RoundSummary{RoundID: fmt.Sprintf("R-%d", i)})
	}

	history := scheduler.History(0)
	if len(history) != 100 {
		t.Fatalf("history length = %d, want 100", len(history))
	}
	if history[0].RoundID != "R-105" {
		t.Errorf("most recent = %s, want R-105", history[0].RoundID)
	}
	if history[len(history)-1].RoundID != "R-6" {
		t.Errorf("oldest kept = %s, want R-6 (oldest 5 evicted)", history[len(history)-1].RoundID)
	}

	t.Run("limit applies", func(t *testing.T) {
		recent := scheduler.History(20)
		if len(recent) != 20 {
			t.Fatalf("History(20) length = %d, want 20", len(recent))
		}
		if recent[0].RoundID != "R-105" || recent[19].RoundID != "R-86" {
			t.Errorf("History(20) = %s..%s, want R-105..R-86", recent[0].RoundID, recent[19].RoundID)
		}
	})
}

func TestScheduler_StartRoundGuard(t *testing.T) {
	cfg := DefaultConfig()
	clock := clockwork.NewFakeClock()
	scheduler := NewScheduler(cfg, clock, NewCrashPointGenerator(), NewLedger(), &captureHub{})

	round, err := scheduler.startRound()
	if err != nil {
		t.Fatalf("startRound() error = %v", err)
	}
	round.start(clock.Now())

	// A second start while one is running is a no-op.
	second, err := scheduler.startRound()
	if err != nil {
		t.Fatalf("startRound() error = %v", err)
	}
	if second != nil {
		t.Fatal("startRound() while a round is running should be a no-op")
	}
	if scheduler.CurrentRound() != round {
		t.Error("running round was replaced")
	}
}

func TestScheduler_DrawFailureHaltsRounds(t *testing.T) {
	cfg := DefaultConfig()
	clock := clockwork.NewFakeClock()
	gen := &CrashPointGenerator{source: failingReader{}}
	scheduler := NewScheduler(cfg, clock, gen, NewLedger(), &captureHub{})

	scheduler.Start()

	// The loop must halt without creating a round; Stop returns once the
	// loop has exited.
	waitFor(t, func() bool {
		select {
		case <-scheduler.done:
			return true
		default:
			return false
		}
	})
	if scheduler.CurrentRound() != nil {
		t.Error("a round was created from a failed draw")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}
