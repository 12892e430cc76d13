package game

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RoundArchive receives settled round summaries. Implementations persist
// them (Postgres, Redis mirror); failures are logged, never fatal.
type RoundArchive interface {
	SaveRound(ctx context.Context, summary *RoundSummary) error
}

// Scheduler owns the round lifecycle: it is the only component that creates
// rounds, drives the multiplier clock and triggers settlement. Exactly one
// round is live at any time.
type Scheduler struct {
	cfg    Config
	clock  clockwork.Clock
	gen    *CrashPointGenerator
	ledger *Ledger
	hub    Broadcaster

	mu       sync.RWMutex
	round    *Round
	history  []*RoundSummary
	seq      int
	archives []RoundArchive

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewScheduler(cfg Config, clock clockwork.Clock, gen *CrashPointGenerator, ledger *Ledger, hub Broadcaster) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		clock:    clock,
		gen:      gen,
		ledger:   ledger,
		hub:      hub,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// AttachArchive registers a sink for settled rounds. Call before Start.
func (s *Scheduler) AttachArchive(a RoundArchive) {
	s.archives = append(s.archives, a)
}

func (s *Scheduler) Start() {
	go s.loop()
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

// CurrentRound returns the live round, scheduled or running. Nil between
// rounds only before the very first one exists.
func (s *Scheduler) CurrentRound() *Round {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.round
}

// Snapshot is the late-joiner view of the live round.
func (s *Scheduler) Snapshot() *RoundSnapshot {
	round := s.CurrentRound()
	if round == nil {
		return nil
	}
	snap := round.snapshot(s.clock.Now())
	return &snap
}

// History returns up to limit settled rounds, most recent first.
func (s *Scheduler) History(limit int) []RoundSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RoundSummary, 0, n)
	for i := len(s.history) - 1; i >= len(s.history)-n; i-- {
		out = append(out, *s.history[i])
	}
	return out
}

func (s *Scheduler) loop() {
	defer close(s.done)

	for {
		select {
		case <-s.stopChan:
			log.Println("[SCHED] Round loop stopped")
			return
		default:
		}

		round, err := s.startRound()
		if err != nil {
			// Fairness-critical: never fall back to a predictable
			// source. Round creation halts here.
			log.Printf("[SCHED] FATAL: %v, halting round creation", err)
			return
		}
		if round == nil {
			// Previous round still running; the exclusivity guard
			// made this start a no-op.
			select {
			case <-s.stopChan:
			case <-s.clock.After(s.cfg.TickInterval):
			}
			continue
		}

		// Betting window: the round is Scheduled and accepts bets
		// until the cooldown expires.
		select {
		case <-s.stopChan:
			continue
		case <-s.clock.After(s.cfg.Cooldown):
		}

		if !round.start(s.clock.Now()) {
			continue
		}
		s.hub.Broadcast(WSMessage{Type: "round_start", Data: RoundStartEvent{
			RoundID:   round.id,
			StartTime: round.startTime,
		}})
		log.Printf("[SCHED] Round %s running (crash point hidden)", round.id)

		s.runTicks(round)
	}
}

// startRound draws a crash point and installs a fresh Scheduled round.
// No-op if a round is currently running.
func (s *Scheduler) startRound() (*Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round != nil {
		snap := s.round.snapshot(s.clock.Now())
		if snap.Status != StatusCrashed {
			return nil, nil
		}
	}

	crashPoint, err := s.gen.Draw()
	if err != nil {
		return nil, err
	}

	s.seq++
	id := fmt.Sprintf("R%d-%d", s.clock.Now().Unix(), s.seq)
	round := newRound(id, crashPoint, s.cfg, s.ledger)
	s.round = round

	log.Printf("[SCHED] Round %s scheduled", id)
	return round, nil
}

// runTicks drives one round from Running to Crashed on a fixed clock.
// Broadcasts happen outside the round's critical section.
func (s *Scheduler) runTicks(round *Round) {
	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.Chan():
			res := round.tick(s.clock.Now())

			for _, ev := range res.AutoCashouts {
				s.hub.Broadcast(WSMessage{Type: "cash_out", Data: ev})
			}

			if res.Crashed {
				s.hub.Broadcast(WSMessage{Type: "round_end", Data: *res.End})
				s.archive(res.Summary)
				log.Printf("[SCHED] Round %s crashed at %.2fx (%d winners)",
					round.id, res.End.FinalMultiplier, res.End.WinnerCount)
				return
			}

			if res.Update != nil {
				s.hub.Broadcast(WSMessage{Type: "round_update", Data: *res.Update})
			}
		}
	}
}

// archive appends to the bounded in-memory history and fans the summary out
// to the attached sinks.
func (s *Scheduler) archive(summary *RoundSummary) {
	s.mu.Lock()
	s.history = append(s.history, summary)
	if len(s.history) > s.cfg.HistoryCapacity {
		s.history = s.history[len(s.history)-s.cfg.HistoryCapacity:]
	}
	archives := s.archives
	s.mu.Unlock()

	for _, a := range archives {
		go func(a RoundArchive) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.SaveRound(ctx, summary); err != nil {
				log.Printf("[SCHED] Archive failed for round %s: %v", summary.RoundID, err)
			}
		}(a)
	}
}
