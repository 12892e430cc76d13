package game

import (
	"errors"
	"sync"
	"testing"
)

func TestLedger_Register(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{
			name:     "valid registration",
			username: "alice",
			password: "secret123",
			wantErr:  nil,
		},
		{
			name:     "username too short",
			username: "al",
			password: "secret123",
			wantErr:  ErrInvalidInput,
		},
		{
			name:     "password too short",
			username: "bob",
			password: "pw",
			wantErr:  ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewLedger()
			account, err := ledger.Register(tt.username, tt.password, 1000)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && account.Balance != 1000 {
				t.Errorf("Register() balance = %d, want 1000", account.Balance)
			}
		})
	}
}

func TestLedger_RegisterDuplicate(t *testing.T) {
	ledger := NewLedger()

	if _, err := ledger.Register("alice", "secret123", 1000); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if _, err := ledger.Register("alice", "different", 1000); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("second Register() error = %v, want ErrDuplicateUser", err)
	}
}

func TestLedger_Authenticate(t *testing.T) {
	ledger := NewLedger()
	ledger.Register("alice", "secret123", 1000)

	t.Run("correct password", func(t *testing.T) {
		account, err := ledger.Authenticate("alice", "secret123")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if account.Username != "alice" {
			t.Errorf("Authenticate() username = %s, want alice", account.Username)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := ledger.Authenticate("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		if _, err := ledger.Authenticate("mallory", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestLedger_DebitCredit(t *testing.T) {
	ledger := NewLedger()
	ledger.Register("alice", "secret123", 100)

	balance, err := ledger.Debit("alice", 60)
	if err != nil {
		t.Fatalf("Debit() error = %v", err)
	}
	if balance != 40 {
		t.Errorf("Debit() balance = %d, want 40", balance)
	}

	if _, err := ledger.Debit("alice", 50); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Debit() beyond balance error = %v, want ErrInsufficientFunds", err)
	}
	// Failed debit leaves balance unchanged
	if b, _ := ledger.Balance("alice"); b != 40 {
		t.Errorf("balance after failed debit = %d, want 40", b)
	}

	balance, err = ledger.Credit("alice", 90)
	if err != nil {
		t.Fatalf("Credit() error = %v", err)
	}
	if balance != 130 {
		t.Errorf("Credit() balance = %d, want 130", balance)
	}

	if _, err := ledger.Debit("mallory", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("Debit() unknown user error = %v, want ErrNotFound", err)
	}
}

func TestLedger_ConcurrentDebits(t *testing.T) {
	ledger := NewLedger()
	ledger.Register("alice", "secret123", 1000)

	var wg sync.WaitGroup
	successes := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Debit("alice", 100); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	won := 0
	for range successes {
		won++
	}
	if won != 10 {
		t.Errorf("concurrent debits: %d succeeded, want exactly 10", won)
	}
	if balance, _ := ledger.Balance("alice"); balance != 0 {
		t.Errorf("final balance = %d, want 0", balance)
	}
}

func TestLedger_Counters(t *testing.T) {
	ledger := NewLedger()
	ledger.Register("alice", "secret123", 1000)

	ledger.RecordBetPlaced("alice")
	ledger.RecordBetPlaced("alice")
	ledger.RecordWin("alice", 50)
	ledger.RecordLoss("alice", 20)

	account, err := ledger.Get("alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if account.GamesPlayed != 2 {
		t.Errorf("GamesPlayed = %d, want 2", account.GamesPlayed)
	}
	if account.GamesWon != 1 {
		t.Errorf("GamesWon = %d, want 1", account.GamesWon)
	}
	if account.Profit != 30 {
		t.Errorf("Profit = %d, want 30", account.Profit)
	}
}
