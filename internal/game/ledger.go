package game

import (
	"log"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 6
)

type account struct {
	username     string
	passwordHash []byte
	balance      int64
	gamesPlayed  int
	gamesWon     int
	profit       int64
	createdAt    time.Time
}

// Ledger owns every account and is the only component allowed to move
// money. All mutations happen under a single lock; when a round lock and
// the ledger lock are both needed, the round lock is taken first.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account
}

func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[string]*account)}
}

// Register creates an account with the given starting balance.
func (l *Ledger) Register(username, password string, startingBalance int64) (AccountView, error) {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen || len(password) < minPasswordLen {
		return AccountView{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AccountView{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[username]; exists {
		return AccountView{}, ErrDuplicateUser
	}

	acct := &account{
		username:     username,
		passwordHash: hash,
		balance:      startingBalance,
		createdAt:    time.Now(),
	}
	l.accounts[username] = acct

	log.Printf("[LEDGER] Registered account %s (balance %d)", username, startingBalance)
	return acct.view(), nil
}

func (l *Ledger) Authenticate(username, password string) (AccountView, error) {
	l.mu.RLock()
	acct, exists := l.accounts[username]
	var hash []byte
	var view AccountView
	if exists {
		hash = acct.passwordHash
		view = acct.view()
	}
	l.mu.RUnlock()

	if !exists {
		return AccountView{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return AccountView{}, ErrInvalidCredentials
	}
	return view, nil
}

func (l *Ledger) Get(username string) (AccountView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, exists := l.accounts[username]
	if !exists {
		return AccountView{}, ErrNotFound
	}
	return acct.view(), nil
}

func (l *Ledger) Balance(username string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, exists := l.accounts[username]
	if !exists {
		return 0, ErrNotFound
	}
	return acct.balance, nil
}

// Debit removes amount from the account and returns the new balance.
// The balance can never go negative.
func (l *Ledger) Debit(username string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, exists := l.accounts[username]
	if !exists {
		return 0, ErrNotFound
	}
	if acct.balance < amount {
		return acct.balance, ErrInsufficientFunds
	}
	acct.balance -= amount
	return acct.balance, nil
}

// Credit adds amount to the account and returns the new balance.
func (l *Ledger) Credit(username string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, exists := l.accounts[username]
	if !exists {
		return 0, ErrNotFound
	}
	acct.balance += amount
	return acct.balance, nil
}

// RecordBetPlaced bumps the games-played counter at bet placement time.
func (l *Ledger) RecordBetPlaced(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acct, exists := l.accounts[username]; exists {
		acct.gamesPlayed++
	}
}

// RecordWin books the statistics of a cashed-out bet. The payout itself has
// already been credited.
func (l *Ledger) RecordWin(username string, profit int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acct, exists := l.accounts[username]; exists {
		acct.gamesWon++
		acct.profit += profit
	}
}

// RecordLoss books the statistics of a lost bet. The stake was already
// debited at placement; no money moves here.
func (l *Ledger) RecordLoss(username string, stake int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acct, exists := l.accounts[username]; exists {
		acct.profit -= stake
	}
}

func (a *account) view() AccountView {
	return AccountView{
		Username:    a.username,
		Balance:     a.balance,
		GamesPlayed: a.gamesPlayed,
		GamesWon:    a.gamesWon,
		Profit:      a.profit,
		CreatedAt:   a.createdAt,
	}
}
