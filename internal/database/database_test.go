package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"crashgame/internal/game"
)

func mustStartPostgresContainer() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "database"
		dbPwd  = "password"
		dbUser = "user"
	)

	// Create context with timeout to prevent hanging
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbContainer, err := postgres.Run(
		ctx,
		"postgres:latest",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	database = dbName
	password = dbPwd
	username = dbUser
	schema = "public"

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	host = dbHost
	port = dbPort.Port()

	return dbContainer.Terminate, err
}

func TestMain(m *testing.M) {
	// Skip integration tests if SKIP_INTEGRATION env var is set
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	// Skip if Docker is not available
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		os.Exit(0)
	}

	teardown, err := mustStartPostgresContainer()
	if err != nil {
		// Don't fail, just skip tests if container can't start
		os.Exit(0)
	}

	code := m.Run()

	if teardown != nil {
		teardown(context.Background())
	}

	os.Exit(code)
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func TestNew(t *testing.T) {
	srv := New()
	if srv == nil {
		t.Fatal("New() returned nil")
	}
}

func TestHealth(t *testing.T) {
	srv := New()

	stats := srv.Health()

	if stats["status"] != "up" {
		t.Fatalf("expected status to be up, got %s", stats["status"])
	}

	if _, ok := stats["error"]; ok {
		t.Fatalf("expected error not to be present")
	}

	if stats["message"] != "It's healthy" {
		t.Fatalf("expected message to be 'It's healthy', got %s", stats["message"])
	}
}

func TestSaveRound(t *testing.T) {
	srv := New()
	s := srv.(*service)

	if err := RunMigrations(s.db, "../../migrations"); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	started := time.Now().Add(-10 * time.Second)
	summary := &game.RoundSummary{
		RoundID:         "R-archive-1",
		CrashPoint:      2.50,
		FinalMultiplier: 2.50,
		StartTime:       started,
		EndTime:         time.Now(),
		WinnerCount:     1,
		Bets: []game.Bet{
			{
				BetID:             "bet-1",
				Username:          "alice",
				Amount:            100,
				Status:            game.BetCashedOut,
				CashoutMultiplier: 1.50,
				Profit:            50,
				PlacedAt:          started,
			},
			{
				BetID:    "bet-2",
				Username: "bob",
				Amount:   200,
				Status:   game.BetLost,
				Profit:   -200,
				PlacedAt: started,
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.SaveRound(ctx, summary); err != nil {
		t.Fatalf("SaveRound() error = %v", err)
	}

	// Archiving the same round twice is a no-op, not an error
	if err := srv.SaveRound(ctx, summary); err != nil {
		t.Fatalf("repeated SaveRound() error = %v", err)
	}

	var betCount int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM round_bets WHERE round_id = $1`, summary.RoundID).Scan(&betCount)
	if err != nil {
		t.Fatalf("count bets: %v", err)
	}
	if betCount != 2 {
		t.Errorf("archived bets = %d, want 2", betCount)
	}
}

func TestClose(t *testing.T) {
	srv := New()

	if srv.Close() != nil {
		t.Fatalf("expected Close() to return nil")
	}
}
