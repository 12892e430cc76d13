package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"

	"crashgame/internal/game"
)

// Service wraps the Postgres connection. The database is write-mostly
// bookkeeping: settled rounds and their bet outcomes land here, it is not
// the source of truth for live balances.
type Service interface {
	Health() map[string]string
	Close() error

	SaveRound(ctx context.Context, summary *game.RoundSummary) error
}

type service struct {
	db *sql.DB
}

var (
	database   = os.Getenv("CRASH_DB_DATABASE")
	password   = os.Getenv("CRASH_DB_PASSWORD")
	username   = os.Getenv("CRASH_DB_USERNAME")
	port       = os.Getenv("CRASH_DB_PORT")
	host       = os.Getenv("CRASH_DB_HOST")
	schema     = os.Getenv("CRASH_DB_SCHEMA")
	dbInstance *service
)

func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, schema)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatal(err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	dbInstance = &service{
		db: db,
	}
	return dbInstance
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	err := s.db.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	return stats
}

// SaveRound archives a settled round and its bet outcomes in one
// transaction.
func (s *service) SaveRound(ctx context.Context, summary *game.RoundSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin round archive: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rounds (id, crash_point, final_multiplier, started_at, ended_at, winner_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		summary.RoundID, summary.CrashPoint, summary.FinalMultiplier,
		summary.StartTime, summary.EndTime, summary.WinnerCount)
	if err != nil {
		return fmt.Errorf("insert round %s: %w", summary.RoundID, err)
	}

	for _, bet := range summary.Bets {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO round_bets (id, round_id, username, amount, auto_cashout, status, cashout_multiplier, profit, placed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO NOTHING`,
			bet.BetID, summary.RoundID, bet.Username, bet.Amount, bet.AutoCashout,
			string(bet.Status), bet.CashoutMultiplier, bet.Profit, bet.PlacedAt)
		if err != nil {
			return fmt.Errorf("insert bet %s: %w", bet.BetID, err)
		}
	}

	return tx.Commit()
}

func (s *service) Close() error {
	log.Printf("[DB] Disconnected from database: %s", database)
	return s.db.Close()
}
