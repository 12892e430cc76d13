package game

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config collects the tunables of the round loop and betting rules.
// Amounts are fixed-point currency units (whole units, no fractions).
type Config struct {
	TickInterval     time.Duration // multiplier clock resolution
	GrowthRate       float64       // multiplier growth per second
	MaxRoundDuration time.Duration // hard ceiling; forces a crash
	Cooldown         time.Duration // betting window between rounds
	MinStake         int64
	StartingBalance  int64 // granted at registration
	HistoryCapacity  int   // completed rounds kept in memory
}

func DefaultConfig() Config {
	return Config{
		TickInterval:     100 * time.Millisecond,
		GrowthRate:       0.05,
		MaxRoundDuration: 30 * time.Second,
		Cooldown:         5 * time.Second,
		MinStake:         10,
		StartingBalance:  1000,
		HistoryCapacity:  100,
	}
}

// ConfigFromEnv overlays environment variables onto the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = getEnvAsDuration("GAME_TICK_INTERVAL", cfg.TickInterval)
	cfg.GrowthRate = getEnvAsFloat("GAME_GROWTH_RATE", cfg.GrowthRate)
	cfg.MaxRoundDuration = getEnvAsDuration("GAME_MAX_ROUND_DURATION", cfg.MaxRoundDuration)
	cfg.Cooldown = getEnvAsDuration("GAME_COOLDOWN", cfg.Cooldown)
	cfg.MinStake = getEnvAsInt64("GAME_MIN_STAKE", cfg.MinStake)
	cfg.StartingBalance = getEnvAsInt64("GAME_STARTING_BALANCE", cfg.StartingBalance)
	cfg.HistoryCapacity = getEnvAsInt("GAME_HISTORY_CAPACITY", cfg.HistoryCapacity)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
