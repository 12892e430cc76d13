package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"crashgame/internal/game"
)

const (
	keySessionPrefix = "crash:session:"
	keyRoundHistory  = "crash:history"

	historyMirrorLen = 100
)

type Service interface {
	GetClient() *redis.Client
	Health() map[string]string
	Close() error

	// Session tokens for the transport-layer auth collaborator.
	SaveSession(ctx context.Context, token, username string, ttl time.Duration) error
	SessionUser(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error

	// Round history mirror, for cheap reads by anything else that
	// speaks Redis.
	SaveRound(ctx context.Context, summary *game.RoundSummary) error
	RecentRounds(ctx context.Context, n int) ([]game.RoundSummary, error)
}

type service struct {
	client *redis.Client
}

var (
	redisAddr     = getEnv("REDIS_URL", "localhost:6379")
	redisPassword = getEnv("REDIS_PASSWORD", "")
	redisDB       = getEnvAsInt("REDIS_DB", 0)
	cacheInstance *service
)

func New() Service {
	if cacheInstance != nil {
		return cacheInstance
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("[CACHE] Redis connection failed: %v", err)
		log.Println("[CACHE] Running without Redis cache")
		return nil
	}

	log.Println("[CACHE] Redis connected successfully")

	cacheInstance = &service{
		client: client,
	}

	return cacheInstance
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

func (s *service) SaveSession(ctx context.Context, token, username string, ttl time.Duration) error {
	return s.client.Set(ctx, keySessionPrefix+token, username, ttl).Err()
}

func (s *service) SessionUser(ctx context.Context, token string) (string, error) {
	username, err := s.client.Get(ctx, keySessionPrefix+token).Result()
	if err == redis.Nil {
		return "", game.ErrInvalidCredentials
	}
	return username, err
}

func (s *service) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, keySessionPrefix+token).Err()
}

// SaveRound pushes a settled round onto the bounded history list,
// newest first.
func (s *service) SaveRound(ctx context.Context, summary *game.RoundSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, keyRoundHistory, data)
	pipe.LTrim(ctx, keyRoundHistory, 0, historyMirrorLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *service) RecentRounds(ctx context.Context, n int) ([]game.RoundSummary, error) {
	if n <= 0 || n > historyMirrorLen {
		n = historyMirrorLen
	}
	raw, err := s.client.LRange(ctx, keyRoundHistory, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	rounds := make([]game.RoundSummary, 0, len(raw))
	for _, item := range raw {
		var summary game.RoundSummary
		if json.Unmarshal([]byte(item), &summary) == nil {
			rounds = append(rounds, summary)
		}
	}
	return rounds, nil
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	_, err := s.client.Ping(ctx).Result()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(poolStats.Timeouts), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)
	stats["stale_conns"] = strconv.FormatUint(uint64(poolStats.StaleConns), 10)

	return stats
}

func (s *service) Close() error {
	log.Println("[CACHE] Disconnecting from Redis")
	return s.client.Close()
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
