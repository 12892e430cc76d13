package server

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"

	"crashgame/internal/cache"
	"crashgame/internal/database"
	"crashgame/internal/game"
)

type FiberServer struct {
	*fiber.App

	db    database.Service
	cache cache.Service

	cfg       game.Config
	ledger    *game.Ledger
	hub       *game.Hub
	scheduler *game.Scheduler
	gateway   *game.Gateway
}

func New() *FiberServer {
	// Round archive
	db := database.New()

	// Sessions + history mirror
	redisService := cache.New()
	if redisService == nil {
		log.Fatal("[SERVER] Redis is required for session handling")
	}

	// Core game components
	cfg := game.ConfigFromEnv()
	clock := clockwork.NewRealClock()
	ledger := game.NewLedger()
	hub := game.NewHub()
	scheduler := game.NewScheduler(cfg, clock, game.NewCrashPointGenerator(), ledger, hub)
	scheduler.AttachArchive(db)
	scheduler.AttachArchive(redisService)
	gateway := game.NewGateway(cfg, scheduler, ledger, hub, clock)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crashgame",
			AppName:       "crashgame",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:        db,
		cache:     redisService,
		cfg:       cfg,
		ledger:    ledger,
		hub:       hub,
		scheduler: scheduler,
		gateway:   gateway,
	}

	// Apply global middleware
	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	// Start game components
	go hub.Run()
	scheduler.Start()

	log.Println("[SERVER] Round scheduler started")

	return server
}

// Shutdown gracefully stops the game components and closes connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
