package server

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"crashgame/internal/game"
)

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type,X-Session-Token",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	api.Post("/register", s.registerHandler)
	api.Post("/login", s.loginHandler)

	api.Get("/game/state", s.getGameStateHandler)
	api.Get("/game/history", s.getHistoryHandler)
	api.Post("/game/bet", s.placeBetHandler)
	api.Post("/game/cashout", s.cashoutHandler)

	api.Get("/account", s.getAccountHandler)
	api.Get("/observers", s.getObserversHandler)

	// WebSocket route
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

// statusForError maps the game package's sentinel errors onto HTTP codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound), errors.Is(err, game.ErrRoundNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, game.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, game.ErrDuplicateUser), errors.Is(err, game.ErrDuplicateBet):
		return fiber.StatusConflict
	default:
		return fiber.StatusBadRequest
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}
