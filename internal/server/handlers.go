package server

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"crashgame/internal/game"
)

const sessionTTL = 24 * time.Hour

// Health handler
func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": s.db.Health(),
		"cache":    s.cache.Health(),
		"game": fiber.Map{
			"status":              "running",
			"connected_observers": s.hub.GetClientCount(),
		},
	}
	return c.JSON(health)
}

// Auth handlers

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *FiberServer) registerHandler(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, game.ErrInvalidInput)
	}

	account, err := s.ledger.Register(req.Username, req.Password, s.cfg.StartingBalance)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(account)
}

func (s *FiberServer) loginHandler(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, game.ErrInvalidInput)
	}

	account, err := s.ledger.Authenticate(req.Username, req.Password)
	if err != nil {
		return errorJSON(c, err)
	}

	token := uuid.NewString()
	if err := s.cache.SaveSession(c.Context(), token, account.Username, sessionTTL); err != nil {
		log.Printf("[SERVER] Session save failed for %s: %v", account.Username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "session store unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"token":   token,
		"account": account,
	})
}

// currentUser resolves the requesting account from the session token.
func (s *FiberServer) currentUser(c *fiber.Ctx) (string, error) {
	token := c.Get("X-Session-Token")
	if token == "" {
		token = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return "", game.ErrInvalidCredentials
	}
	return s.cache.SessionUser(c.Context(), token)
}

// Game handlers

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	snap := s.scheduler.Snapshot()
	if snap == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no active game round",
		})
	}
	return c.JSON(snap)
}

func (s *FiberServer) getHistoryHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"rounds": s.scheduler.History(20),
	})
}

type placeBetRequest struct {
	GameID      string  `json:"game_id"`
	Amount      int64   `json:"amount"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	username, err := s.currentUser(c)
	if err != nil {
		return errorJSON(c, err)
	}

	var req placeBetRequest
	if err := c.BodyParser(&req); err != nil || req.GameID == "" {
		return errorJSON(c, game.ErrInvalidInput)
	}

	receipt, err := s.gateway.PlaceBet(username, req.GameID, req.Amount, req.AutoCashout)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(receipt)
}

type cashoutRequest struct {
	GameID string `json:"game_id"`
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	username, err := s.currentUser(c)
	if err != nil {
		return errorJSON(c, err)
	}

	var req cashoutRequest
	if err := c.BodyParser(&req); err != nil || req.GameID == "" {
		return errorJSON(c, game.ErrInvalidInput)
	}

	result, err := s.gateway.CashOut(username, req.GameID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(result)
}

func (s *FiberServer) getAccountHandler(c *fiber.Ctx) error {
	username, err := s.currentUser(c)
	if err != nil {
		return errorJSON(c, err)
	}

	account, err := s.ledger.Get(username)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(account)
}

func (s *FiberServer) getObserversHandler(c *fiber.Ctx) error {
	observers := s.hub.Observers()
	for i := range observers {
		if balance, err := s.ledger.Balance(observers[i].Username); err == nil {
			observers[i].Balance = balance
		}
	}
	return c.JSON(fiber.Map{
		"observers": observers,
	})
}

// WebSocket

type wsCommand struct {
	Type        string  `json:"type"`
	GameID      string  `json:"game_id,omitempty"`
	Amount      int64   `json:"amount,omitempty"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

// gameWebSocketHandler serves the observer push channel. A valid session
// token identifies the observer and unlocks the bet/cashout commands;
// without one the connection is a read-only anonymous observer.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	username := "anonymous"
	if token := conn.Query("token"); token != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if u, err := s.cache.SessionUser(ctx, token); err == nil {
			username = u
		}
		cancel()
	}

	log.Printf("[WS] New connection from: %s", username)

	client := s.hub.RegisterClient(conn, username)

	// Late joiners get the full live round snapshot up front.
	client.SendInitialState(s.scheduler.Snapshot())

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for %s: %v", username, err)
			s.hub.UnregisterClient(conn)
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var cmd wsCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Type {
		case "place_bet":
			var payload interface{}
			if username == "anonymous" {
				payload = fiber.Map{"error": game.ErrInvalidCredentials.Error()}
			} else if receipt, err := s.gateway.PlaceBet(username, cmd.GameID, cmd.Amount, cmd.AutoCashout); err != nil {
				payload = fiber.Map{"error": err.Error()}
			} else {
				payload = receipt
			}
			client.Send(game.WSMessage{Type: "bet_result", Data: payload})

		case "cashout":
			var payload interface{}
			if username == "anonymous" {
				payload = fiber.Map{"error": game.ErrInvalidCredentials.Error()}
			} else if result, err := s.gateway.CashOut(username, cmd.GameID); err != nil {
				payload = fiber.Map{"error": err.Error()}
			} else {
				payload = result
			}
			client.Send(game.WSMessage{Type: "cashout_result", Data: payload})

		case "ping":
			client.Send(game.WSMessage{Type: "pong"})
		}
	}
}
