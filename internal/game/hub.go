package game

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

type Client struct {
	conn     *websocket.Conn
	username string
	joinedAt time.Time
	mu       sync.Mutex
}

// Hub fans round events out to every connected observer. Broadcast is
// fire-and-forget: a slow observer never blocks game progress.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, 100),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Observer joined: %s (Total: %d)", client.username, total)
			h.broadcastObserverCount()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
				log.Printf("[WS] Observer left: %s (Total: %d)", client.username, len(h.clients))
			}
			h.mu.Unlock()
			h.broadcastObserverCount()

		case message := <-h.broadcast:
			jsonMessage, err := json.Marshal(message)
			if err != nil {
				log.Printf("[WS] Marshal error: %v", err)
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				go client.Send(jsonMessage) // Non-blocking send
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("[WS] Broadcast channel full, dropping message")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Usernames returns the connected observers' names, sorted.
func (h *Hub) Usernames() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.clients))
	for client := range h.clients {
		names = append(names, client.username)
	}
	h.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Observers lists who is connected and since when. Balances are filled in
// by the caller from the ledger.
func (h *Hub) Observers() []ObserverInfo {
	h.mu.RLock()
	infos := make([]ObserverInfo, 0, len(h.clients))
	for client := range h.clients {
		infos = append(infos, ObserverInfo{
			Username: client.username,
			JoinedAt: client.joinedAt,
		})
	}
	h.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].JoinedAt.Before(infos[j].JoinedAt) })
	return infos
}

func (h *Hub) broadcastObserverCount() {
	h.Broadcast(WSMessage{Type: "observer_count_update", Data: ObserverCountEvent{
		Count:     h.GetClientCount(),
		Usernames: h.Usernames(),
	}})
}

func (c *Client) Send(message interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	var err error

	switch v := message.(type) {
	case []byte:
		data = v
	default:
		data, err = json.Marshal(v)
		if err != nil {
			log.Printf("[WS] Send marshal error: %v", err)
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[WS] Write error for user %s: %v", c.username, err)
	}
}

// SendInitialState pushes the live round snapshot to a late joiner so it
// can reconstruct state without replaying history.
func (c *Client) SendInitialState(snap *RoundSnapshot) {
	if snap != nil {
		c.Send(WSMessage{Type: "initial_state", Data: snap})
	}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, username string) *Client {
	client := &Client{
		conn:     conn,
		username: username,
		joinedAt: time.Now(),
	}
	h.register <- client
	return client
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mu.RLock()
	for client := range h.clients {
		if client.conn == conn {
			h.mu.RUnlock()
			h.unregister <- client
			return
		}
	}
	h.mu.RUnlock()
}
