package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"govlink/checkin-service/internal/models"
)

// Subscription scopes a display. An empty TerminalID receives every
// terminal's results; Office narrows that to one office.
type Subscription struct {
	TerminalID string
	Office     string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

type SubscribeMessage struct {
	Action     string `json:"action"`
	TerminalID string `json:"terminal_id"`
}

// Event is what a reception display receives for each scan.
type Event struct {
	Type           string                  `json:"type"`
	TerminalID     string                  `json:"terminal_id"`
	Result         models.ValidationResult `json:"result"`
	DisplaySeconds int                     `json:"display_seconds"`
	CreatedAt      time.Time               `json:"created_at"`
}

func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) Broadcast(payload []byte, meta Subscription) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, client := range h.clients {
		if !match(client.Subscription, meta) {
			continue
		}
		select {
		case client.Send <- payload:
			delivered++
		default:
			h.logger.Warn("drop display message", "client", client.ID, "terminal", meta.TerminalID)
		}
	}
	return delivered
}

// Publish wraps a result in an Event and broadcasts it to the displays of
// terminal.
func (h *Hub) Publish(terminal models.Terminal, result models.ValidationResult, displaySeconds int, now time.Time) error {
	payload, err := json.Marshal(Event{
		Type:           "checkin.result",
		TerminalID:     terminal.ID,
		Result:         result,
		DisplaySeconds: displaySeconds,
		CreatedAt:      now.UTC(),
	})
	if err != nil {
		return err
	}
	h.Broadcast(payload, Subscription{TerminalID: terminal.ID, Office: terminal.Office})
	return nil
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func match(sub Subscription, meta Subscription) bool {
	if sub.TerminalID != "" && meta.TerminalID != sub.TerminalID {
		return false
	}
	if sub.Office != "" && meta.Office != sub.Office {
		return false
	}
	return true
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
