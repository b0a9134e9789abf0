// Package notify delivers fire-and-forget user-visible messages.
// The core never blocks on delivery and never learns whether the
// recipient was online.
package notify

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Sink delivers a message to one online actor. Delivery to an offline
// actor is a silent no-op.
type Sink interface {
	Send(player uuid.UUID, message string)
}

// SlogSink logs every message instead of delivering it. Default sink
// for headless runs.
type SlogSink struct{}

// Send logs the message at Info.
func (SlogSink) Send(player uuid.UUID, message string) {
	slog.Info("notify", "player", player, "message", message)
}

// Capture records messages per player. Test double.
type Capture struct {
	mu       sync.Mutex
	messages map[uuid.UUID][]string
}

// NewCapture creates an empty capture sink.
func NewCapture() *Capture {
	return &Capture{messages: make(map[uuid.UUID][]string)}
}

// Send records the message.
func (c *Capture) Send(player uuid.UUID, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[player] = append(c.messages[player], message)
}

// Messages returns a copy of the messages recorded for a player.
func (c *Capture) Messages(player uuid.UUID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages[player]))
	copy(out, c.messages[player])
	return out
}
