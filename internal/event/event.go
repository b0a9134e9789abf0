// Package event defines the cancellable gameplay intents the core
// publishes before committing state, and a synchronous bus to carry
// them. Handlers observe the old and intended new state and may cancel;
// the core never mutates ahead of an accepted intent.
package event

import (
	"sync"

	"github.com/google/uuid"

	"github.com/voxmmo/voxmmo/internal/model"
)

// GainReason classifies the origin of an XP gain.
type GainReason int32

const (
	// GainPvE — self-caused combat or gathering gain.
	GainPvE GainReason = iota
	// GainPvP — player-versus-player combat gain.
	GainPvP
	// GainCommand — administrative/command-issued gain.
	GainCommand
)

// Shareable reports whether a gain of this reason participates in
// party XP sharing. Command-issued gains never do.
func (r GainReason) Shareable() bool {
	return r != GainCommand
}

// Intent is a cancellable state-change proposal.
type Intent interface {
	intent()
}

// XPGain proposes adding XP to one recipient's skill.
// Amount is the already-modified value about to be committed.
type XPGain struct {
	Player uuid.UUID
	Skill  model.SkillType
	Amount float64
	Reason GainReason
	// Shared is true for a party-share recipient, false for the actor.
	Shared bool
}

// LevelChange proposes one level crossing for a skill.
type LevelChange struct {
	Player uuid.UUID
	Skill  model.SkillType
	From   int32
	To     int32
}

// PartyChangeKind classifies a party membership transition.
type PartyChangeKind int32

const (
	PartyCreate PartyChangeKind = iota
	PartyJoin
	PartyLeave
	PartyKick
	PartyDisband
)

// PartyChange proposes a membership transition.
type PartyChange struct {
	Player uuid.UUID
	Party  string
	Kind   PartyChangeKind
}

// AllianceChange proposes forming or dissolving an alliance.
type AllianceChange struct {
	Party  string
	Other  string
	Formed bool
}

func (XPGain) intent()         {}
func (LevelChange) intent()    {}
func (PartyChange) intent()    {}
func (AllianceChange) intent() {}

// Bus publishes intents synchronously. Publish returns true when any
// handler cancelled the intent; the caller must not commit past a
// cancelled publish.
type Bus interface {
	Publish(Intent) (cancelled bool)
}

// Handler inspects an intent and returns true to cancel it.
type Handler func(Intent) bool

// SyncBus is a synchronous in-process Bus.
// Thread-safe: subscription and publish may interleave.
type SyncBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewSyncBus creates an empty bus.
func NewSyncBus() *SyncBus {
	return &SyncBus{}
}

// Subscribe registers a handler for all intents.
func (b *SyncBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish runs every handler; any cancellation wins.
func (b *SyncBus) Publish(i Intent) bool {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	cancelled := false
	for _, h := range handlers {
		if h(i) {
			cancelled = true
		}
	}
	return cancelled
}

// NopBus accepts every intent. Useful default and test double.
type NopBus struct{}

// Publish never cancels.
func (NopBus) Publish(Intent) bool { return false }
