package player

import (
	"sync"

	"github.com/google/uuid"

	"github.com/voxmmo/voxmmo/internal/model"
)

// Positions tracks last-known block positions of online players. The
// hosting server feeds it from movement updates; party range checks
// read from it.
type Positions struct {
	mu  sync.RWMutex
	pos map[uuid.UUID]model.BlockPos
}

func NewPositions() *Positions {
	return &Positions{pos: make(map[uuid.UUID]model.BlockPos)}
}

// Update records the player's current position.
func (p *Positions) Update(id uuid.UUID, at model.BlockPos) {
	p.mu.Lock()
	p.pos[id] = at
	p.mu.Unlock()
}

// Forget drops the player's position, typically on disconnect.
func (p *Positions) Forget(id uuid.UUID) {
	p.mu.Lock()
	delete(p.pos, id)
	p.mu.Unlock()
}

// Position returns the last-known position, false when untracked.
func (p *Positions) Position(id uuid.UUID) (model.BlockPos, bool) {
	p.mu.RLock()
	at, ok := p.pos[id]
	p.mu.RUnlock()
	return at, ok
}
