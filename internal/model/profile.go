package model

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PlayerProfile is the durable per-player record of skill levels, XP,
// ability cooldown timestamps and misc counters.
// Thread-safe: all methods acquire the internal mutex.
//
// The non-negative XP invariant is enforced here, in every mutator —
// callers never re-clamp.
type PlayerProfile struct {
	mu sync.RWMutex

	id       uuid.UUID // immutable
	name     string    // last-known display name, may change
	childAgg ChildAggregation

	levels    map[SkillType]int32
	xp        map[SkillType]float64
	cooldowns map[AbilityType]int64 // ability → deactivation epoch millis

	lastLogin int64 // epoch millis
	tipsShown int32

	dirty bool
}

// NewPlayerProfile creates a profile with every root skill at startLevel and zero XP.
func NewPlayerProfile(id uuid.UUID, name string, startLevel int32) *PlayerProfile {
	if startLevel < 0 {
		startLevel = 0
	}
	p := &PlayerProfile{
		id:        id,
		name:      name,
		levels:    make(map[SkillType]int32, int(childSkillStart)),
		xp:        make(map[SkillType]float64, int(childSkillStart)),
		cooldowns: make(map[AbilityType]int64),
	}
	for _, s := range RootSkills() {
		p.levels[s] = startLevel
		p.xp[s] = 0
	}
	return p
}

// ID returns the immutable stable player id.
func (p *PlayerProfile) ID() uuid.UUID {
	return p.id
}

// Name returns the last-known display name.
func (p *PlayerProfile) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// SetName refreshes the display name in place (player reconnected with a new name).
func (p *PlayerProfile) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.name != name {
		p.name = name
		p.dirty = true
	}
}

// SetChildAggregation selects how child skill levels are derived.
func (p *PlayerProfile) SetChildAggregation(agg ChildAggregation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.childAgg = agg
}

// SkillLevel returns the level of any skill. Child skill levels are
// recomputed from parents on every call, never stored.
func (p *PlayerProfile) SkillLevel(skill SkillType) int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.skillLevelLocked(skill)
}

func (p *PlayerProfile) skillLevelLocked(skill SkillType) int32 {
	if skill.IsChild() {
		parents := skill.Parents()
		levels := make([]int32, 0, len(parents))
		for _, parent := range parents {
			levels = append(levels, p.levels[parent])
		}
		return AggregateChildLevel(p.childAgg, levels)
	}
	return p.levels[skill]
}

// SkillXP returns the current XP toward the next level of a root skill.
// Child skills always report zero.
func (p *PlayerProfile) SkillXP(skill SkillType) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.xp[skill]
}

// AddXP adds XP to a root skill without any level-up cascade or event.
// Negative amounts are permitted; the result is clamped at zero.
// Callers needing the cascade and cancellable intents go through the
// experience engine instead.
func (p *PlayerProfile) AddXP(skill SkillType, amount float64) error {
	if err := requireRoot(skill); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.xp[skill] + amount
	if v < 0 {
		v = 0
	}
	p.xp[skill] = v
	p.dirty = true
	return nil
}

// RemoveXP subtracts XP from a root skill, clamped at zero.
func (p *PlayerProfile) RemoveXP(skill SkillType, amount float64) error {
	return p.AddXP(skill, -amount)
}

// SetXP sets the exact XP value for a root skill (administrative/load path).
func (p *PlayerProfile) SetXP(skill SkillType, value float64) error {
	if err := requireRoot(skill); err != nil {
		return err
	}
	if value < 0 {
		value = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.xp[skill] = value
	p.dirty = true
	return nil
}

// ModifySkill sets an absolute level for a root skill and resets its XP
// to zero. Rejects negative levels and levels above cap.
func (p *PlayerProfile) ModifySkill(skill SkillType, level, cap int32) error {
	if err := requireRoot(skill); err != nil {
		return err
	}
	if level < 0 {
		return fmt.Errorf("negative level %d for %s", level, skill)
	}
	if level > cap {
		return fmt.Errorf("level %d above cap %d for %s", level, cap, skill)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels[skill] = level
	p.xp[skill] = 0
	p.dirty = true
	return nil
}

// SetSkillState commits a consistent (level, xp) pair in one transaction.
// Used by the experience engine and profile loaders.
func (p *PlayerProfile) SetSkillState(skill SkillType, level int32, xp float64) error {
	if err := requireRoot(skill); err != nil {
		return err
	}
	if level < 0 {
		level = 0
	}
	if xp < 0 {
		xp = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels[skill] = level
	p.xp[skill] = xp
	p.dirty = true
	return nil
}

// CooldownEnd returns the stored deactivation timestamp for an ability
// (epoch millis), zero if the ability was never used.
func (p *PlayerProfile) CooldownEnd(ability AbilityType) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cooldowns[ability]
}

// SetCooldownEnd stamps the deactivation timestamp for an ability.
func (p *PlayerProfile) SetCooldownEnd(ability AbilityType, epochMillis int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooldowns[ability] = epochMillis
	p.dirty = true
}

// ResetCooldowns zeroes all ability timestamps (profile reload / admin reset).
func (p *PlayerProfile) ResetCooldowns() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.cooldowns) == 0 {
		return
	}
	p.cooldowns = make(map[AbilityType]int64)
	p.dirty = true
}

// LastLogin returns the last login timestamp (epoch millis).
func (p *PlayerProfile) LastLogin() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastLogin
}

// SetLastLogin records the last login timestamp.
func (p *PlayerProfile) SetLastLogin(epochMillis int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastLogin = epochMillis
	p.dirty = true
}

// TipsShown returns how many one-off tips this player has seen.
func (p *PlayerProfile) TipsShown() int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tipsShown
}

// IncTipsShown bumps the tips counter.
func (p *PlayerProfile) IncTipsShown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tipsShown++
	p.dirty = true
}

// Dirty reports whether the profile changed since the last ClearDirty.
func (p *PlayerProfile) Dirty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}

// ClearDirty marks the profile as persisted.
func (p *PlayerProfile) ClearDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = false
}

// MarkDirty flags the profile for the next persistence cycle. Savers
// call it when a write fails after the flag was already cleared.
func (p *PlayerProfile) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = true
}

// ProfileSnapshot is a consistent plain copy of a profile, safe to
// serialize without holding the profile lock.
type ProfileSnapshot struct {
	ID        uuid.UUID
	Name      string
	Levels    map[SkillType]int32
	XP        map[SkillType]float64
	Cooldowns map[AbilityType]int64
	LastLogin int64
	TipsShown int32
}

// Snapshot copies the profile state under the lock.
func (p *PlayerProfile) Snapshot() ProfileSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := ProfileSnapshot{
		ID:        p.id,
		Name:      p.name,
		Levels:    make(map[SkillType]int32, len(p.levels)),
		XP:        make(map[SkillType]float64, len(p.xp)),
		Cooldowns: make(map[AbilityType]int64, len(p.cooldowns)),
		LastLogin: p.lastLogin,
		TipsShown: p.tipsShown,
	}
	for s, l := range p.levels {
		snap.Levels[s] = l
	}
	for s, x := range p.xp {
		snap.XP[s] = x
	}
	for a, c := range p.cooldowns {
		snap.Cooldowns[a] = c
	}
	return snap
}

// ProfileFromSnapshot reconstructs a profile from stored state.
// Missing root skills are initialized at startLevel with zero XP so that
// profiles survive skill additions between versions.
func ProfileFromSnapshot(snap ProfileSnapshot, startLevel int32) *PlayerProfile {
	p := NewPlayerProfile(snap.ID, snap.Name, startLevel)
	for _, s := range RootSkills() {
		if l, ok := snap.Levels[s]; ok {
			p.levels[s] = l
		}
		if x, ok := snap.XP[s]; ok && x >= 0 {
			p.xp[s] = x
		}
	}
	for a, c := range snap.Cooldowns {
		if a.Valid() {
			p.cooldowns[a] = c
		}
	}
	p.lastLogin = snap.LastLogin
	p.tipsShown = snap.TipsShown
	return p
}

func requireRoot(skill SkillType) error {
	if !skill.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSkill, int32(skill))
	}
	if skill.IsChild() {
		return fmt.Errorf("%w: %s", ErrChildSkill, skill)
	}
	return nil
}
