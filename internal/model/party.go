package model

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ShareMode selects how XP or items are distributed within a party.
type ShareMode int32

const (
	ShareNone ShareMode = iota
	ShareEqual
	ShareRandom
)

var shareModeNames = [...]string{"none", "equal", "random"}

// String returns the lowercase share mode name.
func (m ShareMode) String() string {
	if m < 0 || int(m) >= len(shareModeNames) {
		return fmt.Sprintf("share(%d)", int32(m))
	}
	return shareModeNames[m]
}

// ParseShareMode resolves a share mode by name (case-insensitive).
func ParseShareMode(name string) (ShareMode, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range shareModeNames {
		if n == lower {
			return ShareMode(i), true
		}
	}
	return ShareNone, false
}

// ItemShareCategory is a per-category toggle for party item sharing.
type ItemShareCategory int32

const (
	ItemShareLoot ItemShareCategory = iota
	ItemShareMining
	ItemShareHerbalism
	ItemShareWoodcutting
	ItemShareMisc

	itemShareCategoryCount
)

var itemShareCategoryNames = [itemShareCategoryCount]string{
	"loot", "mining", "herbalism", "woodcutting", "misc",
}

// String returns the lowercase category name.
func (c ItemShareCategory) String() string {
	if c < 0 || c >= itemShareCategoryCount {
		return fmt.Sprintf("category(%d)", int32(c))
	}
	return itemShareCategoryNames[c]
}

// ParseItemShareCategory resolves a category by name (case-insensitive).
func ParseItemShareCategory(name string) (ItemShareCategory, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range itemShareCategoryNames {
		if n == lower {
			return ItemShareCategory(i), true
		}
	}
	return 0, false
}

// ItemShareCategories returns every category in declaration order.
func ItemShareCategories() []ItemShareCategory {
	all := make([]ItemShareCategory, 0, int(itemShareCategoryCount))
	for c := ItemShareCategory(0); c < itemShareCategoryCount; c++ {
		all = append(all, c)
	}
	return all
}

// PartyMember is a (stable id, display name) pair. Value type.
type PartyMember struct {
	ID   uuid.UUID
	Name string
}

// Party represents a named group of players sharing XP/loot policy.
// Thread-safe: all methods acquire the internal mutex.
//
// The alliance link is symmetric; symmetry is maintained by the party
// directory, which owns both sides of every link.
type Party struct {
	mu sync.RWMutex

	name   string // unique, case-insensitive
	leader PartyMember
	// members holds every member including the leader; insertion order
	// is join order and drives leadership succession.
	members []PartyMember

	locked       bool
	passwordHash string // bcrypt hash, empty when password-free

	ally *Party

	xpShare   ShareMode
	itemShare ShareMode
	itemCats  map[ItemShareCategory]bool

	// Party-level progression, a separate pool from member XP.
	level int32
	xp    float64
}

// NewParty creates a party with the given leader as sole member.
func NewParty(name string, leader PartyMember) *Party {
	p := &Party{
		name:     name,
		leader:   leader,
		members:  make([]PartyMember, 0, 8),
		itemCats: make(map[ItemShareCategory]bool, int(itemShareCategoryCount)),
	}
	p.members = append(p.members, leader)
	for _, c := range ItemShareCategories() {
		p.itemCats[c] = true
	}
	return p
}

// Name returns the immutable party name.
func (p *Party) Name() string {
	return p.name
}

// Leader returns the current leader.
func (p *Party) Leader() PartyMember {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.leader
}

// SetLeader hands leadership to an existing member.
func (p *Party) SetLeader(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.members {
		if m.ID == id {
			p.leader = m
			return true
		}
	}
	return false
}

// Members returns a snapshot copy of the roster in join order.
func (p *Party) Members() []PartyMember {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PartyMember, len(p.members))
	copy(out, p.members)
	return out
}

// MemberCount returns the roster size.
func (p *Party) MemberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}

// IsMember reports whether the player is in this party.
func (p *Party) IsMember(id uuid.UUID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// IsLeader reports whether the player leads this party.
func (p *Party) IsLeader(id uuid.UUID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.leader.ID == id
}

// AddMember appends a player to the roster.
// Returns an error if the player is already a member.
func (p *Party) AddMember(member PartyMember) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.members {
		if m.ID == member.ID {
			return fmt.Errorf("player %s already in party %s", member.Name, p.name)
		}
	}
	p.members = append(p.members, member)
	return nil
}

// RemoveMember removes a player from the roster. If the leader leaves
// and members remain, the earliest-joined remaining member is promoted.
// Returns (removed, empty).
func (p *Party) RemoveMember(id uuid.UUID) (removed, empty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := -1
	for i, m := range p.members {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, len(p.members) == 0
	}

	// Stable order: join order drives succession and loot rotation.
	p.members = append(p.members[:idx], p.members[idx+1:]...)

	if p.leader.ID == id && len(p.members) > 0 {
		p.leader = p.members[0]
	}
	return true, len(p.members) == 0
}

// RefreshMemberName updates a member's display name in place.
func (p *Party) RefreshMemberName(id uuid.UUID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, m := range p.members {
		if m.ID == id {
			p.members[i].Name = name
			if p.leader.ID == id {
				p.leader.Name = name
			}
			return
		}
	}
}

// Locked reports whether the party requires an invite or password to join.
func (p *Party) Locked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.locked
}

// SetLocked toggles the lock state.
func (p *Party) SetLocked(locked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = locked
}

// PasswordHash returns the stored bcrypt hash, empty when password-free.
func (p *Party) PasswordHash() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.passwordHash
}

// SetPasswordHash stores a bcrypt hash; an empty hash clears the
// password while leaving the lock state untouched.
func (p *Party) SetPasswordHash(hash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwordHash = hash
}

// Ally returns the allied party, nil when unallied.
func (p *Party) Ally() *Party {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ally
}

// SetAlly sets this side of an alliance link. The directory is
// responsible for keeping the link symmetric.
func (p *Party) SetAlly(other *Party) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ally = other
}

// XPShareMode returns the XP sharing policy.
func (p *Party) XPShareMode() ShareMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.xpShare
}

// SetXPShareMode sets the XP sharing policy.
func (p *Party) SetXPShareMode(m ShareMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.xpShare = m
}

// ItemShareMode returns the item sharing policy.
func (p *Party) ItemShareMode() ShareMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.itemShare
}

// SetItemShareMode sets the item sharing policy.
func (p *Party) SetItemShareMode(m ShareMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.itemShare = m
}

// SharingCategory reports whether an item category participates in sharing.
func (p *Party) SharingCategory(c ItemShareCategory) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.itemCats[c]
}

// SetSharingCategory toggles one item category.
func (p *Party) SetSharingCategory(c ItemShareCategory, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.itemCats[c] = enabled
}

// Progress returns the party's own (level, xp) pool.
func (p *Party) Progress() (int32, float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level, p.xp
}

// SetProgress commits a consistent party (level, xp) pair.
func (p *Party) SetProgress(level int32, xp float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if level < 0 {
		level = 0
	}
	if xp < 0 {
		xp = 0
	}
	p.level = level
	p.xp = xp
}

// PartySnapshot is a plain serializable copy of a party. The alliance is
// recorded by name and resolved in a second pass after all parties load.
type PartySnapshot struct {
	Name         string
	Leader       PartyMember
	Members      []PartyMember
	Locked       bool
	PasswordHash string
	AllyName     string
	XPShare      ShareMode
	ItemShare    ShareMode
	ItemCats     map[ItemShareCategory]bool
	Level        int32
	XP           float64
}

// Snapshot copies the party state under the lock.
func (p *Party) Snapshot() PartySnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := PartySnapshot{
		Name:         p.name,
		Leader:       p.leader,
		Members:      make([]PartyMember, len(p.members)),
		Locked:       p.locked,
		PasswordHash: p.passwordHash,
		XPShare:      p.xpShare,
		ItemShare:    p.itemShare,
		ItemCats:     make(map[ItemShareCategory]bool, len(p.itemCats)),
		Level:        p.level,
		XP:           p.xp,
	}
	copy(snap.Members, p.members)
	if p.ally != nil {
		snap.AllyName = p.ally.name
	}
	for c, on := range p.itemCats {
		snap.ItemCats[c] = on
	}
	return snap
}

// PartyFromSnapshot reconstructs a party without its alliance link;
// the caller resolves AllyName once all parties are loaded.
func PartyFromSnapshot(snap PartySnapshot) *Party {
	leader := snap.Leader
	if leader.ID == uuid.Nil && len(snap.Members) > 0 {
		leader = snap.Members[0]
	}
	p := NewParty(snap.Name, leader)
	p.members = p.members[:0]
	for _, m := range snap.Members {
		p.members = append(p.members, m)
	}
	if len(p.members) == 0 {
		p.members = append(p.members, leader)
	}
	p.locked = snap.Locked
	p.passwordHash = snap.PasswordHash
	p.xpShare = snap.XPShare
	p.itemShare = snap.ItemShare
	for c, on := range snap.ItemCats {
		p.itemCats[c] = on
	}
	p.level = snap.Level
	if p.level < 0 {
		p.level = 0
	}
	p.xp = snap.XP
	if p.xp < 0 {
		p.xp = 0
	}
	return p
}
