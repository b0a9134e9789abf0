// Package party manages the collection of all parties: creation,
// membership workflows, alliances, persistence round-trips and
// cross-party queries.
package party

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/voxmmo/voxmmo/internal/clock"
	"github.com/voxmmo/voxmmo/internal/event"
	"github.com/voxmmo/voxmmo/internal/model"
	"github.com/voxmmo/voxmmo/internal/notify"
)

// Sentinel errors surfaced to the command/API layer.
var (
	ErrPartyExists    = errors.New("party already exists")
	ErrPartyNotFound  = errors.New("party not found")
	ErrAlreadyInParty = errors.New("already in a party")
	ErrNotInParty     = errors.New("not in a party")
	ErrNotLeader      = errors.New("not the party leader")
	ErrWrongPassword  = errors.New("wrong party password")
	ErrNoInvite       = errors.New("no pending invite")
	ErrCancelled      = errors.New("change cancelled")
	ErrEmptyName      = errors.New("party name empty after sanitation")
)

// Locator resolves an online player's position; ok=false for offline
// or unloaded players.
type Locator interface {
	Position(player uuid.UUID) (model.BlockPos, bool)
}

// Store persists the full party collection.
type Store interface {
	SaveParties(ctx context.Context, parties []model.PartySnapshot) error
	LoadParties(ctx context.Context) ([]model.PartySnapshot, error)
}

type memberInvite struct {
	party   *model.Party
	expires time.Time
}

type allyInvite struct {
	from    *model.Party
	expires time.Time
}

// Directory owns every party on the server.
// Thread-safe: all public entry points hold the directory lock.
type Directory struct {
	mu sync.RWMutex

	parties  map[string]*model.Party // key: lowercase name
	byMember map[uuid.UUID]*model.Party
	invites  map[uuid.UUID]memberInvite
	// allyInvites is keyed by the invited party's lowercase name and
	// pins the inviting party instance: a disband before acceptance
	// voids the invite.
	allyInvites map[string]allyInvite

	bus       event.Bus
	sink      notify.Sink
	locator   Locator
	clk       clock.Clock
	store     Store
	inviteTTL time.Duration
}

// NewDirectory creates an empty directory.
func NewDirectory(bus event.Bus, sink notify.Sink, locator Locator, clk clock.Clock, store Store, inviteTTL time.Duration) *Directory {
	return &Directory{
		parties:     make(map[string]*model.Party),
		byMember:    make(map[uuid.UUID]*model.Party),
		invites:     make(map[uuid.UUID]memberInvite),
		allyInvites: make(map[string]allyInvite),
		bus:         bus,
		sink:        sink,
		locator:     locator,
		clk:         clk,
		store:       store,
		inviteTTL:   inviteTTL,
	}
}

// SanitizeName strips periods, record delimiters, and surrounding
// whitespace from a requested party name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, ".", "")
	name = strings.ReplaceAll(name, "|", "")
	return strings.TrimSpace(name)
}

// Create registers a new party with the actor as leader and sole
// member. The name is sanitized and must be unique (case-insensitive).
func (d *Directory) Create(actor model.PartyMember, name, password string) (*model.Party, error) {
	name = SanitizeName(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byMember[actor.ID]; ok {
		return nil, ErrAlreadyInParty
	}
	key := strings.ToLower(name)
	if _, ok := d.parties[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPartyExists, name)
	}

	if d.bus.Publish(event.PartyChange{Player: actor.ID, Party: name, Kind: event.PartyCreate}) {
		return nil, ErrCancelled
	}

	p := model.NewParty(name, actor)
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing party password: %w", err)
		}
		p.SetPasswordHash(string(hash))
		p.SetLocked(true)
	}
	d.parties[key] = p
	d.byMember[actor.ID] = p
	slog.Info("party created", "party", name, "leader", actor.Name)
	return p, nil
}

// Join adds the actor to a named party. A stored password must match;
// a locked password-free party warns the joiner but admits them.
func (d *Directory) Join(actor model.PartyMember, name, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.parties[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPartyNotFound, name)
	}
	if _, ok := d.byMember[actor.ID]; ok {
		return ErrAlreadyInParty
	}
	if hash := p.PasswordHash(); hash != "" {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			return ErrWrongPassword
		}
	} else if p.Locked() {
		d.sink.Send(actor.ID, fmt.Sprintf("Party %s is locked but has no password set.", p.Name()))
	}
	return d.admitLocked(actor, p)
}

// InviteMember records a join invite from the party leader. The invite
// expires after the configured TTL.
func (d *Directory) InviteMember(leader uuid.UUID, target model.PartyMember) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.byMember[leader]
	if !ok {
		return ErrNotInParty
	}
	if !p.IsLeader(leader) {
		return ErrNotLeader
	}
	d.invites[target.ID] = memberInvite{party: p, expires: d.clk.Now().Add(d.inviteTTL)}
	d.sink.Send(target.ID, fmt.Sprintf("You were invited to party %s.", p.Name()))
	return nil
}

// AcceptInvite joins the actor to the inviting party, bypassing the
// password. An invite to a party disbanded in the meantime silently
// no-ops with a notice.
func (d *Directory) AcceptInvite(actor model.PartyMember) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	inv, ok := d.invites[actor.ID]
	if !ok {
		return ErrNoInvite
	}
	delete(d.invites, actor.ID)
	if d.clk.Now().After(inv.expires) {
		return ErrNoInvite
	}
	if d.parties[strings.ToLower(inv.party.Name())] != inv.party {
		d.sink.Send(actor.ID, fmt.Sprintf("Party %s has been disbanded.", inv.party.Name()))
		return nil
	}
	if _, ok := d.byMember[actor.ID]; ok {
		return ErrAlreadyInParty
	}
	return d.admitLocked(actor, inv.party)
}

// admitLocked runs the event-gated join path. Caller holds d.mu.
func (d *Directory) admitLocked(actor model.PartyMember, p *model.Party) error {
	if d.bus.Publish(event.PartyChange{Player: actor.ID, Party: p.Name(), Kind: event.PartyJoin}) {
		return ErrCancelled
	}
	if err := p.AddMember(actor); err != nil {
		return err
	}
	d.byMember[actor.ID] = p
	d.notifyOthersLocked(p, actor.ID, fmt.Sprintf("%s joined the party.", actor.Name))
	return nil
}

// Leave removes the actor from their party. Leadership passes to the
// earliest-joined remaining member; an emptied party is unregistered
// and any alliance severed.
func (d *Directory) Leave(actor uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removeLocked(actor, event.PartyLeave)
}

// Kick removes a member on the leader's request.
func (d *Directory) Kick(leader, target uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.byMember[leader]
	if !ok {
		return ErrNotInParty
	}
	if !p.IsLeader(leader) {
		return ErrNotLeader
	}
	if d.byMember[target] != p {
		return fmt.Errorf("%w: target not in this party", ErrNotInParty)
	}
	return d.removeLocked(target, event.PartyKick)
}

func (d *Directory) removeLocked(actor uuid.UUID, kind event.PartyChangeKind) error {
	p, ok := d.byMember[actor]
	if !ok {
		return ErrNotInParty
	}
	if d.bus.Publish(event.PartyChange{Player: actor, Party: p.Name(), Kind: kind}) {
		return ErrCancelled
	}

	var name string
	for _, m := range p.Members() {
		if m.ID == actor {
			name = m.Name
			break
		}
	}
	wasLeader := p.IsLeader(actor)
	_, empty := p.RemoveMember(actor)
	delete(d.byMember, actor)

	if empty {
		d.unregisterLocked(p)
		return nil
	}
	d.notifyOthersLocked(p, actor, fmt.Sprintf("%s left the party.", name))
	if wasLeader {
		leader := p.Leader()
		d.sink.Send(leader.ID, "You are now the party leader.")
	}
	return nil
}

// Disband forces every member through the leave-processing path, severs
// any alliance and removes the party from the directory.
func (d *Directory) Disband(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.parties[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPartyNotFound, name)
	}
	if d.bus.Publish(event.PartyChange{Player: p.Leader().ID, Party: p.Name(), Kind: event.PartyDisband}) {
		return ErrCancelled
	}
	for _, m := range p.Members() {
		delete(d.byMember, m.ID)
		d.sink.Send(m.ID, fmt.Sprintf("Party %s has been disbanded.", p.Name()))
	}
	d.unregisterLocked(p)
	return nil
}

// unregisterLocked removes a party from the directory and nulls any
// alliance symmetrically. Caller holds d.mu.
func (d *Directory) unregisterLocked(p *model.Party) {
	if ally := p.Ally(); ally != nil {
		ally.SetAlly(nil)
		p.SetAlly(nil)
		d.sink.Send(ally.Leader().ID, fmt.Sprintf("Your alliance with %s ended: the party was disbanded.", p.Name()))
	}
	delete(d.parties, strings.ToLower(p.Name()))
	delete(d.allyInvites, strings.ToLower(p.Name()))
	slog.Info("party removed", "party", p.Name())
}

// InviteAlly records an alliance invite from the actor's party to a
// named party. The invite is tied to the inviting party instance.
func (d *Directory) InviteAlly(actor uuid.UUID, targetName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	from, ok := d.byMember[actor]
	if !ok {
		return ErrNotInParty
	}
	if !from.IsLeader(actor) {
		return ErrNotLeader
	}
	key := strings.ToLower(targetName)
	target, ok := d.parties[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPartyNotFound, targetName)
	}
	if target == from {
		return fmt.Errorf("cannot ally party %s with itself", from.Name())
	}
	d.allyInvites[key] = allyInvite{from: from, expires: d.clk.Now().Add(d.inviteTTL)}
	d.sink.Send(target.Leader().ID, fmt.Sprintf("Party %s proposes an alliance.", from.Name()))
	return nil
}

// AcceptAlly forms the alliance proposed to the actor's party. If the
// inviting party was disbanded before acceptance, this silently no-ops
// with a "disbanded" notice.
func (d *Directory) AcceptAlly(actor uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.byMember[actor]
	if !ok {
		return ErrNotInParty
	}
	if !p.IsLeader(actor) {
		return ErrNotLeader
	}
	key := strings.ToLower(p.Name())
	inv, ok := d.allyInvites[key]
	if !ok {
		return ErrNoInvite
	}
	delete(d.allyInvites, key)
	if d.clk.Now().After(inv.expires) {
		return ErrNoInvite
	}
	if d.parties[strings.ToLower(inv.from.Name())] != inv.from {
		d.sink.Send(actor, fmt.Sprintf("Party %s has been disbanded.", inv.from.Name()))
		return nil
	}

	if d.bus.Publish(event.AllianceChange{Party: inv.from.Name(), Other: p.Name(), Formed: true}) {
		return ErrCancelled
	}
	// An alliance links exactly two parties: sever any existing links first.
	d.severLocked(inv.from)
	d.severLocked(p)
	inv.from.SetAlly(p)
	p.SetAlly(inv.from)
	slog.Info("alliance formed", "party", inv.from.Name(), "other", p.Name())
	return nil
}

// BreakAlliance dissolves the actor's party's alliance symmetrically.
func (d *Directory) BreakAlliance(actor uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.byMember[actor]
	if !ok {
		return ErrNotInParty
	}
	if !p.IsLeader(actor) {
		return ErrNotLeader
	}
	ally := p.Ally()
	if ally == nil {
		return fmt.Errorf("party %s has no alliance", p.Name())
	}
	if d.bus.Publish(event.AllianceChange{Party: p.Name(), Other: ally.Name(), Formed: false}) {
		return ErrCancelled
	}
	d.severLocked(p)
	return nil
}

func (d *Directory) severLocked(p *model.Party) {
	if ally := p.Ally(); ally != nil {
		ally.SetAlly(nil)
		p.SetAlly(nil)
	}
}

// Party returns a party by name, nil when unknown.
func (d *Directory) Party(name string) *model.Party {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.parties[strings.ToLower(name)]
}

// PartyOf returns the party a player belongs to, nil when partyless.
func (d *Directory) PartyOf(player uuid.UUID) *model.Party {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byMember[player]
}

// InSameParty reports whether two players share a party. Offline or
// partyless players yield false, never an error.
func (d *Directory) InSameParty(a, b uuid.UUID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pa := d.byMember[a]
	return pa != nil && pa == d.byMember[b]
}

// AreAllies reports whether two players belong to allied parties.
func (d *Directory) AreAllies(a, b uuid.UUID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pa, pb := d.byMember[a], d.byMember[b]
	return pa != nil && pb != nil && pa.Ally() == pb && pa != pb
}

// NearMembers returns the actor's online party members within radius
// blocks, excluding the actor. Offline members and an offline actor
// yield an empty slice.
func (d *Directory) NearMembers(actor uuid.UUID, radius int32) []model.PartyMember {
	d.mu.RLock()
	p := d.byMember[actor]
	d.mu.RUnlock()
	if p == nil {
		return nil
	}
	center, ok := d.locator.Position(actor)
	if !ok {
		return nil
	}
	radiusSq := int64(radius) * int64(radius)

	var near []model.PartyMember
	for _, m := range p.Members() {
		if m.ID == actor {
			continue
		}
		pos, ok := d.locator.Position(m.ID)
		if !ok {
			continue
		}
		if radius <= 0 || center.DistanceSquared(pos) <= radiusSq {
			near = append(near, m)
		}
	}
	return near
}

// notifyOthersLocked messages every member except the subject.
func (d *Directory) notifyOthersLocked(p *model.Party, subject uuid.UUID, message string) {
	for _, m := range p.Members() {
		if m.ID != subject {
			d.sink.Send(m.ID, message)
		}
	}
}

// Save writes the full party collection through the store.
func (d *Directory) Save(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	d.mu.RLock()
	snaps := make([]model.PartySnapshot, 0, len(d.parties))
	for _, p := range d.parties {
		snaps = append(snaps, p.Snapshot())
	}
	d.mu.RUnlock()

	if err := d.store.SaveParties(ctx, snaps); err != nil {
		return fmt.Errorf("saving %d parties: %w", len(snaps), err)
	}
	return nil
}

// Load replaces the directory contents from the store. Alliance links
// are resolved in a second pass once every party is registered, so
// forward references by name work regardless of file order.
func (d *Directory) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	snaps, err := d.store.LoadParties(ctx)
	if err != nil {
		return fmt.Errorf("loading parties: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.parties = make(map[string]*model.Party, len(snaps))
	d.byMember = make(map[uuid.UUID]*model.Party)

	allyNames := make(map[string]string)
	for _, snap := range snaps {
		key := strings.ToLower(snap.Name)
		if key == "" {
			slog.Warn("skipping party with empty name")
			continue
		}
		if _, dup := d.parties[key]; dup {
			slog.Warn("skipping duplicate party record", "party", snap.Name)
			continue
		}
		p := model.PartyFromSnapshot(snap)
		d.parties[key] = p
		for _, m := range p.Members() {
			d.byMember[m.ID] = p
		}
		if snap.AllyName != "" {
			allyNames[key] = strings.ToLower(snap.AllyName)
		}
	}

	// Second pass: resolve alliances symmetrically.
	for key, allyKey := range allyNames {
		p, a := d.parties[key], d.parties[allyKey]
		if p == nil || a == nil || p == a {
			slog.Warn("dropping unresolvable alliance", "party", key, "ally", allyKey)
			continue
		}
		if p.Ally() != nil || (a.Ally() != nil && a.Ally() != p) {
			slog.Warn("dropping conflicting alliance", "party", key, "ally", allyKey)
			continue
		}
		p.SetAlly(a)
		a.SetAlly(p)
	}

	slog.Info("parties loaded", "count", len(d.parties))
	return nil
}

// Count returns the number of registered parties.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.parties)
}
