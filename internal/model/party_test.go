package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(name string) PartyMember {
	return PartyMember{ID: uuid.New(), Name: name}
}

func TestNewParty_LeaderIsMember(t *testing.T) {
	leader := member("Alice")
	p := NewParty("Alpha", leader)

	assert.Equal(t, "Alpha", p.Name())
	assert.Equal(t, leader, p.Leader())
	assert.True(t, p.IsMember(leader.ID))
	assert.True(t, p.IsLeader(leader.ID))
	assert.Equal(t, 1, p.MemberCount())
}

func TestParty_AddMember_Duplicate(t *testing.T) {
	leader := member("Alice")
	p := NewParty("Alpha", leader)

	bob := member("Bob")
	require.NoError(t, p.AddMember(bob))
	assert.Error(t, p.AddMember(bob))
	assert.Equal(t, 2, p.MemberCount())
}

func TestParty_RemoveMember_Succession(t *testing.T) {
	leader := member("Alice")
	bob := member("Bob")
	carol := member("Carol")

	p := NewParty("Alpha", leader)
	require.NoError(t, p.AddMember(bob))
	require.NoError(t, p.AddMember(carol))

	removed, empty := p.RemoveMember(leader.ID)
	assert.True(t, removed)
	assert.False(t, empty)
	assert.Equal(t, bob, p.Leader(), "earliest-joined member inherits leadership")

	removed, empty = p.RemoveMember(bob.ID)
	assert.True(t, removed)
	assert.False(t, empty)
	assert.Equal(t, carol, p.Leader())

	removed, empty = p.RemoveMember(carol.ID)
	assert.True(t, removed)
	assert.True(t, empty)
}

func TestParty_RemoveMember_NonLeaderKeepsLeader(t *testing.T) {
	leader := member("Alice")
	bob := member("Bob")
	p := NewParty("Alpha", leader)
	require.NoError(t, p.AddMember(bob))

	removed, empty := p.RemoveMember(bob.ID)
	assert.True(t, removed)
	assert.False(t, empty)
	assert.Equal(t, leader, p.Leader())

	removed, _ = p.RemoveMember(bob.ID)
	assert.False(t, removed, "removing an absent member is a no-op")
}

func TestParty_SetAlly(t *testing.T) {
	alpha := NewParty("Alpha", member("Alice"))
	beta := NewParty("Beta", member("Bob"))

	alpha.SetAlly(beta)
	beta.SetAlly(alpha)
	assert.Same(t, beta, alpha.Ally())
	assert.Same(t, alpha, beta.Ally())

	alpha.SetAlly(nil)
	assert.Nil(t, alpha.Ally())
}

func TestParty_Progress_Clamps(t *testing.T) {
	p := NewParty("Alpha", member("Alice"))

	p.SetProgress(3, 120.5)
	level, xp := p.Progress()
	assert.Equal(t, int32(3), level)
	assert.Equal(t, 120.5, xp)

	p.SetProgress(-1, -5)
	level, xp = p.Progress()
	assert.Zero(t, level)
	assert.Zero(t, xp)
}

func TestParty_SnapshotRoundTrip(t *testing.T) {
	leader := member("Alice")
	bob := member("Bob")
	p := NewParty("Alpha", leader)
	require.NoError(t, p.AddMember(bob))
	p.SetLocked(true)
	p.SetPasswordHash("$2a$10$hash")
	p.SetXPShareMode(ShareEqual)
	p.SetItemShareMode(ShareRandom)
	p.SetSharingCategory(ItemShareMining, true)
	p.SetProgress(2, 50)

	ally := NewParty("Beta", member("Carol"))
	p.SetAlly(ally)

	snap := p.Snapshot()
	assert.Equal(t, "Beta", snap.AllyName)

	got := PartyFromSnapshot(snap)
	assert.Equal(t, "Alpha", got.Name())
	assert.Equal(t, leader, got.Leader())
	assert.Equal(t, []PartyMember{leader, bob}, got.Members())
	assert.True(t, got.Locked())
	assert.Equal(t, "$2a$10$hash", got.PasswordHash())
	assert.Equal(t, ShareEqual, got.XPShareMode())
	assert.Equal(t, ShareRandom, got.ItemShareMode())
	assert.True(t, got.SharingCategory(ItemShareMining))
	assert.False(t, got.SharingCategory(ItemShareLoot))
	level, xp := got.Progress()
	assert.Equal(t, int32(2), level)
	assert.Equal(t, float64(50), xp)
	assert.Nil(t, got.Ally(), "alliances resolve in a second pass")
}

func TestParseShareMode(t *testing.T) {
	m, ok := ParseShareMode("EQUAL")
	require.True(t, ok)
	assert.Equal(t, ShareEqual, m)

	_, ok = ParseShareMode("greedy")
	assert.False(t, ok)
}
