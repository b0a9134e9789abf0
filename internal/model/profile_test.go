package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProfile(t *testing.T, name string) *PlayerProfile {
	t.Helper()
	return NewPlayerProfile(uuid.New(), name, 0)
}

func TestNewPlayerProfile_StartLevel(t *testing.T) {
	p := NewPlayerProfile(uuid.New(), "Miner", 5)
	for _, s := range RootSkills() {
		assert.Equal(t, int32(5), p.SkillLevel(s))
		assert.Zero(t, p.SkillXP(s))
	}
}

func TestPlayerProfile_AddXP_ClampsAtZero(t *testing.T) {
	p := newTestProfile(t, "Miner")

	require.NoError(t, p.AddXP(SkillMining, 100))
	assert.Equal(t, float64(100), p.SkillXP(SkillMining))

	require.NoError(t, p.AddXP(SkillMining, -250))
	assert.Zero(t, p.SkillXP(SkillMining), "XP never goes negative")

	require.NoError(t, p.RemoveXP(SkillMining, 50))
	assert.Zero(t, p.SkillXP(SkillMining))
}

func TestPlayerProfile_AddXP_RejectsChildAndInvalid(t *testing.T) {
	p := newTestProfile(t, "Miner")

	err := p.AddXP(SkillSmelting, 10)
	assert.ErrorIs(t, err, ErrChildSkill)

	err = p.AddXP(SkillType(999), 10)
	assert.ErrorIs(t, err, ErrInvalidSkill)
}

func TestPlayerProfile_ModifySkill(t *testing.T) {
	p := newTestProfile(t, "Miner")
	require.NoError(t, p.AddXP(SkillMining, 42))

	require.NoError(t, p.ModifySkill(SkillMining, 10, 100))
	assert.Equal(t, int32(10), p.SkillLevel(SkillMining))
	assert.Zero(t, p.SkillXP(SkillMining), "ModifySkill resets pending XP")

	assert.Error(t, p.ModifySkill(SkillMining, -1, 100))
	assert.Error(t, p.ModifySkill(SkillMining, 101, 100))
	assert.ErrorIs(t, p.ModifySkill(SkillSmelting, 5, 100), ErrChildSkill)
	assert.Equal(t, int32(10), p.SkillLevel(SkillMining), "rejected calls leave state intact")
}

func TestPlayerProfile_ChildLevels(t *testing.T) {
	p := newTestProfile(t, "Miner")
	require.NoError(t, p.ModifySkill(SkillMining, 30, 100))
	require.NoError(t, p.ModifySkill(SkillRepair, 11, 100))

	assert.Equal(t, int32(20), p.SkillLevel(SkillSmelting), "average of 30 and 11, rounded down")

	p.SetChildAggregation(ChildMin)
	assert.Equal(t, int32(11), p.SkillLevel(SkillSmelting))

	// Children track parent changes live.
	require.NoError(t, p.ModifySkill(SkillRepair, 40, 100))
	assert.Equal(t, int32(30), p.SkillLevel(SkillSmelting))
}

func TestPlayerProfile_Dirty(t *testing.T) {
	p := newTestProfile(t, "Miner")
	assert.False(t, p.Dirty())

	require.NoError(t, p.AddXP(SkillMining, 1))
	assert.True(t, p.Dirty())

	p.ClearDirty()
	assert.False(t, p.Dirty())

	p.SetCooldownEnd(AbilitySuperBreaker, 12345)
	assert.True(t, p.Dirty())
}

func TestPlayerProfile_SnapshotRoundTrip(t *testing.T) {
	p := newTestProfile(t, "Miner")
	require.NoError(t, p.SetSkillState(SkillMining, 12, 345.5))
	require.NoError(t, p.SetSkillState(SkillFishing, 3, 10))
	p.SetCooldownEnd(AbilityBerserk, 99999)
	p.SetLastLogin(1700000000000)
	p.IncTipsShown()

	got := ProfileFromSnapshot(p.Snapshot(), 0)

	assert.Equal(t, p.ID(), got.ID())
	assert.Equal(t, "Miner", got.Name())
	assert.Equal(t, int32(12), got.SkillLevel(SkillMining))
	assert.Equal(t, 345.5, got.SkillXP(SkillMining))
	assert.Equal(t, int32(3), got.SkillLevel(SkillFishing))
	assert.Equal(t, int64(99999), got.CooldownEnd(AbilityBerserk))
	assert.Equal(t, int64(1700000000000), got.LastLogin())
	assert.Equal(t, int32(1), got.TipsShown())
}

func TestProfileFromSnapshot_MissingSkillsGetStartLevel(t *testing.T) {
	snap := ProfileSnapshot{
		ID:     uuid.New(),
		Name:   "Old",
		Levels: map[SkillType]int32{SkillMining: 7},
		XP:     map[SkillType]float64{SkillMining: 5},
	}
	p := ProfileFromSnapshot(snap, 2)

	assert.Equal(t, int32(7), p.SkillLevel(SkillMining))
	assert.Equal(t, int32(2), p.SkillLevel(SkillWoodcutting))
	assert.Zero(t, p.SkillXP(SkillWoodcutting))
}
