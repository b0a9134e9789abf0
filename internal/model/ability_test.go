package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbility(t *testing.T) {
	a, ok := ParseAbility("Super_Breaker")
	require.True(t, ok)
	assert.Equal(t, AbilitySuperBreaker, a)

	_, ok = ParseAbility("mega_drill")
	assert.False(t, ok)
}

func TestAbilityType_Skill(t *testing.T) {
	assert.Equal(t, SkillMining, AbilitySuperBreaker.Skill())
	assert.Equal(t, SkillMining, AbilityBlastMining.Skill())
	assert.Equal(t, SkillWoodcutting, AbilityTreeFeller.Skill())
	assert.Equal(t, SkillAxes, AbilitySkullSplitter.Skill())
	assert.Equal(t, SkillType(-1), AbilityType(99).Skill())
}

func TestAllAbilities_HaveRootSkills(t *testing.T) {
	for _, a := range AllAbilities() {
		assert.True(t, a.Valid())
		assert.False(t, a.Skill().IsChild(), "ability %s belongs to a child skill", a)
	}
}
