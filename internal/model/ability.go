package model

import (
	"fmt"
	"strings"
)

// AbilityType identifies one level-gated special ability.
// Every ability belongs to exactly one root skill.
type AbilityType int32

const (
	AbilitySuperBreaker AbilityType = iota
	AbilityBlastMining
	AbilityTreeFeller
	AbilityGreenTerra
	AbilityGigaDrillBreaker
	AbilityBerserk
	AbilitySerratedStrikes
	AbilitySkullSplitter

	abilityCount
)

var abilityNames = [abilityCount]string{
	"super_breaker", "blast_mining", "tree_feller", "green_terra",
	"giga_drill_breaker", "berserk", "serrated_strikes", "skull_splitter",
}

var abilitySkills = [abilityCount]SkillType{
	SkillMining, SkillMining, SkillWoodcutting, SkillHerbalism,
	SkillExcavation, SkillUnarmed, SkillSwords, SkillAxes,
}

// String returns the lowercase ability name.
func (a AbilityType) String() string {
	if !a.Valid() {
		return fmt.Sprintf("ability(%d)", int32(a))
	}
	return abilityNames[a]
}

// Valid reports whether a is a known ability.
func (a AbilityType) Valid() bool {
	return a >= 0 && a < abilityCount
}

// Skill returns the root skill this ability belongs to.
func (a AbilityType) Skill() SkillType {
	if !a.Valid() {
		return -1
	}
	return abilitySkills[a]
}

// AllAbilities returns every ability in declaration order.
func AllAbilities() []AbilityType {
	all := make([]AbilityType, 0, int(abilityCount))
	for a := AbilityType(0); a < abilityCount; a++ {
		all = append(all, a)
	}
	return all
}

// ParseAbility resolves an ability by name (case-insensitive).
func ParseAbility(name string) (AbilityType, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range abilityNames {
		if n == lower {
			return AbilityType(i), true
		}
	}
	return 0, false
}
