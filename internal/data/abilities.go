package data

import "github.com/voxmmo/voxmmo/internal/model"

// baseCooldownSeconds holds the base reuse delay per ability, before
// permission-tier reductions. Index = AbilityType.
var baseCooldownSeconds = map[model.AbilityType]int32{
	model.AbilitySuperBreaker:     240,
	model.AbilityBlastMining:      60,
	model.AbilityTreeFeller:       240,
	model.AbilityGreenTerra:       240,
	model.AbilityGigaDrillBreaker: 240,
	model.AbilityBerserk:          240,
	model.AbilitySerratedStrikes:  240,
	model.AbilitySkullSplitter:    240,
}

// BaseCooldownSeconds returns the base cooldown for an ability.
// Returns 0 for unknown abilities.
func BaseCooldownSeconds(ability model.AbilityType) int32 {
	return baseCooldownSeconds[ability]
}

// unlockLevels holds the level at which each ability becomes usable.
var unlockLevels = map[model.AbilityType]int32{
	model.AbilitySuperBreaker:     5,
	model.AbilityBlastMining:      125,
	model.AbilityTreeFeller:       5,
	model.AbilityGreenTerra:       5,
	model.AbilityGigaDrillBreaker: 5,
	model.AbilityBerserk:          5,
	model.AbilitySerratedStrikes:  5,
	model.AbilitySkullSplitter:    5,
}

// UnlockLevel returns the skill level required to use an ability.
func UnlockLevel(ability model.AbilityType) int32 {
	return unlockLevels[ability]
}
