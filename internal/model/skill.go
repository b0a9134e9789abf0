package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for skill resolution, checked with errors.Is.
var (
	// ErrInvalidSkill — the supplied identifier does not resolve to any skill.
	ErrInvalidSkill = errors.New("invalid skill")
	// ErrChildSkill — XP/cooldown operation requested against a derived skill.
	ErrChildSkill = errors.New("operation not supported on child skill")
	// ErrInvalidAbility — the supplied identifier does not resolve to any ability.
	ErrInvalidAbility = errors.New("invalid ability")
	// ErrAbilityLocked — the player's skill level is below the ability's unlock level.
	ErrAbilityLocked = errors.New("ability not unlocked")
)

// SkillType identifies one skill category.
// Root skills carry their own level/XP; child skills derive their level
// from parent root skills and never store XP.
type SkillType int32

const (
	SkillMining SkillType = iota
	SkillWoodcutting
	SkillHerbalism
	SkillExcavation
	SkillFishing
	SkillUnarmed
	SkillArchery
	SkillSwords
	SkillAxes
	SkillTaming
	SkillRepair
	SkillAcrobatics
	SkillAlchemy

	// Child skills below this marker.
	SkillSmelting
	SkillSalvage

	skillCount
)

// childSkillStart is the first child skill value.
const childSkillStart = SkillSmelting

// childParents maps each child skill to the root skills its level is derived from.
var childParents = map[SkillType][]SkillType{
	SkillSmelting: {SkillMining, SkillRepair},
	SkillSalvage:  {SkillFishing, SkillRepair},
}

var skillNames = [skillCount]string{
	"mining", "woodcutting", "herbalism", "excavation", "fishing",
	"unarmed", "archery", "swords", "axes", "taming", "repair",
	"acrobatics", "alchemy", "smelting", "salvage",
}

// String returns the lowercase skill name.
func (s SkillType) String() string {
	if s < 0 || s >= skillCount {
		return fmt.Sprintf("skill(%d)", int32(s))
	}
	return skillNames[s]
}

// Valid reports whether s is a known skill.
func (s SkillType) Valid() bool {
	return s >= 0 && s < skillCount
}

// IsChild reports whether s is a derived skill.
func (s SkillType) IsChild() bool {
	return s >= childSkillStart && s < skillCount
}

// Parents returns the root skills a child skill derives from (nil for roots).
func (s SkillType) Parents() []SkillType {
	return childParents[s]
}

// RootSkills returns all root skills in declaration order.
func RootSkills() []SkillType {
	roots := make([]SkillType, 0, int(childSkillStart))
	for s := SkillType(0); s < childSkillStart; s++ {
		roots = append(roots, s)
	}
	return roots
}

// AllSkills returns every skill, roots first.
func AllSkills() []SkillType {
	all := make([]SkillType, 0, int(skillCount))
	for s := SkillType(0); s < skillCount; s++ {
		all = append(all, s)
	}
	return all
}

// ParseSkill resolves a skill by name (case-insensitive).
// Returns ErrInvalidSkill if the name does not match any skill.
func ParseSkill(name string) (SkillType, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range skillNames {
		if n == lower {
			return SkillType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSkill, name)
}

// ChildAggregation selects how a child skill's level is computed from its parents.
type ChildAggregation int32

const (
	// ChildAverage — arithmetic mean of parent levels (rounded down).
	ChildAverage ChildAggregation = iota
	// ChildMin — minimum of parent levels.
	ChildMin
)

// AggregateChildLevel computes a child skill level from parent levels.
func AggregateChildLevel(agg ChildAggregation, parentLevels []int32) int32 {
	if len(parentLevels) == 0 {
		return 0
	}
	switch agg {
	case ChildMin:
		min := parentLevels[0]
		for _, l := range parentLevels[1:] {
			if l < min {
				min = l
			}
		}
		return min
	default:
		var sum int64
		for _, l := range parentLevels {
			sum += int64(l)
		}
		return int32(sum / int64(len(parentLevels)))
	}
}
