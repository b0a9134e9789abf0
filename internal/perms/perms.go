// Package perms defines the permission oracle consumed by the core and
// the documented capability-key mapping. Keys are fixed strings built
// here, never formatted inline at call sites.
package perms

import "github.com/google/uuid"

// Oracle answers capability queries. Pure, side-effect free, safe to
// call at high frequency.
type Oracle interface {
	Has(player uuid.UUID, capability string) bool
}

// Capability keys. One row per perk; the mapping below is the full
// naming convention for permission-granted modifiers.
const (
	// XP perk tiers — flat multipliers, highest held tier wins.
	CapXPQuadruple = "voxmmo.perks.xp.quadruple"
	CapXPTriple    = "voxmmo.perks.xp.triple"
	CapXPDouble    = "voxmmo.perks.xp.double"
	CapXPOneFifty  = "voxmmo.perks.xp.150percent"

	// Cooldown tiers — proportional reductions, lowest result wins.
	CapCooldownQuartered = "voxmmo.perks.cooldowns.quartered"
	CapCooldownThirded   = "voxmmo.perks.cooldowns.thirded"
	CapCooldownHalved    = "voxmmo.perks.cooldowns.halved"

	// Skill use gate, suffixed by skill name.
	capSkillPrefix = "voxmmo.skills."

	// Ability use gate, suffixed by ability name.
	capAbilityPrefix = "voxmmo.abilities."
)

// SkillKey returns the capability gating use of a skill.
func SkillKey(skill interface{ String() string }) string {
	return capSkillPrefix + skill.String()
}

// AbilityKey returns the capability gating use of an ability.
func AbilityKey(ability interface{ String() string }) string {
	return capAbilityPrefix + ability.String()
}

// xpTiers is ordered highest multiplier first; the first held tier is
// the single one applied — tiers do not stack.
var xpTiers = []struct {
	key        string
	multiplier float64
}{
	{CapXPQuadruple, 4.0},
	{CapXPTriple, 3.0},
	{CapXPDouble, 2.0},
	{CapXPOneFifty, 1.5},
}

// BestXPMultiplier returns the multiplier of the highest XP perk tier
// the player holds, 1.0 when none.
func BestXPMultiplier(o Oracle, player uuid.UUID) float64 {
	for _, t := range xpTiers {
		if o.Has(player, t.key) {
			return t.multiplier
		}
	}
	return 1.0
}

// cooldownTiers are mutually exclusive; the smallest resulting factor
// among held tiers is applied, never compounded.
var cooldownTiers = []struct {
	key    string
	factor float64
}{
	{CapCooldownQuartered, 0.25},
	{CapCooldownThirded, 1.0 / 3.0},
	{CapCooldownHalved, 0.5},
}

// BestCooldownFactor returns the smallest cooldown factor the player's
// held tiers produce, 1.0 when none.
func BestCooldownFactor(o Oracle, player uuid.UUID) float64 {
	best := 1.0
	for _, t := range cooldownTiers {
		if o.Has(player, t.key) && t.factor < best {
			best = t.factor
		}
	}
	return best
}

// AllowAll grants every capability. Test/default oracle.
type AllowAll struct{}

// Has always grants.
func (AllowAll) Has(uuid.UUID, string) bool { return true }

// DenyAll grants nothing. Test/default oracle.
type DenyAll struct{}

// Has always refuses.
func (DenyAll) Has(uuid.UUID, string) bool { return false }
