// Package skill handles ability activation gating: per-player
// per-ability cooldowns with permission-tier reductions.
package skill

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/voxmmo/voxmmo/internal/clock"
	"github.com/voxmmo/voxmmo/internal/data"
	"github.com/voxmmo/voxmmo/internal/model"
	"github.com/voxmmo/voxmmo/internal/perms"
)

// ProfileSource resolves an online profile, nil when not loaded.
type ProfileSource interface {
	Get(player uuid.UUID) *model.PlayerProfile
}

// CooldownTracker computes ability cooldowns. The deactivation
// timestamp lives on the player profile (and persists with it); the
// tracker derives remaining time from it, never stores it.
type CooldownTracker struct {
	clock    clock.Clock
	perms    perms.Oracle
	profiles ProfileSource
}

// NewCooldownTracker creates a tracker over the given collaborators.
func NewCooldownTracker(c clock.Clock, o perms.Oracle, profiles ProfileSource) *CooldownTracker {
	return &CooldownTracker{clock: c, perms: o, profiles: profiles}
}

// RecordActivation stamps the current time as the ability's
// deactivation reference: the cooldown counts from ability end.
// No-op when the player is not loaded.
func (t *CooldownTracker) RecordActivation(player uuid.UUID, ability model.AbilityType) error {
	if !ability.Valid() {
		return fmt.Errorf("%w: %d", model.ErrInvalidAbility, int32(ability))
	}
	profile := t.profiles.Get(player)
	if profile == nil {
		return nil
	}
	profile.SetCooldownEnd(ability, clock.NowMillis(t.clock))
	return nil
}

// RemainingSeconds returns how long until the ability is usable again,
// zero when ready or when the player is not loaded.
func (t *CooldownTracker) RemainingSeconds(player uuid.UUID, ability model.AbilityType) int32 {
	profile := t.profiles.Get(player)
	if profile == nil {
		return 0
	}
	end := profile.CooldownEnd(ability)
	if end == 0 {
		return 0
	}
	effective := t.EffectiveCooldownSeconds(player, ability)
	remainingMillis := end + int64(effective)*1000 - clock.NowMillis(t.clock)
	if remainingMillis <= 0 {
		return 0
	}
	// Round up: a partial second still blocks activation.
	return int32((remainingMillis + 999) / 1000)
}

// Activate gates an ability use on its unlock level and cooldown.
// Returns (0, true, nil) and stamps nothing when the ability is usable —
// callers record activation separately at ability end. A cooldown
// refusal returns the remaining seconds; a skill level below the
// unlock threshold returns ErrAbilityLocked. Unloaded players pass,
// matching the rest of the tracker.
func (t *CooldownTracker) Activate(player uuid.UUID, ability model.AbilityType) (int32, bool, error) {
	if !ability.Valid() {
		return 0, false, fmt.Errorf("%w: %d", model.ErrInvalidAbility, int32(ability))
	}
	if profile := t.profiles.Get(player); profile != nil {
		need := data.UnlockLevel(ability)
		if profile.SkillLevel(ability.Skill()) < need {
			return 0, false, fmt.Errorf("%w: %s requires %s level %d",
				model.ErrAbilityLocked, ability, ability.Skill(), need)
		}
	}
	remaining := t.RemainingSeconds(player, ability)
	if remaining > 0 {
		return remaining, false, nil
	}
	return 0, true, nil
}

// EffectiveCooldownSeconds is the base cooldown reduced by the player's
// best cooldown-reduction tier. Tiers never compound: the smallest
// resulting value wins.
func (t *CooldownTracker) EffectiveCooldownSeconds(player uuid.UUID, ability model.AbilityType) int32 {
	base := data.BaseCooldownSeconds(ability)
	factor := perms.BestCooldownFactor(t.perms, player)
	return int32(float64(base) * factor)
}

// Reset zeroes all ability timestamps for the player (profile reload /
// administrative reset). No-op when the player is not loaded.
func (t *CooldownTracker) Reset(player uuid.UUID) {
	if profile := t.profiles.Get(player); profile != nil {
		profile.ResetCooldowns()
	}
}
