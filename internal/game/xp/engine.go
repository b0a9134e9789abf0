// Package xp orchestrates experience gains: the modifier pipeline,
// party sharing, cancellable intents and the level-up cascade.
//
// The engine never mutates ahead of an accepted intent: it computes the
// intended change, publishes it, and commits only on acceptance.
package xp

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voxmmo/voxmmo/internal/data"
	"github.com/voxmmo/voxmmo/internal/event"
	"github.com/voxmmo/voxmmo/internal/model"
	"github.com/voxmmo/voxmmo/internal/notify"
	"github.com/voxmmo/voxmmo/internal/perms"
)

// Config holds the tunable XP parameters, mapped from the server config.
type Config struct {
	// GlobalRate multiplies every gain (server-wide rate).
	GlobalRate float64
	// SkillRates multiplies gains per skill; missing skills default to 1.
	SkillRates map[model.SkillType]float64
	// ShareFraction is the fraction of the actor's modified gain that is
	// split equally among nearby party members. Shared XP is additive:
	// the actor keeps their full share.
	ShareFraction float64
	// ShareRadius bounds party sharing distance in blocks; <=0 removes
	// the bound.
	ShareRadius int32
	// PartyLevelFraction is the fraction of a shareable gain that feeds
	// the party's own XP pool.
	PartyLevelFraction float64
}

// DefaultConfig returns 1x rates with sharing disabled.
func DefaultConfig() Config {
	return Config{GlobalRate: 1.0}
}

// ProfileSource resolves an online profile, nil when not loaded.
type ProfileSource interface {
	Get(player uuid.UUID) *model.PlayerProfile
}

// PartySource answers the party queries the engine needs.
type PartySource interface {
	PartyOf(player uuid.UUID) *model.Party
	NearMembers(actor uuid.UUID, radius int32) []model.PartyMember
}

// Outcome reports what one ApplyXPGain call committed.
type Outcome struct {
	Committed    bool
	Amount       float64 // actor's modified amount
	LevelsGained int32   // actor level-ups applied
	SharedWith   int     // party members who received a share
}

// Engine applies XP gains to profiles and parties.
type Engine struct {
	bus      event.Bus
	oracle   perms.Oracle
	sink     notify.Sink
	profiles ProfileSource
	parties  PartySource

	curve      data.Curve
	partyCurve data.Curve
	caps       data.LevelCaps
	cfg        Config
}

// NewEngine wires an engine over its collaborators.
func NewEngine(
	bus event.Bus,
	oracle perms.Oracle,
	sink notify.Sink,
	profiles ProfileSource,
	parties PartySource,
	curve, partyCurve data.Curve,
	caps data.LevelCaps,
	cfg Config,
) *Engine {
	if cfg.GlobalRate <= 0 {
		cfg.GlobalRate = 1.0
	}
	return &Engine{
		bus:        bus,
		oracle:     oracle,
		sink:       sink,
		profiles:   profiles,
		parties:    parties,
		curve:      curve,
		partyCurve: partyCurve,
		caps:       caps,
		cfg:        cfg,
	}
}

// ApplyXPGain runs one gain through the full pipeline:
// global rate → skill rate → best perk tier → party share, then the
// cancellable commit and level-up cascade.
//
// A negative raw amount is an explicit removal: it skips modifiers,
// sharing and the cascade, and clamps at zero.
// An unloaded actor is a neutral no-op, not an error.
func (e *Engine) ApplyXPGain(actor uuid.UUID, skill model.SkillType, raw float64, reason event.GainReason) (Outcome, error) {
	if !skill.Valid() {
		return Outcome{}, fmt.Errorf("%w: %d", model.ErrInvalidSkill, int32(skill))
	}
	if skill.IsChild() {
		return Outcome{}, fmt.Errorf("%w: %s", model.ErrChildSkill, skill)
	}
	profile := e.profiles.Get(actor)
	if profile == nil {
		return Outcome{}, nil
	}

	if raw < 0 {
		if e.bus.Publish(event.XPGain{Player: actor, Skill: skill, Amount: raw, Reason: reason}) {
			return Outcome{}, nil
		}
		if err := profile.RemoveXP(skill, -raw); err != nil {
			return Outcome{}, err
		}
		return Outcome{Committed: true, Amount: raw}, nil
	}

	amount := raw * e.cfg.GlobalRate * e.skillRate(skill) * perms.BestXPMultiplier(e.oracle, actor)

	// Party share, before any commit: the actor's cancellation must leave
	// every profile untouched.
	party := e.parties.PartyOf(actor)
	var near []model.PartyMember
	var shareAmount float64
	if party != nil && party.XPShareMode() == model.ShareEqual && reason.Shareable() && e.cfg.ShareFraction > 0 {
		near = e.parties.NearMembers(actor, e.cfg.ShareRadius)
		if len(near) > 0 {
			shareAmount = amount * e.cfg.ShareFraction / float64(len(near))
		}
	}

	if e.bus.Publish(event.XPGain{Player: actor, Skill: skill, Amount: amount, Reason: reason}) {
		return Outcome{}, nil
	}

	out := Outcome{Committed: true, Amount: amount}
	out.LevelsGained = e.grant(profile, skill, amount)

	for _, m := range near {
		recipient := e.profiles.Get(m.ID)
		if recipient == nil {
			continue
		}
		if e.bus.Publish(event.XPGain{Player: m.ID, Skill: skill, Amount: shareAmount, Reason: reason, Shared: true}) {
			continue
		}
		e.grant(recipient, skill, shareAmount)
		out.SharedWith++
	}

	// Party leveling is independent of the member XP share policy.
	if party != nil && reason.Shareable() && e.cfg.PartyLevelFraction > 0 {
		e.grantParty(party, amount*e.cfg.PartyLevelFraction)
	}
	return out, nil
}

func (e *Engine) skillRate(skill model.SkillType) float64 {
	if r, ok := e.cfg.SkillRates[skill]; ok && r > 0 {
		return r
	}
	return 1.0
}

// grant commits a modified amount to one profile and runs the cascade.
// Returns the number of level-ups applied.
func (e *Engine) grant(profile *model.PlayerProfile, skill model.SkillType, amount float64) int32 {
	cap := e.caps.Cap(skill)
	if profile.SkillLevel(skill) >= cap {
		// At cap: further XP is discarded, not retained.
		return 0
	}
	if err := profile.AddXP(skill, amount); err != nil {
		return 0
	}

	level := profile.SkillLevel(skill)
	xp := profile.SkillXP(skill)
	var gained int32
	for level < cap {
		need := e.curve.Required(level)
		if xp < need {
			break
		}
		if e.bus.Publish(event.LevelChange{Player: profile.ID(), Skill: skill, From: level, To: level + 1}) {
			// This level crossing was refused: keep the XP, apply nothing
			// further for this call.
			return gained
		}
		level++
		xp -= need
		if err := profile.SetSkillState(skill, level, xp); err != nil {
			return gained
		}
		gained++
	}
	if level >= cap && xp > 0 {
		// Absorb the overshoot past the cap.
		_ = profile.SetSkillState(skill, cap, 0)
	}
	if gained > 0 {
		e.sink.Send(profile.ID(), fmt.Sprintf("Your %s skill reached level %d.", skill, level))
		slog.Info("skill level up",
			"player", profile.Name(),
			"skill", skill.String(),
			"level", level,
			"gained", gained)
	}
	return gained
}

// grantParty advances the party's own pool, evaluating a single level
// threshold per call. Level-ups broadcast to all members.
func (e *Engine) grantParty(party *model.Party, amount float64) {
	if amount <= 0 {
		return
	}
	level, xp := party.Progress()
	xp += amount
	if need := e.partyCurve.Required(level); xp >= need {
		level++
		xp -= need
		party.SetProgress(level, xp)
		for _, m := range party.Members() {
			e.sink.Send(m.ID, fmt.Sprintf("Party %s reached level %d.", party.Name(), level))
		}
		slog.Info("party level up", "party", party.Name(), "level", level)
		return
	}
	party.SetProgress(level, xp)
}
