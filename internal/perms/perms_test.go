package perms

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/voxmmo/voxmmo/internal/model"
)

type grantOracle map[string]bool

func (o grantOracle) Has(_ uuid.UUID, capability string) bool { return o[capability] }

func TestBestXPMultiplier(t *testing.T) {
	player := uuid.New()

	assert.Equal(t, 1.0, BestXPMultiplier(DenyAll{}, player))
	assert.Equal(t, 4.0, BestXPMultiplier(AllowAll{}, player), "highest tier wins, no stacking")
	assert.Equal(t, 1.5, BestXPMultiplier(grantOracle{CapXPOneFifty: true}, player))
	assert.Equal(t, 3.0, BestXPMultiplier(grantOracle{
		CapXPTriple:   true,
		CapXPOneFifty: true,
	}, player))
}

func TestBestCooldownFactor(t *testing.T) {
	player := uuid.New()

	assert.Equal(t, 1.0, BestCooldownFactor(DenyAll{}, player))
	assert.Equal(t, 0.25, BestCooldownFactor(AllowAll{}, player), "smallest factor wins, never compounded")
	assert.Equal(t, 0.5, BestCooldownFactor(grantOracle{CapCooldownHalved: true}, player))
	assert.Equal(t, 0.25, BestCooldownFactor(grantOracle{
		CapCooldownHalved:    true,
		CapCooldownQuartered: true,
	}, player))
}

func TestCapabilityKeys(t *testing.T) {
	assert.Equal(t, "voxmmo.skills.mining", SkillKey(model.SkillMining))
	assert.Equal(t, "voxmmo.abilities.super_breaker", AbilityKey(model.AbilitySuperBreaker))
}
