package data

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmmo/voxmmo/internal/model"
)

func TestCurve_Required_Linear(t *testing.T) {
	c := Curve{Formula: FormulaLinear, Base: 1020, Multiplier: 20}

	assert.Equal(t, float64(1020), c.Required(0))
	assert.Equal(t, float64(1040), c.Required(1))
	assert.Equal(t, float64(3020), c.Required(100))
	assert.Equal(t, float64(1020), c.Required(-3), "negative levels treated as zero")
}

func TestCurve_Required_Exponential(t *testing.T) {
	c := Curve{Formula: FormulaExponential, Base: 5000, Multiplier: 1000, Exponent: 1.5}

	assert.Equal(t, float64(5000), c.Required(0))
	assert.InDelta(t, 5000+1000*math.Pow(4, 1.5), c.Required(4), 1e-9)
	assert.Greater(t, c.Required(10), c.Required(9), "monotonically increasing")
}

func TestCurve_LevelForTotal(t *testing.T) {
	c := Curve{Formula: FormulaLinear, Base: 100} // flat 100 per level

	level, rem := c.LevelForTotal(250, math.MaxInt32)
	assert.Equal(t, int32(2), level)
	assert.Equal(t, float64(50), rem)

	level, rem = c.LevelForTotal(99, math.MaxInt32)
	assert.Zero(t, level)
	assert.Equal(t, float64(99), rem)

	level, rem = c.LevelForTotal(1000, 3)
	assert.Equal(t, int32(3), level)
	assert.Zero(t, rem, "overshoot past cap is discarded")
}

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula("Linear")
	require.NoError(t, err)
	assert.Equal(t, FormulaLinear, f)

	f, err = ParseFormula("exponential")
	require.NoError(t, err)
	assert.Equal(t, FormulaExponential, f)

	_, err = ParseFormula("quadratic")
	assert.Error(t, err)
}

func TestLevelCaps_Cap(t *testing.T) {
	caps := LevelCaps{
		Global:   100,
		PerSkill: map[model.SkillType]int32{model.SkillMining: 50},
	}
	assert.Equal(t, int32(50), caps.Cap(model.SkillMining))
	assert.Equal(t, int32(100), caps.Cap(model.SkillFishing))

	unlimited := LevelCaps{}
	assert.Equal(t, int32(math.MaxInt32), unlimited.Cap(model.SkillMining))
}

func TestAbilityTables(t *testing.T) {
	for _, a := range model.AllAbilities() {
		assert.Positive(t, BaseCooldownSeconds(a), "ability %s has no base cooldown", a)
		assert.Positive(t, UnlockLevel(a), "ability %s has no unlock level", a)
	}
	assert.Equal(t, int32(60), BaseCooldownSeconds(model.AbilityBlastMining))
	assert.Equal(t, int32(240), BaseCooldownSeconds(model.AbilitySuperBreaker))
}
