package data

import (
	"fmt"
	"math"
	"strings"

	"github.com/voxmmo/voxmmo/internal/model"
)

// Formula selects the growth shape of an experience curve.
type Formula int32

const (
	// FormulaLinear — required XP grows by a constant step per level.
	FormulaLinear Formula = iota
	// FormulaExponential — required XP grows polynomially with level.
	FormulaExponential
)

// ParseFormula resolves a formula by name (case-insensitive).
func ParseFormula(name string) (Formula, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear", "":
		return FormulaLinear, nil
	case "exponential":
		return FormulaExponential, nil
	}
	return 0, fmt.Errorf("unknown experience formula %q", name)
}

// String returns the lowercase formula name.
func (f Formula) String() string {
	if f == FormulaExponential {
		return "exponential"
	}
	return "linear"
}

// Curve maps a level to the XP required to advance past it.
// Required is a per-level increment, not a cumulative total.
type Curve struct {
	Formula    Formula
	Base       float64
	Multiplier float64
	Exponent   float64
}

// DefaultCurve returns the default per-skill growth curve.
func DefaultCurve() Curve {
	return Curve{Formula: FormulaLinear, Base: 1020, Multiplier: 20}
}

// DefaultPartyCurve returns the default party-pool growth curve.
func DefaultPartyCurve() Curve {
	return Curve{Formula: FormulaExponential, Base: 5000, Multiplier: 1000, Exponent: 1.5}
}

// Required returns the XP needed to advance from level to level+1.
func (c Curve) Required(level int32) float64 {
	if level < 0 {
		level = 0
	}
	l := float64(level)
	switch c.Formula {
	case FormulaExponential:
		return c.Multiplier*math.Pow(l, c.Exponent) + c.Base
	default:
		return c.Base + l*c.Multiplier
	}
}

// LevelForTotal returns the level reached after accumulating total XP
// from level zero, along with the XP left over toward the next level.
// Diagnostic helper for admin tooling; scanning stops at cap.
func (c Curve) LevelForTotal(total float64, cap int32) (int32, float64) {
	if total < 0 {
		total = 0
	}
	var level int32
	for level < cap {
		need := c.Required(level)
		if total < need {
			break
		}
		total -= need
		level++
	}
	if level >= cap {
		return cap, 0
	}
	return level, total
}

// LevelCaps holds the global and per-skill level caps.
// A cap of zero means unlimited.
type LevelCaps struct {
	Global   int32
	PerSkill map[model.SkillType]int32
}

// Cap returns the effective cap for a skill.
func (lc LevelCaps) Cap(skill model.SkillType) int32 {
	if c, ok := lc.PerSkill[skill]; ok && c > 0 {
		return c
	}
	if lc.Global > 0 {
		return lc.Global
	}
	return math.MaxInt32
}
