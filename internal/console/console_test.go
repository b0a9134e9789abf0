package console

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmmo/voxmmo/internal/clock"
	"github.com/voxmmo/voxmmo/internal/data"
	"github.com/voxmmo/voxmmo/internal/event"
	"github.com/voxmmo/voxmmo/internal/flatfile"
	"github.com/voxmmo/voxmmo/internal/game/party"
	"github.com/voxmmo/voxmmo/internal/game/player"
	"github.com/voxmmo/voxmmo/internal/game/skill"
	"github.com/voxmmo/voxmmo/internal/game/xp"
	"github.com/voxmmo/voxmmo/internal/model"
	"github.com/voxmmo/voxmmo/internal/notify"
	"github.com/voxmmo/voxmmo/internal/perms"
	"github.com/voxmmo/voxmmo/internal/world"
)

// newTestConsole wires a full service stack over temp-dir storage.
func newTestConsole(t *testing.T) *Console {
	t.Helper()
	dir := t.TempDir()
	clk := clock.NewFake(time.Unix(1700000000, 0))
	bus := event.NewSyncBus()
	sink := notify.NewCapture()

	registry := player.NewRegistry(
		flatfile.NewProfileStore(filepath.Join(dir, "profiles.txt")),
		clk, 0, model.ChildAverage)
	positions := player.NewPositions()
	directory := party.NewDirectory(bus, sink, positions, clk,
		flatfile.NewPartyStore(filepath.Join(dir, "parties.txt")), time.Minute)

	eligibility, err := world.NewEligibilityStore(filepath.Join(dir, "placed"), -64, 384)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eligibility.Close() })

	curve := data.Curve{Formula: data.FormulaLinear, Base: 100}
	engine := xp.NewEngine(bus, perms.DenyAll{}, sink, registry, directory,
		curve, data.DefaultPartyCurve(), data.LevelCaps{}, xp.DefaultConfig())
	cooldowns := skill.NewCooldownTracker(clk, perms.DenyAll{}, registry)

	c := New(registry, positions, directory, engine, cooldowns, eligibility)
	t.Cleanup(c.Close)
	return c
}

func dispatch(t *testing.T, c *Console, line string) string {
	t.Helper()
	reply, err := c.Dispatch(context.Background(), line)
	require.NoError(t, err, "dispatch %q", line)
	return reply
}

func TestConsole_XPFlow(t *testing.T) {
	c := newTestConsole(t)

	dispatch(t, c, "join Steve")
	reply := dispatch(t, c, "xp Steve mining 250")
	assert.Contains(t, reply, "2 level(s)")

	reply = dispatch(t, c, "level Steve mining")
	assert.Contains(t, reply, "mining: 2")

	_, err := c.Dispatch(context.Background(), "xp Steve smelting 10")
	assert.ErrorIs(t, err, model.ErrChildSkill)
}

func TestConsole_PartyFlow(t *testing.T) {
	c := newTestConsole(t)

	dispatch(t, c, "join Alice")
	dispatch(t, c, "join Bob")
	reply := dispatch(t, c, "party create Alice Alpha")
	assert.Contains(t, reply, "Alpha")

	dispatch(t, c, "party invite Alice Bob")
	dispatch(t, c, "party accept Bob")
	dispatch(t, c, "party kick Alice Bob")
	dispatch(t, c, "party disband Alpha")

	_, err := c.Dispatch(context.Background(), "party leave Alice")
	assert.ErrorIs(t, err, party.ErrNotInParty)
}

func TestConsole_CooldownFlow(t *testing.T) {
	c := newTestConsole(t)
	dispatch(t, c, "join Steve")

	_, err := c.Dispatch(context.Background(), "use Steve super_breaker")
	assert.ErrorIs(t, err, model.ErrAbilityLocked, "level 0 cannot use abilities")

	// 500 xp on a flat 100-per-level curve reaches the unlock level.
	dispatch(t, c, "xp Steve mining 500")
	assert.Contains(t, dispatch(t, c, "use Steve super_breaker"), "activated")
	assert.Contains(t, dispatch(t, c, "use Steve super_breaker"), "on cooldown")
	assert.Contains(t, dispatch(t, c, "cooldown Steve super_breaker"), "ready in")
}

func TestConsole_BlockFlow(t *testing.T) {
	c := newTestConsole(t)

	assert.Contains(t, dispatch(t, c, "break 10 64 10"), "natural")
	dispatch(t, c, "place 10 64 10")
	assert.Contains(t, dispatch(t, c, "break 10 64 10"), "player-placed")
	// The break cleared the mark again.
	assert.Contains(t, dispatch(t, c, "break 10 64 10"), "natural")
}

func TestConsole_BreakColumnFollowUp(t *testing.T) {
	c := newTestConsole(t)
	c.followDelay = time.Millisecond

	dispatch(t, c, "place 0 64 0")
	dispatch(t, c, "place 0 65 0")
	dispatch(t, c, "place 0 66 0")

	assert.Contains(t, dispatch(t, c, "break 0 64 0"), "player-placed")
	assert.Eventually(t, func() bool {
		return c.eligibility.IsEligible(model.BlockPos{X: 0, Y: 65, Z: 0})
	}, time.Second, time.Millisecond, "the collapsed block above loses its mark")

	// The follow-up pass runs as synthetic and stops the chain there.
	assert.False(t, c.eligibility.IsEligible(model.BlockPos{X: 0, Y: 66, Z: 0}))
}

func TestConsole_UnknownCommand(t *testing.T) {
	c := newTestConsole(t)

	_, err := c.Dispatch(context.Background(), "frobnicate")
	assert.Error(t, err)

	assert.True(t, strings.Contains(dispatch(t, c, "help"), "commands:"))
}

func TestConsole_Run(t *testing.T) {
	c := newTestConsole(t)
	in := strings.NewReader("join Steve\nxp Steve mining 50\nbogus\n")
	var out strings.Builder

	require.NoError(t, c.Run(context.Background(), in, &out))
	assert.Contains(t, out.String(), "attached Steve")
	assert.Contains(t, out.String(), "granted 50.0 mining xp")
	assert.Contains(t, out.String(), "error:")
}
