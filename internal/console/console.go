// Package console implements the line-based admin console of the
// standalone binary. It is the manual driving surface for the skill
// core: attaching players, granting XP, party management, ability use
// and placed-block bookkeeping.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxmmo/voxmmo/internal/event"
	"github.com/voxmmo/voxmmo/internal/game/party"
	"github.com/voxmmo/voxmmo/internal/game/player"
	"github.com/voxmmo/voxmmo/internal/game/skill"
	"github.com/voxmmo/voxmmo/internal/game/xp"
	"github.com/voxmmo/voxmmo/internal/model"
	"github.com/voxmmo/voxmmo/internal/sched"
	"github.com/voxmmo/voxmmo/internal/world"
)

// Console dispatches admin commands against the game services.
type Console struct {
	registry    *player.Registry
	positions   *player.Positions
	directory   *party.Directory
	engine      *xp.Engine
	cooldowns   *skill.CooldownTracker
	eligibility *world.EligibilityStore

	// followDelay is how long after a break the column follow-up above
	// it runs.
	followDelay time.Duration

	mu     sync.Mutex
	names  map[string]uuid.UUID
	follow *sched.Timer
}

func New(
	registry *player.Registry,
	positions *player.Positions,
	directory *party.Directory,
	engine *xp.Engine,
	cooldowns *skill.CooldownTracker,
	eligibility *world.EligibilityStore,
) *Console {
	return &Console{
		registry:    registry,
		positions:   positions,
		directory:   directory,
		engine:      engine,
		cooldowns:   cooldowns,
		eligibility: eligibility,
		followDelay: 50 * time.Millisecond,
		names:       make(map[string]uuid.UUID),
	}
}

// Close cancels any pending follow-up timer. Call before tearing down
// the stores the timer callback touches.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.follow != nil {
		c.follow.Cancel()
	}
}

// Run reads commands line by line until EOF or ctx is cancelled.
func (c *Console) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply, err := c.Dispatch(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if reply != "" {
			fmt.Fprintln(out, reply)
		}
	}
	return scanner.Err()
}

// Dispatch runs a single command and returns its reply.
func (c *Console) Dispatch(ctx context.Context, line string) (string, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return "", nil
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "join":
		return c.join(ctx, args)
	case "quit":
		return c.quit(ctx, args)
	case "pos":
		return c.pos(args)
	case "xp":
		return c.xp(args)
	case "level":
		return c.level(args)
	case "use":
		return c.use(args)
	case "cooldown":
		return c.cooldown(args)
	case "party":
		return c.party(args)
	case "place":
		return c.block(ctx, args, true)
	case "break":
		return c.block(ctx, args, false)
	case "help":
		return usage, nil
	default:
		return "", fmt.Errorf("unknown command %q, try help", cmd)
	}
}

const usage = `commands:
  join <name>                       attach a player
  quit <name>                       detach a player
  pos <name> <x> <y> <z>            set a player's position
  xp <name> <skill> <amount>        apply an XP gain
  level <name> [skill]              show levels
  use <name> <ability>              activate an ability
  cooldown <name> <ability>         remaining cooldown seconds
  party create <name> <party> [pw]  create a party
  party invite <leader> <name>      invite to the leader's party
  party accept <name>               accept a pending invite
  party leave <name>                leave current party
  party kick <leader> <name>        kick a member
  party disband <party>             disband a party
  party ally <name> <party>         offer an alliance
  party allyaccept <name>           accept a pending alliance offer
  place <x> <y> <z>                 mark a block player-placed
  break <x> <y> <z>                 check and clear a block`

func (c *Console) resolve(name string) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.names[strings.ToLower(name)]
	if !ok {
		id = uuid.New()
		c.names[strings.ToLower(name)] = id
	}
	return id
}

func (c *Console) member(name string) model.PartyMember {
	return model.PartyMember{ID: c.resolve(name), Name: name}
}

func (c *Console) join(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: join <name>")
	}
	id := c.resolve(args[0])
	profile, err := c.registry.Attach(ctx, id, args[0])
	if err != nil {
		return "", err
	}
	c.positions.Update(id, model.BlockPos{})
	return fmt.Sprintf("attached %s (%s)", profile.Name(), id), nil
}

func (c *Console) quit(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: quit <name>")
	}
	id := c.resolve(args[0])
	c.positions.Forget(id)
	if err := c.registry.Detach(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("detached %s", args[0]), nil
}

func (c *Console) pos(args []string) (string, error) {
	if len(args) != 4 {
		return "", fmt.Errorf("usage: pos <name> <x> <y> <z>")
	}
	at, err := parsePos(args[1:])
	if err != nil {
		return "", err
	}
	c.positions.Update(c.resolve(args[0]), at)
	return "", nil
}

func (c *Console) xp(args []string) (string, error) {
	if len(args) != 3 {
		return "", fmt.Errorf("usage: xp <name> <skill> <amount>")
	}
	s, err := model.ParseSkill(args[1])
	if err != nil {
		return "", err
	}
	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return "", fmt.Errorf("bad amount %q", args[2])
	}
	out, err := c.engine.ApplyXPGain(c.resolve(args[0]), s, amount, event.GainCommand)
	if err != nil {
		return "", err
	}
	if !out.Committed {
		return "gain cancelled", nil
	}
	return fmt.Sprintf("granted %.1f %s xp, %d level(s) gained", out.Amount, s, out.LevelsGained), nil
}

func (c *Console) level(args []string) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", fmt.Errorf("usage: level <name> [skill]")
	}
	profile := c.registry.Get(c.resolve(args[0]))
	if profile == nil {
		return "", fmt.Errorf("%s is not attached", args[0])
	}
	if len(args) == 2 {
		s, err := model.ParseSkill(args[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s: %d", args[0], s, profile.SkillLevel(s)), nil
	}
	var b strings.Builder
	for _, s := range model.AllSkills() {
		fmt.Fprintf(&b, "%s: %d\n", s, profile.SkillLevel(s))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (c *Console) use(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("usage: use <name> <ability>")
	}
	ability, ok := model.ParseAbility(args[1])
	if !ok {
		return "", fmt.Errorf("unknown ability %q", args[1])
	}
	id := c.resolve(args[0])
	remaining, activated, err := c.cooldowns.Activate(id, ability)
	if err != nil {
		return "", err
	}
	if !activated {
		return fmt.Sprintf("%s is on cooldown for %ds", ability, remaining), nil
	}
	// No ability duration here: the cooldown starts immediately.
	if err := c.cooldowns.RecordActivation(id, ability); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s activated", ability), nil
}

func (c *Console) cooldown(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("usage: cooldown <name> <ability>")
	}
	ability, ok := model.ParseAbility(args[1])
	if !ok {
		return "", fmt.Errorf("unknown ability %q", args[1])
	}
	remaining := c.cooldowns.RemainingSeconds(c.resolve(args[0]), ability)
	if remaining == 0 {
		return fmt.Sprintf("%s is ready", ability), nil
	}
	return fmt.Sprintf("%s ready in %ds", ability, remaining), nil
}

func (c *Console) party(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: party <sub> ..., try help")
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "create":
		if len(args) != 2 && len(args) != 3 {
			return "", fmt.Errorf("usage: party create <name> <party> [password]")
		}
		password := ""
		if len(args) == 3 {
			password = args[2]
		}
		p, err := c.directory.Create(c.member(args[0]), args[1], password)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("party %s created", p.Name()), nil
	case "invite":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: party invite <leader> <name>")
		}
		return "", c.directory.InviteMember(c.resolve(args[0]), c.member(args[1]))
	case "accept":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: party accept <name>")
		}
		return "", c.directory.AcceptInvite(c.member(args[0]))
	case "leave":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: party leave <name>")
		}
		return "", c.directory.Leave(c.resolve(args[0]))
	case "kick":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: party kick <leader> <name>")
		}
		return "", c.directory.Kick(c.resolve(args[0]), c.resolve(args[1]))
	case "disband":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: party disband <party>")
		}
		return "", c.directory.Disband(args[0])
	case "ally":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: party ally <name> <party>")
		}
		return "", c.directory.InviteAlly(c.resolve(args[0]), args[1])
	case "allyaccept":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: party allyaccept <name>")
		}
		return "", c.directory.AcceptAlly(c.resolve(args[0]))
	default:
		return "", fmt.Errorf("unknown party subcommand %q", sub)
	}
}

func (c *Console) block(ctx context.Context, args []string, place bool) (string, error) {
	if len(args) != 3 {
		return "", fmt.Errorf("usage: place|break <x> <y> <z>")
	}
	at, err := parsePos(args)
	if err != nil {
		return "", err
	}
	if place {
		c.eligibility.SetIneligible(at)
		return "marked player-placed", nil
	}
	return c.breakAt(ctx, at), nil
}

func (c *Console) breakAt(ctx context.Context, at model.BlockPos) string {
	eligible := c.eligibility.IsEligible(at)
	c.eligibility.SetEligible(at)
	// Breaking a block collapses whatever is stacked on it, so the
	// position above gets a delayed break of its own. That pass runs
	// as synthetic and never chains a third level.
	if !sched.IsSynthetic(ctx) {
		c.scheduleColumnFollowUp(at)
	}
	if eligible {
		return "natural block, rewards eligible"
	}
	return "player-placed block, no rewards"
}

func (c *Console) scheduleColumnFollowUp(at model.BlockPos) {
	above := model.BlockPos{X: at.X, Y: at.Y + 1, Z: at.Z}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.follow != nil {
		// A newer break supersedes the pending follow-up.
		c.follow.Cancel()
	}
	c.follow = sched.OneShot(c.followDelay, func() {
		c.breakAt(sched.WithSynthetic(context.Background()), above)
	})
}

func parsePos(args []string) (model.BlockPos, error) {
	var coords [3]int64
	for i, raw := range args {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return model.BlockPos{}, fmt.Errorf("bad coordinate %q", raw)
		}
		coords[i] = v
	}
	return model.BlockPos{X: int32(coords[0]), Y: int32(coords[1]), Z: int32(coords[2])}, nil
}
