package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxmmo/voxmmo/internal/clock"
	"github.com/voxmmo/voxmmo/internal/config"
	"github.com/voxmmo/voxmmo/internal/console"
	"github.com/voxmmo/voxmmo/internal/data"
	"github.com/voxmmo/voxmmo/internal/db"
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

const DefaultConfigPath = "config/skillserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := flag.String("config", DefaultConfigPath, "path to config file")
	flag.Parse()
	if p := os.Getenv("VOXMMO_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.LoadServer(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})))
	slog.Info("voxmmo skill server starting", "data_dir", cfg.DataDir, "backend", cfg.Storage.Backend)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// Profile storage backend.
	var profileStore player.Store
	switch cfg.Storage.Backend {
	case "", "flatfile":
		profileStore = flatfile.NewProfileStore(filepath.Join(cfg.DataDir, "profiles.txt"))
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.Storage.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		if err := db.RunMigrations(ctx, cfg.Storage.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")
		profileStore = db.NewProfileRepository(pool)
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	curve, err := curveFromConfig(cfg.XP.Curve)
	if err != nil {
		return fmt.Errorf("xp curve: %w", err)
	}
	partyCurve, err := curveFromConfig(cfg.Party.Curve)
	if err != nil {
		return fmt.Errorf("party curve: %w", err)
	}
	caps, err := capsFromConfig(cfg.XP)
	if err != nil {
		return fmt.Errorf("level caps: %w", err)
	}
	rates, err := ratesFromConfig(cfg.XP.SkillRates)
	if err != nil {
		return fmt.Errorf("skill rates: %w", err)
	}
	childAgg, err := childAggFromConfig(cfg.XP.ChildLevels)
	if err != nil {
		return err
	}

	clk := clock.System{}
	bus := event.NewSyncBus()
	sink := notify.SlogSink{}
	oracle := perms.DenyAll{}

	registry := player.NewRegistry(profileStore, clk, int32(cfg.XP.StartingLevel), childAgg)
	positions := player.NewPositions()

	partyStore := flatfile.NewPartyStore(filepath.Join(cfg.DataDir, "parties.txt"))
	directory := party.NewDirectory(bus, sink, positions, clk, partyStore, cfg.Party.InviteTTL)
	if err := directory.Load(ctx); err != nil {
		return fmt.Errorf("loading parties: %w", err)
	}

	eligibility, err := world.NewEligibilityStore(
		filepath.Join(cfg.DataDir, "placed"),
		int32(cfg.World.MinY), int32(cfg.World.Height),
	)
	if err != nil {
		return fmt.Errorf("opening eligibility store: %w", err)
	}

	engine := xp.NewEngine(bus, oracle, sink, registry, directory, curve, partyCurve, caps, xp.Config{
		GlobalRate:         cfg.XP.GlobalRate,
		SkillRates:         rates,
		ShareFraction:      cfg.Party.ShareFraction,
		ShareRadius:        int32(cfg.Party.ShareRadius),
		PartyLevelFraction: cfg.Party.LevelXPFraction,
	})
	cooldowns := skill.NewCooldownTracker(clk, oracle, registry)
	admin := console.New(registry, positions, directory, engine, cooldowns, eligibility)

	g, gctx := errgroup.WithContext(ctx)

	// Admin console on stdin. Detached: a blocked stdin read must not
	// hold up shutdown, and EOF stops only the console.
	go func() {
		if err := admin.Run(gctx, os.Stdin, os.Stdout); err != nil {
			slog.Error("console stopped", "err", err)
		}
	}()

	// Periodic autosave of dirty profiles, parties and eligibility data.
	g.Go(func() error {
		interval := cfg.SaveInterval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := registry.FlushDirty(gctx); err != nil {
					slog.Error("autosave profiles failed", "err", err)
				}
				if err := directory.Save(gctx); err != nil {
					slog.Error("autosave parties failed", "err", err)
				}
				if err := eligibility.FlushAll(); err != nil {
					slog.Error("autosave eligibility failed", "err", err)
				}
			}
		}
	})

	slog.Info("skill server running")
	if err := g.Wait(); err != nil {
		return err
	}

	// Final flush on shutdown.
	admin.Close()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutCancel()
	if err := registry.Shutdown(shutCtx); err != nil {
		slog.Error("profile flush failed", "err", err)
	}
	if err := directory.Save(shutCtx); err != nil {
		slog.Error("party flush failed", "err", err)
	}
	if err := eligibility.Close(); err != nil {
		slog.Error("eligibility flush failed", "err", err)
	}
	slog.Info("skill server stopped")
	return nil
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func curveFromConfig(c config.CurveConfig) (data.Curve, error) {
	f, err := data.ParseFormula(c.Formula)
	if err != nil {
		return data.Curve{}, err
	}
	return data.Curve{Formula: f, Base: c.Base, Multiplier: c.Multiplier, Exponent: c.Exponent}, nil
}

func capsFromConfig(c config.XPConfig) (data.LevelCaps, error) {
	caps := data.LevelCaps{Global: int32(c.LevelCap)}
	if len(c.SkillCaps) > 0 {
		caps.PerSkill = make(map[model.SkillType]int32, len(c.SkillCaps))
		for name, limit := range c.SkillCaps {
			s, err := model.ParseSkill(name)
			if err != nil {
				return data.LevelCaps{}, err
			}
			caps.PerSkill[s] = int32(limit)
		}
	}
	return caps, nil
}

func ratesFromConfig(src map[string]float64) (map[model.SkillType]float64, error) {
	if len(src) == 0 {
		return nil, nil
	}
	rates := make(map[model.SkillType]float64, len(src))
	for name, rate := range src {
		s, err := model.ParseSkill(name)
		if err != nil {
			return nil, err
		}
		rates[s] = rate
	}
	return rates, nil
}

func childAggFromConfig(name string) (model.ChildAggregation, error) {
	switch strings.ToLower(name) {
	case "", "average":
		return model.ChildAverage, nil
	case "min":
		return model.ChildMin, nil
	default:
		return 0, fmt.Errorf("unknown child_levels mode %q", name)
	}
}
