// Package player owns the online profile registry: session attach and
// detach, lookup for event handlers, and the periodic flush of dirty
// profiles to durable storage.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/voxmmo/voxmmo/internal/clock"
	"github.com/voxmmo/voxmmo/internal/model"
)

// Store is the durable profile backend (flat file or PostgreSQL).
type Store interface {
	SaveProfile(ctx context.Context, snap model.ProfileSnapshot) error
	LoadProfile(ctx context.Context, id uuid.UUID) (*model.ProfileSnapshot, error)
}

// Registry holds every online profile. Created at plugin start, torn
// down at shutdown; nothing else owns profile lifecycle.
type Registry struct {
	mu     sync.RWMutex
	online map[uuid.UUID]*model.PlayerProfile

	store      Store
	clk        clock.Clock
	startLevel int32
	childAgg   model.ChildAggregation
}

// NewRegistry creates an empty registry.
func NewRegistry(store Store, clk clock.Clock, startLevel int32, childAgg model.ChildAggregation) *Registry {
	return &Registry{
		online:     make(map[uuid.UUID]*model.PlayerProfile),
		store:      store,
		clk:        clk,
		startLevel: startLevel,
		childAgg:   childAgg,
	}
}

// Attach loads (or creates) the player's profile on session join,
// refreshes the display name, and stamps the login time.
func (r *Registry) Attach(ctx context.Context, id uuid.UUID, name string) (*model.PlayerProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.online[id]; ok {
		existing.SetName(name)
		return existing, nil
	}

	snap, err := r.store.LoadProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", id, err)
	}
	var profile *model.PlayerProfile
	if snap == nil {
		profile = model.NewPlayerProfile(id, name, r.startLevel)
		slog.Info("new player profile", "player", name, "id", id)
	} else {
		profile = model.ProfileFromSnapshot(*snap, r.startLevel)
		profile.SetName(name)
	}
	profile.SetChildAggregation(r.childAgg)
	profile.SetLastLogin(clock.NowMillis(r.clk))
	r.online[id] = profile
	return profile, nil
}

// Detach flushes the player's profile and removes it from the registry
// on session end.
func (r *Registry) Detach(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	profile, ok := r.online[id]
	delete(r.online, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if err := r.store.SaveProfile(ctx, profile.Snapshot()); err != nil {
		return fmt.Errorf("flushing profile %s on detach: %w", id, err)
	}
	profile.ClearDirty()
	return nil
}

// Get returns the online profile, nil when the player has no active
// session. Event handlers treat nil as "not ready yet" and no-op.
func (r *Registry) Get(id uuid.UUID) *model.PlayerProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.online[id]
}

// OnlineCount returns the number of attached profiles.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.online)
}

// FlushDirty persists every dirty online profile. Snapshots are taken
// under the profile lock; the writes run concurrently off the caller's
// goroutine. One failed save does not stop the rest.
func (r *Registry) FlushDirty(ctx context.Context) error {
	r.mu.RLock()
	dirty := make([]*model.PlayerProfile, 0, len(r.online))
	for _, p := range r.online {
		if p.Dirty() {
			dirty = append(dirty, p)
		}
	}
	r.mu.RUnlock()
	if len(dirty) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, profile := range dirty {
		g.Go(func() error {
			// Clear before snapshotting: a mutation landing while the
			// save is in flight re-marks the profile and is picked up
			// by the next cycle instead of being lost under a flag
			// cleared after the fact.
			profile.ClearDirty()
			snap := profile.Snapshot()
			if err := r.store.SaveProfile(ctx, snap); err != nil {
				profile.MarkDirty()
				slog.Error("saving profile", "player", snap.Name, "error", err)
				return fmt.Errorf("saving profile %s: %w", snap.ID, err)
			}
			return nil
		})
	}
	err := g.Wait()
	slog.Debug("profile flush finished", "flushed", len(dirty))
	return err
}

// MutateOffline loads an offline player's profile, applies fn, and
// persists the result synchronously. Refuses players who are online —
// their session profile is authoritative.
func (r *Registry) MutateOffline(ctx context.Context, id uuid.UUID, fn func(*model.PlayerProfile) error) error {
	r.mu.RLock()
	_, online := r.online[id]
	r.mu.RUnlock()
	if online {
		return fmt.Errorf("player %s is online, mutate the session profile", id)
	}

	snap, err := r.store.LoadProfile(ctx, id)
	if err != nil {
		return fmt.Errorf("loading offline profile %s: %w", id, err)
	}
	if snap == nil {
		return fmt.Errorf("no stored profile for %s", id)
	}
	profile := model.ProfileFromSnapshot(*snap, r.startLevel)
	profile.SetChildAggregation(r.childAgg)
	if err := fn(profile); err != nil {
		return err
	}
	if err := r.store.SaveProfile(ctx, profile.Snapshot()); err != nil {
		return fmt.Errorf("saving offline profile %s: %w", id, err)
	}
	return nil
}

// Shutdown flushes every online profile and empties the registry.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	profiles := make([]*model.PlayerProfile, 0, len(r.online))
	for _, p := range r.online {
		profiles = append(profiles, p)
	}
	r.online = make(map[uuid.UUID]*model.PlayerProfile)
	r.mu.Unlock()

	var firstErr error
	for _, p := range profiles {
		if err := r.store.SaveProfile(ctx, p.Snapshot()); err != nil {
			slog.Error("saving profile on shutdown", "player", p.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
