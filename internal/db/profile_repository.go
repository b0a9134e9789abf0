package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxmmo/voxmmo/internal/model"
)

// ProfileRepository persists player skill profiles in PostgreSQL.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a repository over the given pool.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// SaveProfile upserts the profile row and rewrites its skill and
// cooldown rows in a single transaction.
func (r *ProfileRepository) SaveProfile(ctx context.Context, snap model.ProfileSnapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction for profile %s: %w", snap.ID, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO skill_profiles (player_id, name, last_login_ms, tips_shown)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (player_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     last_login_ms = EXCLUDED.last_login_ms,
		     tips_shown = EXCLUDED.tips_shown`,
		snap.ID, snap.Name, snap.LastLogin, snap.TipsShown,
	)
	if err != nil {
		return fmt.Errorf("upserting profile %s: %w", snap.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM skill_levels WHERE player_id = $1`, snap.ID); err != nil {
		return fmt.Errorf("clearing skill rows for %s: %w", snap.ID, err)
	}
	for _, skill := range model.RootSkills() {
		level, ok := snap.Levels[skill]
		if !ok {
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO skill_levels (player_id, skill, level, xp) VALUES ($1, $2, $3, $4)`,
			snap.ID, skill.String(), level, snap.XP[skill],
		)
		if err != nil {
			return fmt.Errorf("inserting skill %s for %s: %w", skill, snap.ID, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM ability_cooldowns WHERE player_id = $1`, snap.ID); err != nil {
		return fmt.Errorf("clearing cooldown rows for %s: %w", snap.ID, err)
	}
	for ability, end := range snap.Cooldowns {
		if end == 0 {
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO ability_cooldowns (player_id, ability, deactivated_ms) VALUES ($1, $2, $3)`,
			snap.ID, ability.String(), end,
		)
		if err != nil {
			return fmt.Errorf("inserting cooldown %s for %s: %w", ability, snap.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit profile %s: %w", snap.ID, err)
	}
	return nil
}

// LoadProfile returns the stored snapshot, nil when the player has no
// record. Unparseable skill or ability rows are skipped, not fatal.
func (r *ProfileRepository) LoadProfile(ctx context.Context, id uuid.UUID) (*model.ProfileSnapshot, error) {
	snap := model.ProfileSnapshot{
		ID:        id,
		Levels:    make(map[model.SkillType]int32),
		XP:        make(map[model.SkillType]float64),
		Cooldowns: make(map[model.AbilityType]int64),
	}
	err := r.pool.QueryRow(ctx,
		`SELECT name, last_login_ms, tips_shown FROM skill_profiles WHERE player_id = $1`, id,
	).Scan(&snap.Name, &snap.LastLogin, &snap.TipsShown)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying profile %s: %w", id, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT skill, level, xp FROM skill_levels WHERE player_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying skills for %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var level int32
		var xp float64
		if err := rows.Scan(&name, &level, &xp); err != nil {
			return nil, fmt.Errorf("scanning skill row for %s: %w", id, err)
		}
		skill, err := model.ParseSkill(name)
		if err != nil || skill.IsChild() {
			continue
		}
		snap.Levels[skill] = level
		snap.XP[skill] = xp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating skill rows for %s: %w", id, err)
	}

	cdRows, err := r.pool.Query(ctx,
		`SELECT ability, deactivated_ms FROM ability_cooldowns WHERE player_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying cooldowns for %s: %w", id, err)
	}
	defer cdRows.Close()
	for cdRows.Next() {
		var name string
		var end int64
		if err := cdRows.Scan(&name, &end); err != nil {
			return nil, fmt.Errorf("scanning cooldown row for %s: %w", id, err)
		}
		if ability, ok := model.ParseAbility(name); ok {
			snap.Cooldowns[ability] = end
		}
	}
	if err := cdRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cooldown rows for %s: %w", id, err)
	}
	return &snap, nil
}

// DeleteProfile removes a player's rows (administrative purge).
func (r *ProfileRepository) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM skill_profiles WHERE player_id = $1`, id); err != nil {
		return fmt.Errorf("deleting profile %s: %w", id, err)
	}
	return nil
}
