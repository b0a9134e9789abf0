package flatfile

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/voxmmo/voxmmo/internal/model"
)

const profileFieldCount = 6

// ProfileStore persists player profiles to a single flat file keyed by
// the stable player id, one record per line.
//
// Saving one profile rewrites the file; the mutex serializes writers so
// background flushes never interleave.
type ProfileStore struct {
	mu   sync.Mutex
	path string
}

// NewProfileStore creates a store writing to path.
func NewProfileStore(path string) *ProfileStore {
	return &ProfileStore{path: path}
}

// SaveProfile inserts or replaces the record for snap's player id.
func (s *ProfileStore) SaveProfile(_ context.Context, snap model.ProfileSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAllLocked()
	if err != nil {
		return err
	}
	replaced := false
	line := encodeProfile(snap)
	for i, rec := range records {
		if strings.HasPrefix(rec, snap.ID.String()+"|") {
			records[i] = line
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, line)
	}
	return s.writeAllLocked(records)
}

// LoadProfile returns the stored snapshot for a player, nil when the
// player has no record.
func (s *ProfileStore) LoadProfile(_ context.Context, id uuid.UUID) (*model.ProfileSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAllLocked()
	if err != nil {
		return nil, err
	}
	prefix := id.String() + "|"
	for lineNo, rec := range records {
		if !strings.HasPrefix(rec, prefix) {
			continue
		}
		snap, err := decodeProfile(rec)
		if err != nil {
			slog.Warn("corrupt profile record", "file", s.path, "line", lineNo+1, "error", err)
			return nil, nil
		}
		return &snap, nil
	}
	return nil, nil
}

// DeleteProfile removes a player's record (administrative purge).
func (s *ProfileStore) DeleteProfile(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAllLocked()
	if err != nil {
		return err
	}
	prefix := id.String() + "|"
	kept := records[:0]
	for _, rec := range records {
		if !strings.HasPrefix(rec, prefix) {
			kept = append(kept, rec)
		}
	}
	return s.writeAllLocked(kept)
}

func (s *ProfileStore) readAllLocked() ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening profile file: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading profile file: %w", err)
	}
	return out, nil
}

func (s *ProfileStore) writeAllLocked(records []string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating profile file directory: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating profile temp file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, rec := range records {
		if _, err := w.WriteString(rec + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("writing profile record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing profile file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing profile temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing profile file: %w", err)
	}
	return nil
}

// encodeProfile renders one record:
// id|name|lastLogin|tips|skill:level:xp;...|ability:end;...
func encodeProfile(snap model.ProfileSnapshot) string {
	skills := make([]string, 0, len(snap.Levels))
	for _, s := range model.RootSkills() {
		level, ok := snap.Levels[s]
		if !ok {
			continue
		}
		skills = append(skills, fmt.Sprintf("%s:%d:%s",
			s, level, strconv.FormatFloat(snap.XP[s], 'f', -1, 64)))
	}
	cooldowns := make([]string, 0, len(snap.Cooldowns))
	for _, a := range model.AllAbilities() {
		if end, ok := snap.Cooldowns[a]; ok && end != 0 {
			cooldowns = append(cooldowns, fmt.Sprintf("%s:%d", a, end))
		}
	}
	fields := []string{
		snap.ID.String(),
		escapeName(snap.Name),
		strconv.FormatInt(snap.LastLogin, 10),
		strconv.FormatInt(int64(snap.TipsShown), 10),
		strings.Join(skills, ";"),
		strings.Join(cooldowns, ";"),
	}
	return strings.Join(fields, "|")
}

func decodeProfile(line string) (model.ProfileSnapshot, error) {
	fields := strings.Split(line, "|")
	if len(fields) != profileFieldCount {
		return model.ProfileSnapshot{}, fmt.Errorf("want %d fields, got %d", profileFieldCount, len(fields))
	}
	id, err := uuid.Parse(fields[0])
	if err != nil {
		return model.ProfileSnapshot{}, fmt.Errorf("player id: %w", err)
	}
	snap := model.ProfileSnapshot{
		ID:        id,
		Name:      unescapeName(fields[1]),
		Levels:    make(map[model.SkillType]int32),
		XP:        make(map[model.SkillType]float64),
		Cooldowns: make(map[model.AbilityType]int64),
	}
	if snap.LastLogin, err = strconv.ParseInt(fields[2], 10, 64); err != nil {
		return model.ProfileSnapshot{}, fmt.Errorf("last login: %w", err)
	}
	tips, err := strconv.ParseInt(fields[3], 10, 32)
	if err != nil {
		return model.ProfileSnapshot{}, fmt.Errorf("tips: %w", err)
	}
	snap.TipsShown = int32(tips)

	for _, entry := range splitNonEmpty(fields[4], ";") {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return model.ProfileSnapshot{}, fmt.Errorf("skill entry %q", entry)
		}
		skill, err := model.ParseSkill(parts[0])
		if err != nil {
			return model.ProfileSnapshot{}, fmt.Errorf("skill entry %q: %w", entry, err)
		}
		level, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil {
			return model.ProfileSnapshot{}, fmt.Errorf("skill level %q: %w", entry, err)
		}
		xp, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return model.ProfileSnapshot{}, fmt.Errorf("skill xp %q: %w", entry, err)
		}
		snap.Levels[skill] = int32(level)
		snap.XP[skill] = xp
	}
	for _, entry := range splitNonEmpty(fields[5], ";") {
		name, value, found := strings.Cut(entry, ":")
		if !found {
			return model.ProfileSnapshot{}, fmt.Errorf("cooldown entry %q", entry)
		}
		ability, ok := model.ParseAbility(name)
		if !ok {
			return model.ProfileSnapshot{}, fmt.Errorf("cooldown ability %q", name)
		}
		end, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return model.ProfileSnapshot{}, fmt.Errorf("cooldown end %q: %w", entry, err)
		}
		snap.Cooldowns[ability] = end
	}
	return snap, nil
}
