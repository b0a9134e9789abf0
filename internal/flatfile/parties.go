// Package flatfile implements the line-oriented file backends for
// profiles and parties. One record per line; a malformed record is
// logged and skipped without aborting the rest of the load.
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

	"github.com/google/uuid"

	"github.com/voxmmo/voxmmo/internal/model"
)

const partyFieldCount = 11

// PartyStore persists the party collection to a single flat file.
type PartyStore struct {
	path string
}

// NewPartyStore creates a store writing to path.
func NewPartyStore(path string) *PartyStore {
	return &PartyStore{path: path}
}

// SaveParties writes every party, one record per line, atomically.
func (s *PartyStore) SaveParties(_ context.Context, parties []model.PartySnapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating party file directory: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating party temp file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, snap := range parties {
		if _, err := w.WriteString(encodeParty(snap) + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("writing party %s: %w", snap.Name, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing party file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing party temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing party file: %w", err)
	}
	return nil
}

// LoadParties reads every well-formed party record. One corrupt record
// never aborts the batch.
func (s *PartyStore) LoadParties(_ context.Context) ([]model.PartySnapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening party file: %w", err)
	}
	defer f.Close()

	var out []model.PartySnapshot
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		snap, err := decodeParty(line)
		if err != nil {
			slog.Warn("skipping corrupt party record", "file", s.path, "line", lineNo, "error", err)
			continue
		}
		out = append(out, snap)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("reading party file: %w", err)
	}
	return out, nil
}

// encodeParty renders one party record:
// name|leaderID|locked|passwordHash|level|xp|xpShare|itemShare|categories|ally|members
func encodeParty(snap model.PartySnapshot) string {
	cats := make([]string, 0, len(snap.ItemCats))
	for _, c := range model.ItemShareCategories() {
		if snap.ItemCats[c] {
			cats = append(cats, c.String())
		}
	}
	members := make([]string, 0, len(snap.Members))
	for _, m := range snap.Members {
		members = append(members, m.ID.String()+":"+escapeName(m.Name))
	}
	fields := []string{
		escapeName(snap.Name),
		snap.Leader.ID.String(),
		boolField(snap.Locked),
		snap.PasswordHash,
		strconv.FormatInt(int64(snap.Level), 10),
		strconv.FormatFloat(snap.XP, 'f', -1, 64),
		snap.XPShare.String(),
		snap.ItemShare.String(),
		strings.Join(cats, ","),
		escapeName(snap.AllyName),
		strings.Join(members, ","),
	}
	return strings.Join(fields, "|")
}

func decodeParty(line string) (model.PartySnapshot, error) {
	fields := strings.Split(line, "|")
	if len(fields) != partyFieldCount {
		return model.PartySnapshot{}, fmt.Errorf("want %d fields, got %d", partyFieldCount, len(fields))
	}
	snap := model.PartySnapshot{
		Name:         unescapeName(fields[0]),
		Locked:       fields[2] == "1",
		PasswordHash: fields[3],
		AllyName:     unescapeName(fields[9]),
		ItemCats:     make(map[model.ItemShareCategory]bool),
	}
	if snap.Name == "" {
		return model.PartySnapshot{}, fmt.Errorf("empty party name")
	}
	leaderID, err := uuid.Parse(fields[1])
	if err != nil {
		return model.PartySnapshot{}, fmt.Errorf("leader id: %w", err)
	}
	level, err := strconv.ParseInt(fields[4], 10, 32)
	if err != nil {
		return model.PartySnapshot{}, fmt.Errorf("level: %w", err)
	}
	snap.Level = int32(level)
	if snap.XP, err = strconv.ParseFloat(fields[5], 64); err != nil {
		return model.PartySnapshot{}, fmt.Errorf("xp: %w", err)
	}
	var ok bool
	if snap.XPShare, ok = model.ParseShareMode(fields[6]); !ok {
		return model.PartySnapshot{}, fmt.Errorf("xp share mode %q", fields[6])
	}
	if snap.ItemShare, ok = model.ParseShareMode(fields[7]); !ok {
		return model.PartySnapshot{}, fmt.Errorf("item share mode %q", fields[7])
	}
	for _, name := range splitNonEmpty(fields[8], ",") {
		if c, ok := model.ParseItemShareCategory(name); ok {
			snap.ItemCats[c] = true
		}
	}
	for _, entry := range splitNonEmpty(fields[10], ",") {
		id, name, found := strings.Cut(entry, ":")
		if !found {
			return model.PartySnapshot{}, fmt.Errorf("member entry %q", entry)
		}
		memberID, err := uuid.Parse(id)
		if err != nil {
			return model.PartySnapshot{}, fmt.Errorf("member id %q: %w", id, err)
		}
		snap.Members = append(snap.Members, model.PartyMember{ID: memberID, Name: unescapeName(name)})
	}
	for _, m := range snap.Members {
		if m.ID == leaderID {
			snap.Leader = m
			break
		}
	}
	if snap.Leader.ID == uuid.Nil {
		return model.PartySnapshot{}, fmt.Errorf("leader %s not in member list", leaderID)
	}
	return snap, nil
}

// Display names travel through records verbatim except for the record
// delimiters, which are percent-escaped so a hostile name can never
// split its own line.
var (
	nameEscaper   = strings.NewReplacer("%", "%25", "|", "%7C", ",", "%2C", ":", "%3A", ";", "%3B")
	nameUnescaper = strings.NewReplacer("%7C", "|", "%2C", ",", "%3A", ":", "%3B", ";", "%25", "%")
)

func escapeName(s string) string   { return nameEscaper.Replace(s) }
func unescapeName(s string) string { return nameUnescaper.Replace(s) }

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}
