package world

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/voxmmo/voxmmo/internal/model"
)

const (
	regionMagic   = uint32(0x56585247) // "VXRG"
	regionVersion = uint16(1)
)

// regionHandle is one open 32×32-chunk region file. It stays open while
// any chunk inside it is resident; the last eviction closes it.
// All access happens under the owning store's lock.
type regionHandle struct {
	pos      model.RegionPos
	path     string
	entries  map[int32][]byte // chunk local index → compressed payload
	resident int              // chunks of this region currently in memory
	dirty    bool             // entries changed since last write
}

// openRegion reads the region file's entry table. A missing file yields
// an empty handle; a corrupt file is logged and treated as empty —
// a corrupt region must never block gameplay.
func openRegion(dir string, pos model.RegionPos) *regionHandle {
	h := &regionHandle{
		pos:     pos,
		path:    filepath.Join(dir, fmt.Sprintf("r.%d.%d.vxr", pos.X, pos.Z)),
		entries: make(map[int32][]byte),
	}
	f, err := os.Open(h.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("opening region file, treating as empty", "path", h.path, "error", err)
		}
		return h
	}
	defer f.Close()

	if err := h.readEntries(f); err != nil {
		slog.Warn("corrupt region file, treating as empty", "path", h.path, "error", err)
		h.entries = make(map[int32][]byte)
	}
	return h
}

func (h *regionHandle) readEntries(r io.Reader) error {
	var header [10]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if binary.LittleEndian.Uint32(header[0:]) != regionMagic {
		return fmt.Errorf("bad magic")
	}
	if v := binary.LittleEndian.Uint16(header[4:]); v != regionVersion {
		return fmt.Errorf("unsupported version %d", v)
	}
	count := binary.LittleEndian.Uint32(header[6:])
	if count > 32*32 {
		return fmt.Errorf("entry count %d exceeds region capacity", count)
	}
	for i := uint32(0); i < count; i++ {
		var entry [8]byte
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return fmt.Errorf("reading entry %d header: %w", i, err)
		}
		idx := int32(binary.LittleEndian.Uint32(entry[0:]))
		size := binary.LittleEndian.Uint32(entry[4:])
		if idx < 0 || idx >= 32*32 {
			return fmt.Errorf("entry %d has invalid chunk index %d", i, idx)
		}
		if size > 1<<24 {
			return fmt.Errorf("entry %d payload size %d too large", i, size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return fmt.Errorf("reading entry %d payload: %w", i, err)
		}
		h.entries[idx] = payload
	}
	return nil
}

// write persists the entry table atomically (temp file + rename).
func (h *regionHandle) write() error {
	if !h.dirty {
		return nil
	}
	if len(h.entries) == 0 {
		// Nothing stored: drop the file entirely, absence means all-eligible.
		if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing empty region file %s: %w", h.path, err)
		}
		h.dirty = false
		return nil
	}

	tmp := h.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating region temp file: %w", err)
	}

	var header [10]byte
	binary.LittleEndian.PutUint32(header[0:], regionMagic)
	binary.LittleEndian.PutUint16(header[4:], regionVersion)
	binary.LittleEndian.PutUint32(header[6:], uint32(len(h.entries)))
	if _, err := f.Write(header[:]); err != nil {
		f.Close()
		return fmt.Errorf("writing region header: %w", err)
	}
	for idx, payload := range h.entries {
		var entry [8]byte
		binary.LittleEndian.PutUint32(entry[0:], uint32(idx))
		binary.LittleEndian.PutUint32(entry[4:], uint32(len(payload)))
		if _, err := f.Write(entry[:]); err != nil {
			f.Close()
			return fmt.Errorf("writing entry for chunk %d: %w", idx, err)
		}
		if _, err := f.Write(payload); err != nil {
			f.Close()
			return fmt.Errorf("writing payload for chunk %d: %w", idx, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing region temp file: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("replacing region file %s: %w", h.path, err)
	}
	h.dirty = false
	return nil
}
