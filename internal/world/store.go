// Package world tracks which block coordinates are "natural" and thus
// reward-eligible. One bit per block, paged per chunk, persisted in
// 32×32-chunk region files with zstd-compressed payloads.
//
// Absence of stored data is equivalent to "all blocks eligible": only
// chunks somebody mutated ever hit the disk.
package world

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/voxmmo/voxmmo/internal/model"
)

// EligibilityStore is the per-world block eligibility index.
//
// All public entry points hold the store lock for the whole operation;
// load-on-demand and eviction are atomic with respect to each other.
// Host chunk lifecycle drives residency: a chunk loads on first query
// and is evicted via ChunkUnloaded.
type EligibilityStore struct {
	mu sync.Mutex

	dir    string
	minY   int32
	height int32

	chunks  map[model.ChunkPos]*chunkBits
	regions map[model.RegionPos]*regionHandle

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewEligibilityStore creates a store backed by region files under dir.
// minY/height define the world's vertical extent.
func NewEligibilityStore(dir string, minY, height int32) (*EligibilityStore, error) {
	if height <= 0 {
		return nil, fmt.Errorf("world height must be positive, got %d", height)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating region directory %s: %w", dir, err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &EligibilityStore{
		dir:     dir,
		minY:    minY,
		height:  height,
		chunks:  make(map[model.ChunkPos]*chunkBits),
		regions: make(map[model.RegionPos]*regionHandle),
		enc:     enc,
		dec:     dec,
	}, nil
}

// IsEligible reports whether the block still counts as natural.
// Never-marked coordinates are eligible by default.
func (s *EligibilityStore) IsEligible(pos model.BlockPos) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk := s.loadChunkLocked(pos.Chunk())
	return !chunk.get(pos.LocalX(), pos.Y, pos.LocalZ())
}

// SetIneligible marks the block as placed/already rewarded.
func (s *EligibilityStore) SetIneligible(pos model.BlockPos) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadChunkLocked(pos.Chunk()).set(pos.LocalX(), pos.Y, pos.LocalZ(), true)
}

// SetEligible clears the mark, restoring the natural default.
func (s *EligibilityStore) SetEligible(pos model.BlockPos) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadChunkLocked(pos.Chunk()).set(pos.LocalX(), pos.Y, pos.LocalZ(), false)
}

// ChunkUnloaded evicts a chunk on host chunk-unload. A dirty chunk is
// serialized into its region first; the region file handle closes when
// its last resident chunk leaves.
func (s *EligibilityStore) ChunkUnloaded(cp model.ChunkPos) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[cp]
	if !ok {
		return
	}
	region := s.regions[cp.Region()]
	s.storeChunkLocked(cp, chunk, region)
	if err := region.write(); err != nil {
		slog.Error("writing region file on chunk eviction",
			"region", region.path, "error", err)
	}
	delete(s.chunks, cp)
	region.resident--
	if region.resident <= 0 {
		delete(s.regions, cp.Region())
	}
}

// FlushAll serializes every dirty resident chunk and writes every dirty
// region file. Chunks stay resident. Called on shutdown and by the
// periodic save cycle.
func (s *EligibilityStore) FlushAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for cp, chunk := range s.chunks {
		if chunk.dirty {
			s.storeChunkLocked(cp, chunk, s.regions[cp.Region()])
		}
	}
	var firstErr error
	for _, region := range s.regions {
		if err := region.write(); err != nil {
			slog.Error("writing region file on flush", "region", region.path, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close flushes everything and drops all resident state.
func (s *EligibilityStore) Close() error {
	err := s.FlushAll()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[model.ChunkPos]*chunkBits)
	s.regions = make(map[model.RegionPos]*regionHandle)
	s.enc.Close()
	s.dec.Close()
	return err
}

// loadChunkLocked returns the resident chunk store, loading it from its
// region file on first access. Read/deserialize failure degrades to
// "no stored data" so a corrupt region never blocks gameplay.
func (s *EligibilityStore) loadChunkLocked(cp model.ChunkPos) *chunkBits {
	if chunk, ok := s.chunks[cp]; ok {
		return chunk
	}

	rp := cp.Region()
	region, ok := s.regions[rp]
	if !ok {
		region = openRegion(s.dir, rp)
		s.regions[rp] = region
	}
	region.resident++

	chunk := newChunkBits(s.minY, s.height)
	if payload, ok := region.entries[cp.LocalIndex()]; ok {
		raw, err := s.dec.DecodeAll(payload, nil)
		if err == nil {
			var decoded *chunkBits
			decoded, err = decodeChunkBits(raw, s.minY, s.height)
			if err == nil {
				chunk = decoded
			}
		}
		if err != nil {
			slog.Warn("corrupt chunk payload, defaulting to all-eligible",
				"region", region.path, "chunk", cp, "error", err)
		}
	}
	s.chunks[cp] = chunk
	return chunk
}

// storeChunkLocked folds a chunk's current bits into its region's entry
// table. An all-eligible chunk removes its entry instead.
func (s *EligibilityStore) storeChunkLocked(cp model.ChunkPos, chunk *chunkBits, region *regionHandle) {
	if !chunk.dirty {
		return
	}
	idx := cp.LocalIndex()
	if chunk.bits == nil || chunk.empty() {
		if _, had := region.entries[idx]; had {
			delete(region.entries, idx)
			region.dirty = true
		}
	} else {
		region.entries[idx] = s.enc.EncodeAll(chunk.encode(), nil)
		region.dirty = true
	}
	chunk.dirty = false
}
