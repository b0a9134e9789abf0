package world

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmmo/voxmmo/internal/model"
)

func newTestStore(t *testing.T, dir string) *EligibilityStore {
	t.Helper()
	s, err := NewEligibilityStore(dir, -64, 384)
	require.NoError(t, err)
	return s
}

func TestEligibilityStore_DefaultEligible(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	assert.True(t, s.IsEligible(model.BlockPos{X: 0, Y: 64, Z: 0}))
	assert.True(t, s.IsEligible(model.BlockPos{X: -1000, Y: -64, Z: 99999}))
	assert.True(t, s.IsEligible(model.BlockPos{X: 5, Y: 319, Z: -5}))
}

func TestEligibilityStore_SetAndClear(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	pos := model.BlockPos{X: 17, Y: 70, Z: -33}

	s.SetIneligible(pos)
	assert.False(t, s.IsEligible(pos))
	assert.True(t, s.IsEligible(model.BlockPos{X: 17, Y: 71, Z: -33}), "neighbors unaffected")

	s.SetEligible(pos)
	assert.True(t, s.IsEligible(pos))
}

func TestEligibilityStore_EvictReload(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)
	pos := model.BlockPos{X: 100, Y: 12, Z: -200}

	s.SetIneligible(pos)
	s.ChunkUnloaded(pos.Chunk())

	// Same store, chunk faulted back in from its region file.
	assert.False(t, s.IsEligible(pos))
	require.NoError(t, s.Close())

	// Fresh store over the same directory: survives a full restart.
	s2 := newTestStore(t, dir)
	assert.False(t, s2.IsEligible(pos))
	assert.True(t, s2.IsEligible(model.BlockPos{X: 101, Y: 12, Z: -200}))
	require.NoError(t, s2.Close())
}

func TestEligibilityStore_UntouchedChunkLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)
	pos := model.BlockPos{X: 0, Y: 64, Z: 0}

	_ = s.IsEligible(pos)
	s.ChunkUnloaded(pos.Chunk())
	require.NoError(t, s.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "query-only traffic writes nothing")
}

func TestEligibilityStore_ClearingLastBitRemovesRegionFile(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)
	pos := model.BlockPos{X: 3, Y: 10, Z: 4}

	s.SetIneligible(pos)
	s.ChunkUnloaded(pos.Chunk())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	s.SetEligible(pos)
	s.ChunkUnloaded(pos.Chunk())
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "an all-eligible region has no file")
	require.NoError(t, s.Close())
}

func TestEligibilityStore_CorruptRegionDegradesToEligible(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)
	pos := model.BlockPos{X: 8, Y: 30, Z: 8}

	s.SetIneligible(pos)
	require.NoError(t, s.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	path := filepath.Join(dir, entries[0].Name())
	require.NoError(t, os.WriteFile(path, []byte("not a region file"), 0o644))

	s2 := newTestStore(t, dir)
	assert.True(t, s2.IsEligible(pos), "corruption falls back to all-eligible")

	// The store stays writable over the corrupt region.
	s2.SetIneligible(pos)
	assert.False(t, s2.IsEligible(pos))
	require.NoError(t, s2.Close())
}

func TestEligibilityStore_FlushAllKeepsChunksResident(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)
	pos := model.BlockPos{X: 40, Y: 5, Z: 40}

	s.SetIneligible(pos)
	require.NoError(t, s.FlushAll())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "flush persists without eviction")
	assert.False(t, s.IsEligible(pos))
	require.NoError(t, s.Close())
}

func TestEligibilityStore_OutOfRangeYIsEligible(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	below := model.BlockPos{X: 0, Y: -65, Z: 0}
	above := model.BlockPos{X: 0, Y: 320, Z: 0}
	s.SetIneligible(below)
	s.SetIneligible(above)
	assert.True(t, s.IsEligible(below), "marks outside the world extent are ignored")
	assert.True(t, s.IsEligible(above))
}

func TestChunkCoordinates(t *testing.T) {
	pos := model.BlockPos{X: -1, Y: 64, Z: 16}
	cp := pos.Chunk()
	assert.Equal(t, int32(-1), cp.X, "negative coords floor toward negative infinity")
	assert.Equal(t, int32(1), cp.Z)
	assert.Equal(t, int32(15), pos.LocalX())
	assert.Equal(t, int32(0), pos.LocalZ())

	rp := model.ChunkPos{X: -1, Z: 33}.Region()
	assert.Equal(t, int32(-1), rp.X)
	assert.Equal(t, int32(1), rp.Z)
}
