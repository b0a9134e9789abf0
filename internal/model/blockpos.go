package model

// BlockPos is a world block coordinate. Value type, passed by value.
type BlockPos struct {
	X int32
	Y int32
	Z int32
}

// Chunk returns the chunk containing this block (horizontal >>4).
// Arithmetic shift gives floor division for negative coordinates.
func (p BlockPos) Chunk() ChunkPos {
	return ChunkPos{X: p.X >> 4, Z: p.Z >> 4}
}

// LocalX returns the block X within its chunk (0-15).
func (p BlockPos) LocalX() int32 { return p.X & 15 }

// LocalZ returns the block Z within its chunk (0-15).
func (p BlockPos) LocalZ() int32 { return p.Z & 15 }

// DistanceSquared returns squared distance to another block (no sqrt).
func (p BlockPos) DistanceSquared(o BlockPos) int64 {
	dx := int64(p.X - o.X)
	dy := int64(p.Y - o.Y)
	dz := int64(p.Z - o.Z)
	return dx*dx + dy*dy + dz*dz
}

// ChunkPos is a 16×16-column chunk index.
type ChunkPos struct {
	X int32
	Z int32
}

// Region returns the region containing this chunk (>>5, 32×32 chunks per region).
func (c ChunkPos) Region() RegionPos {
	return RegionPos{X: c.X >> 5, Z: c.Z >> 5}
}

// LocalIndex returns the chunk's index within its 32×32 region (0-1023).
func (c ChunkPos) LocalIndex() int32 {
	return (c.X & 31) + (c.Z&31)*32
}

// RegionPos is a 32×32-chunk region index. One region file per RegionPos.
type RegionPos struct {
	X int32
	Z int32
}
