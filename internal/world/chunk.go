package world

import (
	"encoding/binary"
	"fmt"
)

// chunkBits is a dense bitset over one chunk's blocks, sized
// height×16×16. A set bit marks the block ineligible (player-placed or
// already rewarded). A nil bits slice means "no block ever marked".
type chunkBits struct {
	minY   int32
	height int32
	bits   []uint64
	dirty  bool
}

func newChunkBits(minY, height int32) *chunkBits {
	return &chunkBits{minY: minY, height: height}
}

func (c *chunkBits) index(localX, y, localZ int32) (int32, bool) {
	dy := y - c.minY
	if dy < 0 || dy >= c.height || localX < 0 || localX > 15 || localZ < 0 || localZ > 15 {
		return 0, false
	}
	return (dy*16+localZ)*16 + localX, true
}

func (c *chunkBits) get(localX, y, localZ int32) bool {
	if c.bits == nil {
		return false
	}
	idx, ok := c.index(localX, y, localZ)
	if !ok {
		return false
	}
	return c.bits[idx/64]&(1<<(uint(idx)%64)) != 0
}

func (c *chunkBits) set(localX, y, localZ int32, ineligible bool) {
	idx, ok := c.index(localX, y, localZ)
	if !ok {
		return
	}
	if c.bits == nil {
		if !ineligible {
			return // all-eligible already
		}
		words := (int(c.height)*256 + 63) / 64
		c.bits = make([]uint64, words)
	}
	word, mask := idx/64, uint64(1)<<(uint(idx)%64)
	if ineligible {
		c.bits[word] |= mask
	} else {
		c.bits[word] &^= mask
	}
	c.dirty = true
}

// empty reports whether no block is marked ineligible.
func (c *chunkBits) empty() bool {
	for _, w := range c.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// encode serializes the bitset (uncompressed): minY, height, words.
func (c *chunkBits) encode() []byte {
	buf := make([]byte, 8+8*len(c.bits))
	binary.LittleEndian.PutUint32(buf[0:], uint32(c.minY))
	binary.LittleEndian.PutUint32(buf[4:], uint32(c.height))
	for i, w := range c.bits {
		binary.LittleEndian.PutUint64(buf[8+8*i:], w)
	}
	return buf
}

// decodeChunkBits parses a serialized bitset. The stored vertical
// extent must match the store's configuration; a mismatch is treated as
// corruption by the caller.
func decodeChunkBits(payload []byte, minY, height int32) (*chunkBits, error) {
	if len(payload) < 8 {
		return nil, fmt.Errorf("chunk payload too short: %d bytes", len(payload))
	}
	storedMinY := int32(binary.LittleEndian.Uint32(payload[0:]))
	storedHeight := int32(binary.LittleEndian.Uint32(payload[4:]))
	if storedMinY != minY || storedHeight != height {
		return nil, fmt.Errorf("chunk extent mismatch: stored %d/%d, want %d/%d",
			storedMinY, storedHeight, minY, height)
	}
	words := (int(height)*256 + 63) / 64
	if len(payload) != 8+8*words {
		return nil, fmt.Errorf("chunk payload length %d, want %d", len(payload), 8+8*words)
	}
	c := newChunkBits(minY, height)
	c.bits = make([]uint64, words)
	for i := range c.bits {
		c.bits[i] = binary.LittleEndian.Uint64(payload[8+8*i:])
	}
	return c, nil
}
