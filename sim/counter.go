package sim

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// CollisionCounter computes the per-trial statistics of a TrialMatrix.
//
// Rows are packed into 64-bit words, bucketed by xxhash of the packed words,
// and compared word-for-word inside a bucket, so only identical expression
// vectors are ever counted as collisions. The hash only narrows the search.
//
// Thread-safety: NOT thread-safe. Each trial loop owns its own counter.
type CollisionCounter struct {
	words   int        // 64-bit words per packed row
	packed  []uint64   // nCells * words, row-major
	buf     []byte     // hash input scratch
	buckets map[uint64][]int
}

// NewCollisionCounter sizes a counter for nCells × nGenes matrices.
func NewCollisionCounter(nCells, nGenes int) *CollisionCounter {
	words := (nGenes + 63) / 64
	return &CollisionCounter{
		words:   words,
		packed:  make([]uint64, nCells*words),
		buf:     make([]byte, 0, words*8),
		buckets: make(map[uint64][]int, nCells),
	}
}

// Count returns the number of all-false rows and the number of rows that
// duplicate an earlier row (n_cells minus the number of distinct rows).
func (c *CollisionCounter) Count(m *TrialMatrix) (zeroExpression, intersections int) {
	clear(c.buckets)
	distinct := 0
	for cell := 0; cell < m.NCells; cell++ {
		row := c.pack(m, cell)
		if isZero(row) {
			zeroExpression++
		}
		h := c.hash(row)
		seen := false
		for _, other := range c.buckets[h] {
			if slices.Equal(c.packedRow(other), row) {
				seen = true
				break
			}
		}
		if !seen {
			c.buckets[h] = append(c.buckets[h], cell)
			distinct++
		}
	}
	return zeroExpression, m.NCells - distinct
}

func (c *CollisionCounter) packedRow(cell int) []uint64 {
	return c.packed[cell*c.words : (cell+1)*c.words]
}

func (c *CollisionCounter) pack(m *TrialMatrix, cell int) []uint64 {
	row := c.packedRow(cell)
	clear(row)
	for gene, on := range m.Row(cell) {
		if on {
			row[gene/64] |= 1 << (gene % 64)
		}
	}
	return row
}

func (c *CollisionCounter) hash(row []uint64) uint64 {
	c.buf = c.buf[:0]
	for _, w := range row {
		c.buf = binary.LittleEndian.AppendUint64(c.buf, w)
	}
	return xxhash.Sum64(c.buf)
}

func isZero(row []uint64) bool {
	for _, w := range row {
		if w != 0 {
			return false
		}
	}
	return true
}
