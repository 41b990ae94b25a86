package sim

import "math/rand"

// TrialMatrix is one sampling of every cell's expression state:
// NCells rows (expression vectors) by NGenes columns, stored row-major.
// It is scratch space owned by a single trial loop and is overwritten by Generate.
type TrialMatrix struct {
	NCells int
	NGenes int
	cells  []bool
}

// NewTrialMatrix allocates an all-false nCells × nGenes matrix.
func NewTrialMatrix(nCells, nGenes int) *TrialMatrix {
	return &TrialMatrix{
		NCells: nCells,
		NGenes: nGenes,
		cells:  make([]bool, nCells*nGenes),
	}
}

// At reports whether cell expresses gene.
func (m *TrialMatrix) At(cell, gene int) bool {
	return m.cells[cell*m.NGenes+gene]
}

// Set overwrites a single entry.
func (m *TrialMatrix) Set(cell, gene int, v bool) {
	m.cells[cell*m.NGenes+gene] = v
}

// Row returns the expression vector of cell. The slice aliases the matrix.
func (m *TrialMatrix) Row(cell int) []bool {
	return m.cells[cell*m.NGenes : (cell+1)*m.NGenes]
}

// Generate fills m with independent draws: each entry is true iff a uniform
// draw in [0, 1) falls below prob. Entries are drawn row-major, one Float64
// per entry, so the same rng state always yields the same matrix.
func (m *TrialMatrix) Generate(rng *rand.Rand, prob float64) {
	for i := range m.cells {
		m.cells[i] = rng.Float64() < prob
	}
}
