package sim

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when a SimConfig fails validation.
// Nothing has been computed when it is returned.
var ErrInvalidConfig = errors.New("invalid simulation config")

// SimConfig is the immutable record driving one run.
// In continuous mode Resolution is the chunk size.
type SimConfig struct {
	NCells     int     // cells per trial (must be > 0)
	NGenes     int     // candidate genes per cell (must be > 0)
	Prob       float64 // per-gene, per-cell expression probability in [0, 1]
	Seed       int64   // master seed of the trial stream
	Resolution int     // number of trials (must be > 0)
}

// NewSimConfig creates a SimConfig. It performs no validation; call Validate.
func NewSimConfig(nCells, nGenes int, prob float64, seed int64, resolution int) SimConfig {
	return SimConfig{
		NCells:     nCells,
		NGenes:     nGenes,
		Prob:       prob,
		Seed:       seed,
		Resolution: resolution,
	}
}

// Validate checks dimensions, probability range and trial count.
func (c SimConfig) Validate() error {
	if err := validateDimensions(c.NCells, c.NGenes); err != nil {
		return err
	}
	if err := validateProb(c.Prob); err != nil {
		return err
	}
	if c.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %d", ErrInvalidConfig, c.Resolution)
	}
	return nil
}

func validateDimensions(nCells, nGenes int) error {
	if nCells <= 0 {
		return fmt.Errorf("%w: n_cells must be positive, got %d", ErrInvalidConfig, nCells)
	}
	if nGenes <= 0 {
		return fmt.Errorf("%w: n_genes must be positive, got %d", ErrInvalidConfig, nGenes)
	}
	return nil
}

// NaN fails both comparisons below, so it needs its own check.
func validateProb(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: prob must be in [0, 1], got %v", ErrInvalidConfig, p)
	}
	return nil
}
