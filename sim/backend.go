package sim

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// ErrBackendMismatch is returned when a backend was built for different
// dimensions than requested. Recovering from it (rebuilding the backend) is
// the caller's job; Run must not be called on a mismatched backend.
var ErrBackendMismatch = errors.New("backend dimensions mismatch")

// Backend runs a batch of trials for a fixed problem size.
// Implementations: InProcessBackend (always available) and native.Library
// (a dimension-specialized shared library).
type Backend interface {
	// Dimensions reports the (n_cells, n_genes) the backend was built for.
	Dimensions() (nCells, nGenes int)

	// Run executes resolution trials from seed and returns a histogram of
	// length n_cells whose entries sum to resolution.
	Run(ctx context.Context, seed int64, prob float64, resolution int) (*Result, error)
}

// InProcessBackend runs trials with Simulator. It also reports
// zero-expression statistics.
type InProcessBackend struct {
	nCells int
	nGenes int
}

// NewInProcessBackend returns the pure-Go backend for nCells × nGenes.
func NewInProcessBackend(nCells, nGenes int) *InProcessBackend {
	return &InProcessBackend{nCells: nCells, nGenes: nGenes}
}

func (b *InProcessBackend) Dimensions() (int, int) {
	return b.nCells, b.nGenes
}

func (b *InProcessBackend) Run(ctx context.Context, seed int64, prob float64, resolution int) (*Result, error) {
	return Simulate(ctx, NewSimConfig(b.nCells, b.nGenes, prob, seed, resolution))
}

// CheckDimensions returns ErrBackendMismatch unless b was built for nCells × nGenes.
func CheckDimensions(b Backend, nCells, nGenes int) error {
	gotCells, gotGenes := b.Dimensions()
	if gotCells != nCells || gotGenes != nGenes {
		return fmt.Errorf("%w: backend built for n_cells=%d, n_genes=%d; requested n_cells=%d, n_genes=%d",
			ErrBackendMismatch, gotCells, gotGenes, nCells, nGenes)
	}
	return nil
}

// ReconfigureFunc rebuilds a backend for new dimensions.
type ReconfigureFunc func(nCells, nGenes int) (Backend, error)

// SelectBackend picks the backend for a run, once, before any trial runs.
// A matching candidate is used as-is. On mismatch, the candidate is closed
// if it implements io.Closer, then reconfigure (if non-nil) is called exactly
// once and its backend is used if it now matches. A rejected rebuild is
// closed too.
// Otherwise the in-process backend is returned, so a usable backend always results.
func SelectBackend(candidate Backend, nCells, nGenes int, reconfigure ReconfigureFunc) Backend {
	if candidate == nil {
		return NewInProcessBackend(nCells, nGenes)
	}
	err := CheckDimensions(candidate, nCells, nGenes)
	if err == nil {
		return candidate
	}
	// A loaded image must be released before it can be replaced.
	closeBackend(candidate)
	if reconfigure != nil {
		logrus.Infof("Reconfiguring backend: %v", err)
		rebuilt, rerr := reconfigure(nCells, nGenes)
		if rerr != nil {
			logrus.Warnf("Backend reconfiguration failed: %v", rerr)
		} else if rebuilt == nil {
			logrus.Warnf("Backend reconfiguration returned no backend")
		} else if err = CheckDimensions(rebuilt, nCells, nGenes); err == nil {
			return rebuilt
		} else {
			closeBackend(rebuilt)
		}
	}
	logrus.Warnf("Falling back to in-process backend: %v", err)
	return NewInProcessBackend(nCells, nGenes)
}

// closeBackend releases b if it holds resources.
func closeBackend(b Backend) {
	c, ok := b.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logrus.Warnf("Closing backend: %v", err)
	}
}
