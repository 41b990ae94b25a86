// Package native loads a dimension-specialized simulation library and exposes
// it as a sim.Backend.
//
// The library is loaded at runtime with purego, so no cgo toolchain is needed.
// It must export two C-ABI symbols:
//
//	void get_ncells_ngenes(size_t *n_cells, size_t *n_genes);
//	void simulate_data(uint64_t seed, double prob, size_t resolution, size_t *out);
//
// simulate_data writes n_cells counts into out, one per possible intersection
// count, summing to resolution. The library reports no zero-expression
// statistic, so results it produces carry ZeroExpressionTrials == 0.
//
// simulate_data must be reentrant: worker goroutines call it concurrently,
// each with its own out buffer.
package native

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pnewstein/tf-permute/sim"
)

// Symbol names the library must export.
const (
	SymbolDimensions = "get_ncells_ngenes"
	SymbolSimulate   = "simulate_data"
)

// ErrUnsupported is returned by Open on platforms without dynamic loading.
var ErrUnsupported = errors.New("native backend not supported on this platform")

// Library is an opened native backend. Runs proceed concurrently; Close
// waits for them to return.
type Library struct {
	path string

	mu       sync.RWMutex
	handle   uintptr
	nCells   int
	nGenes   int
	simulate func(seed uint64, prob float64, resolution uintptr, out *uintptr)
	closer   func(uintptr) error
}

var _ sim.Backend = (*Library)(nil)

// Path returns the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Dimensions returns the problem size the library was compiled for.
func (l *Library) Dimensions() (int, int) {
	return l.nCells, l.nGenes
}

// Run calls simulate_data. The call cannot be interrupted; ctx is only
// checked before it starts.
func (l *Library) Run(ctx context.Context, seed int64, prob float64, resolution int) (*sim.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resolution <= 0 {
		return nil, fmt.Errorf("%w: resolution must be positive, got %d", sim.ErrInvalidConfig, resolution)
	}

	// The read lock keeps the image loaded for the duration of the call.
	l.mu.RLock()
	if l.simulate == nil {
		l.mu.RUnlock()
		return nil, fmt.Errorf("native library %s is closed", l.path)
	}
	out := make([]uintptr, l.nCells)
	l.simulate(uint64(seed), prob, uintptr(resolution), &out[0])
	l.mu.RUnlock()

	h := sim.NewHistogram(l.nCells)
	for i, v := range out {
		h[i] = int64(v)
	}
	return sim.FromHistogram(h, resolution)
}

// Close unloads the library. Run fails afterwards.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.simulate == nil {
		return nil
	}
	l.simulate = nil
	if l.closer == nil {
		return nil
	}
	return l.closer(l.handle)
}

// Reconfigurer returns a sim.ReconfigureFunc that reopens path.
// Producing a library for new dimensions is left to whatever builds the file;
// the returned function only picks up what is on disk. The previously opened
// Library must be closed first or dlopen hands back the old image;
// sim.SelectBackend does that before calling it.
func Reconfigurer(path string) sim.ReconfigureFunc {
	return func(int, int) (sim.Backend, error) {
		return Open(path)
	}
}
