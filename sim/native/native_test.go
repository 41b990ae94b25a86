package native

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnewstein/tf-permute/sim"
	"github.com/pnewstein/tf-permute/sim/parallel"
)

// fakeLibrary builds a Library whose simulate_data puts every trial into the
// last bucket, recording the arguments it was called with.
func fakeLibrary(nCells, nGenes int, calls *[]uint64) *Library {
	return &Library{
		path:   "fake.so",
		nCells: nCells,
		nGenes: nGenes,
		simulate: func(seed uint64, _ float64, resolution uintptr, out *uintptr) {
			*calls = append(*calls, seed)
			buckets := unsafe.Slice(out, nCells)
			buckets[nCells-1] = resolution
		},
		closer: func(uintptr) error { return nil },
	}
}

func TestLibrary_Run_ConvertsBuckets(t *testing.T) {
	var calls []uint64
	lib := fakeLibrary(6, 3, &calls)

	res, err := lib.Run(context.Background(), 42, 0.5, 1000)

	require.NoError(t, err)
	assert.Len(t, res.Histogram, 6)
	assert.Equal(t, int64(1000), res.Histogram[5])
	assert.Equal(t, int64(1000), res.Trials)
	assert.Equal(t, int64(0), res.ZeroExpressionTrials, "native results carry no zero-expression statistic")
	assert.Equal(t, []uint64{42}, calls)
}

func TestLibrary_Run_RejectsBeforeCalling(t *testing.T) {
	var calls []uint64
	lib := fakeLibrary(6, 3, &calls)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lib.Run(ctx, 1, 0.5, 10)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = lib.Run(context.Background(), 1, 0.5, 0)
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)

	assert.Empty(t, calls)
}

func TestLibrary_Close_StopsRuns(t *testing.T) {
	var calls []uint64
	lib := fakeLibrary(4, 2, &calls)

	require.NoError(t, lib.Close())
	require.NoError(t, lib.Close(), "second Close is a no-op")

	_, err := lib.Run(context.Background(), 1, 0.5, 10)
	assert.Error(t, err)
	assert.Empty(t, calls)
}

func TestLibrary_BadCountsFailInvariant(t *testing.T) {
	// GIVEN a library whose buckets do not sum to the resolution
	lib := &Library{
		path:   "short.so",
		nCells: 3,
		nGenes: 1,
		simulate: func(_ uint64, _ float64, resolution uintptr, out *uintptr) {
			unsafe.Slice(out, 3)[0] = resolution - 1
		},
	}

	_, err := lib.Run(context.Background(), 1, 0.5, 10)

	assert.ErrorIs(t, err, sim.ErrCounterInvariant)
}

func TestLibrary_SelectBackendFallsBackOnMismatch(t *testing.T) {
	var calls []uint64
	lib := fakeLibrary(6, 3, &calls)
	reconfigure := Reconfigurer(filepath.Join(t.TempDir(), "missing.so"))

	chosen := sim.SelectBackend(lib, 7, 3, reconfigure)

	nCells, nGenes := chosen.Dimensions()
	assert.Equal(t, 7, nCells)
	assert.Equal(t, 3, nGenes)
	assert.IsType(t, &sim.InProcessBackend{}, chosen)

	// AND the mismatched library was released
	_, err := lib.Run(context.Background(), 1, 0.5, 10)
	assert.Error(t, err)
	assert.Empty(t, calls)
}

func TestLibrary_ContinuousRunCallsConcurrently(t *testing.T) {
	// GIVEN a slow library that records how many calls overlap
	var inFlight, peak atomic.Int32
	lib := &Library{
		path:   "slow.so",
		nCells: 6,
		nGenes: 3,
		simulate: func(_ uint64, _ float64, resolution uintptr, out *uintptr) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			// hold the call until a second one overlaps it, or give up
			deadline := time.Now().Add(5 * time.Second)
			for peak.Load() < 2 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			unsafe.Slice(out, 6)[5] = resolution
		},
	}
	ctrl, err := parallel.NewController(parallel.Config{
		NCells: 6, NGenes: 3, Prob: 0.5, Seed: 1, ChunkSize: 50, Workers: 4, MaxChunks: 4,
	}, lib)
	require.NoError(t, err)

	// WHEN the worker pool runs it
	res, err := ctrl.Run(context.Background())

	// THEN chunks overlap inside the library
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Chunks)
	assert.GreaterOrEqual(t, peak.Load(), int32(2))
}

func TestOpen_MissingFile(t *testing.T) {
	lib, err := Open(filepath.Join(t.TempDir(), "does-not-exist.so"))
	assert.Nil(t, lib)
	assert.Error(t, err)
}
