package parallel

import (
	"context"

	"github.com/pnewstein/tf-permute/sim"
)

// blockingBackend announces every Run on started and then blocks until
// release is closed (returning a full chunk) or ctx is cancelled.
type blockingBackend struct {
	nCells, nGenes int
	started        chan struct{}
	release        chan struct{}
}

func newBlockingBackend(nCells, nGenes int) *blockingBackend {
	return &blockingBackend{
		nCells:  nCells,
		nGenes:  nGenes,
		started: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (b *blockingBackend) Dimensions() (int, int) { return b.nCells, b.nGenes }

func (b *blockingBackend) Run(ctx context.Context, _ int64, _ float64, resolution int) (*sim.Result, error) {
	b.started <- struct{}{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
	}
	h := sim.NewHistogram(b.nCells)
	h[b.nCells-1] = int64(resolution)
	return sim.FromHistogram(h, resolution)
}

// funcBackend delegates Run to fn.
type funcBackend struct {
	nCells, nGenes int
	fn             func(ctx context.Context, seed int64, prob float64, resolution int) (*sim.Result, error)
}

func (b *funcBackend) Dimensions() (int, int) { return b.nCells, b.nGenes }

func (b *funcBackend) Run(ctx context.Context, seed int64, prob float64, resolution int) (*sim.Result, error) {
	return b.fn(ctx, seed, prob, resolution)
}
